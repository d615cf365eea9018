package server

import (
	"context"
	"fmt"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/rpc"

	"github.com/sirupsen/logrus"
)

// Get reads key. The leader answers from its own store. A follower forwards the read to the leader it knows about,
// so that reads observe every committed write. A miss is not an error: the response has Found set to false.
//
// forwarded marks a read relayed by another node. Such a read is never relayed again, a non-leader refuses it with
// raft.ErrNotLeader.
func (s *Server) Get(ctx context.Context, key string, forwarded bool) (*rpc.GetResponse, error) {
	snap := s.state.snapshot()

	if snap.role == Leader {
		if forwarded && s.partitioned.Load() {
			return nil, raft.ErrPartitioned
		}
		return s.localGet(key), nil
	}
	if forwarded {
		return nil, raft.ErrNotLeader
	}
	if !snap.ready {
		return nil, raft.ErrNotReady
	}

	leader, ok := s.cfg.Membership.Lookup(snap.leaderID)
	if !ok || leader.ID == s.self.ID {
		return nil, raft.ErrNoLeaderAvailable
	}
	if s.partitioned.Load() {
		return nil, fmt.Errorf("%w: %w", raft.ErrLeaderUnreachable, raft.ErrPartitioned)
	}

	ctx, cancel := s.peerContext(ctx, s.cfg.ForwardTimeout)
	defer cancel()

	s.metrics.RecordForwardedRead()
	resp, err := s.transport.Get(ctx, leader, &rpc.GetRequest{Key: key, Forwarded: true})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"key":    key,
			"leader": leader.ID,
		}).WithError(err).Warn("Forwarded read failed")
		return nil, fmt.Errorf("%w: %w", raft.ErrLeaderUnreachable, err)
	}
	return resp, nil
}

func (s *Server) localGet(key string) *rpc.GetResponse {
	record, ok := s.store.Get(key)
	if !ok {
		return &rpc.GetResponse{Found: false, Key: key}
	}
	return &rpc.GetResponse{
		Found:     true,
		Key:       key,
		Value:     record.Value,
		Timestamp: record.Timestamp,
	}
}
