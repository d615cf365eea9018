package server

import (
	"context"
	"errors"
	"fmt"
	"replicated-kv/internal/events"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Put writes key on the leader. The operation is appended to the log and replicated to every follower, and is only
// applied to the store once all of them acknowledged it. A single unreachable follower fails the write with
// raft.ErrReplicationFailed and leaves the store untouched.
func (s *Server) Put(ctx context.Context, key, value string) (*rpc.Operation, error) {
	snap := s.state.snapshot()
	if !snap.ready {
		return nil, raft.ErrNotReady
	}
	if snap.role != Leader {
		return nil, raft.ErrNotLeader
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	// Leadership may have been lost while waiting for the previous write
	s.state.mu.Lock()
	if s.state.role != Leader {
		s.state.mu.Unlock()
		return nil, raft.ErrNotLeader
	}
	term := s.state.term
	op := &rpc.Operation{
		ID:           uuid.NewString(),
		Type:         rpc.OpPut,
		Key:          key,
		Value:        value,
		Timestamp:    time.Now().UnixMilli(),
		OriginNodeID: string(s.self.ID),
		Term:         term,
	}
	entry := s.log.Append(term, op)
	s.state.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{
		"op":    op.ID,
		"key":   key,
		"term":  term,
		"index": entry.Index,
	})

	start := time.Now()
	if err := s.replicateToPeers(ctx, op); err != nil {
		s.discardEntry(entry)
		s.metrics.RecordReplicationFailure()
		logger.WithError(err).Error("Write failed, entry discarded")
		return nil, err
	}

	s.state.mu.Lock()
	s.store.Apply(op)
	s.state.commitIndex = s.log.Len()
	commitIndex := s.state.commitIndex
	s.state.mu.Unlock()

	s.metrics.RecordWriteLatency(time.Since(start))
	s.metrics.RecordWriteCommitted()
	logger.WithField("commit_index", commitIndex).Info("Write committed")

	events.Publish(s.events, events.NewEvent(OperationApplied, OperationAppliedPayload{
		NodeID:    s.self.ID,
		Operation: op,
	}))
	return op, nil
}

// discardEntry drops the entry of a failed write. Entries other paths appended while the write was in flight stay
// in the log, and the commit index never points past its end.
func (s *Server) discardEntry(entry raft.LogEntry[rpc.Operation]) {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	if !s.log.Discard(entry) {
		s.logger.WithField("index", entry.Index).Warn("Failed entry already gone from the log")
	}
	if n := s.log.Len(); s.state.commitIndex > n {
		s.state.commitIndex = n
	}
}

// replicateToPeers sends op to every follower in parallel, bounded by the replication timeout, and joins every
// failure under raft.ErrReplicationFailed.
func (s *Server) replicateToPeers(ctx context.Context, op *rpc.Operation) error {
	ctx, cancel := s.peerContext(ctx, s.cfg.ReplicationTimeout)
	defer cancel()

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, peer := range s.peers {
		wg.Add(1)
		go func(peer cluster.Member) {
			defer wg.Done()
			if err := s.replicateTo(ctx, peer, op); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(peer)
	}
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(append([]error{raft.ErrReplicationFailed}, errs...)...)
	}
	return nil
}

func (s *Server) replicateTo(ctx context.Context, peer cluster.Member, op *rpc.Operation) error {
	if s.partitioned.Load() {
		return fmt.Errorf("replicate to %s: %w", peer.ID, raft.ErrPartitioned)
	}

	s.metrics.RecordReplicate()
	resp, err := s.transport.Replicate(ctx, peer, op)
	if err != nil {
		return fmt.Errorf("replicate to %s: %w", peer.ID, err)
	}
	if !resp.Success {
		if resp.Term > op.Term {
			s.stepDown(resp.Term, "Replicate response")
		}
		return fmt.Errorf("replicate to %s: rejected at term %d", peer.ID, resp.Term)
	}
	return nil
}
