package server

import (
	"context"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"
	"sync"

	"github.com/sirupsen/logrus"
)

// broadcastHeartbeat sends a heartbeat for term to every peer in parallel and waits for all of them. Each call is
// best effort: failures are logged and never retried.
func (s *Server) broadcastHeartbeat(term uint64) {
	snap := s.state.snapshot()
	if snap.role != Leader || snap.term != term {
		return
	}
	if s.partitioned.Load() {
		s.logger.WithField("term", term).Debug("Partitioned, skipping heartbeat round")
		return
	}

	req := &rpc.HeartbeatRequest{Term: term, LeaderID: string(s.self.ID)}

	var wg sync.WaitGroup
	for _, peer := range s.peers {
		wg.Add(1)
		go func(peer cluster.Member) {
			defer wg.Done()
			s.sendHeartbeat(peer, req)
		}(peer)
	}
	wg.Wait()
}

func (s *Server) sendHeartbeat(peer cluster.Member, req *rpc.HeartbeatRequest) {
	logger := s.logger.WithFields(logrus.Fields{"peer": peer.ID, "term": req.Term})

	ctx, cancel := s.peerContext(context.Background(), s.cfg.HeartbeatTimeout)
	defer cancel()

	s.metrics.RecordHeartbeat()
	resp, err := s.transport.Heartbeat(ctx, peer, req)
	if err != nil {
		logger.WithError(err).Warn("Heartbeat failed")
		return
	}

	if resp.Term > req.Term {
		s.stepDown(resp.Term, "Heartbeat response")
		return
	}
	logger.WithField("success", resp.Success).Debug("Heartbeat acknowledged")
}
