package server

import (
	"context"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// onElectionTimeout is called by the election timer. A callback from an earlier arming of the timer is ignored, as
// is a timeout on a server that has become leader meanwhile.
func (s *Server) onElectionTimeout(epoch uint64) {
	s.state.mu.Lock()
	if s.stopped.Load() || !s.election.IsCurrent(epoch) || s.state.role == Leader {
		s.state.mu.Unlock()
		return
	}
	s.logger.WithField("term", s.state.term).Info("Election timeout expired without hearing from a leader")
	term := s.becomeCandidateLocked()
	s.state.mu.Unlock()

	s.runElection(term)
}

// campaign starts an election right away, whatever the current role and timer state
func (s *Server) campaign() {
	s.state.mu.Lock()
	if s.stopped.Load() {
		s.state.mu.Unlock()
		return
	}
	term := s.becomeCandidateLocked()
	s.state.mu.Unlock()

	s.runElection(term)
}

// runElection requests votes from every peer in parallel and decides the outcome of the candidacy for term. Failed
// or timed out calls count as a refused vote.
func (s *Server) runElection(term uint64) {
	s.metrics.RecordElection()
	logger := s.logger.WithField("term", term)
	logger.Info("Starting election")

	// The candidate votes for itself
	var votes atomic.Int64
	votes.Add(1)

	req := &rpc.RequestVoteRequest{Term: term, CandidateID: string(s.self.ID)}

	var wg sync.WaitGroup
	for _, peer := range s.peers {
		wg.Add(1)
		go func(peer cluster.Member) {
			defer wg.Done()
			if s.requestVote(peer, req) {
				votes.Add(1)
			}
		}(peer)
	}
	wg.Wait()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	// Pre-empted by a heartbeat or a higher term while waiting for the votes
	if s.stopped.Load() || s.state.role != Candidate || s.state.term != term {
		logger.Debug("Election pre-empted")
		return
	}

	granted := int(votes.Load())
	quorum := s.cfg.Membership.Quorum()
	logger = logger.WithFields(logrus.Fields{"votes": granted, "quorum": quorum})

	if granted >= quorum {
		logger.Info("Won election, becoming Leader")
		s.becomeLeaderLocked()
		return
	}

	// The election timeout will eventually expire again and a new election will be triggered
	logger.Info("Lost election, reverting to Follower")
	s.becomeFollowerLocked(term)
}

// requestVote asks a single peer for its vote. A response with a higher term demotes this server.
func (s *Server) requestVote(peer cluster.Member, req *rpc.RequestVoteRequest) bool {
	logger := s.logger.WithFields(logrus.Fields{"peer": peer.ID, "term": req.Term})

	if s.partitioned.Load() {
		logger.Debug("Partitioned, not requesting vote")
		return false
	}

	ctx, cancel := s.peerContext(context.Background(), s.cfg.VoteTimeout)
	defer cancel()

	s.metrics.RecordRequestVote()
	resp, err := s.transport.RequestVote(ctx, peer, req)
	if err != nil {
		logger.WithError(err).Warn("RequestVote failed")
		return false
	}

	if resp.Term > req.Term {
		s.stepDown(resp.Term, "RequestVote response")
		return false
	}
	return resp.VoteGranted
}
