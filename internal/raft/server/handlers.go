package server

import (
	"context"
	"replicated-kv/internal/events"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"

	"github.com/sirupsen/logrus"
)

// HandleRequestVote decides whether to grant a vote to a candidate. A higher term demotes this server first, so a
// vote is granted iff the request is for the current term and no other candidate got the vote in it. Granting a
// vote re-arms the election timer.
func (s *Server) HandleRequestVote(ctx context.Context, req *rpc.RequestVoteRequest) (*rpc.RequestVoteResponse, error) {
	if s.partitioned.Load() {
		return nil, raft.ErrPartitioned
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	s.stepDownLocked(req.Term, "RequestVote")

	granted := false
	if req.Term == s.state.term && s.state.grantVoteLocked(cluster.NodeID(req.CandidateID)) {
		granted = true
		s.election.Reset()
	}

	s.logger.WithFields(logrus.Fields{
		"candidate": req.CandidateID,
		"term":      req.Term,
		"granted":   granted,
	}).Info("Handled vote request")

	return &rpc.RequestVoteResponse{Term: s.state.term, VoteGranted: granted}, nil
}

// HandleHeartbeat processes a leader's heartbeat. A heartbeat with a term at least as high as ours establishes its
// sender as leader, marks this server ready and re-arms the election timer. A candidate or leader of the same term
// steps back to Follower.
func (s *Server) HandleHeartbeat(ctx context.Context, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	if s.partitioned.Load() {
		return nil, raft.ErrPartitioned
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{"leader": req.LeaderID, "term": req.Term})

	// If a server receives a request with a stale term number, it rejects the request
	if req.Term < s.state.term {
		logger.WithField("current_term", s.state.term).Debug("Rejected stale heartbeat")
		return &rpc.HeartbeatResponse{Term: s.state.term, Success: false}, nil
	}

	if req.Term > s.state.term || s.state.role != Follower {
		s.becomeFollowerLocked(req.Term)
	}

	leaderID := cluster.NodeID(req.LeaderID)
	if s.state.leaderID != leaderID {
		s.state.leaderID = leaderID
		logger.Info("Following new leader")
		events.Publish(s.events, events.NewEvent(LeaderChanged, LeaderChangedPayload{
			NodeID:   s.self.ID,
			LeaderID: leaderID,
			Term:     s.state.term,
		}))
	}
	s.state.ready = true
	s.election.Reset()

	logger.Debug("Heartbeat received")
	return &rpc.HeartbeatResponse{Term: s.state.term, Success: true}, nil
}

// HandleReplicate applies an operation sent by the leader. Operations from an older term are refused. An operation
// that was already applied is acknowledged without being appended again, so replays are harmless.
func (s *Server) HandleReplicate(ctx context.Context, op *rpc.Operation) (*rpc.ReplicateResponse, error) {
	if s.partitioned.Load() {
		return nil, raft.ErrPartitioned
	}

	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	logger := s.logger.WithFields(logrus.Fields{"op": op.ID, "key": op.Key, "term": op.Term})

	if op.Term < s.state.term {
		logger.WithField("current_term", s.state.term).Warn("Rejected operation from a stale term")
		return &rpc.ReplicateResponse{Success: false, Term: s.state.term}, nil
	}
	s.stepDownLocked(op.Term, "Replicate")

	if !s.store.Apply(op) {
		logger.Debug("Operation already applied, acknowledging replay")
		return &rpc.ReplicateResponse{Success: true, Term: s.state.term}, nil
	}
	s.log.Append(op.Term, op)
	s.state.commitIndex = s.log.Len()
	if s.state.role == Follower {
		s.election.Reset()
	}

	logger.WithField("commit_index", s.state.commitIndex).Info("Applied replicated operation")
	events.Publish(s.events, events.NewEvent(OperationApplied, OperationAppliedPayload{
		NodeID:    s.self.ID,
		Operation: op,
	}))
	return &rpc.ReplicateResponse{Success: true, Term: s.state.term}, nil
}

// grpcService adapts a Server to the KVRaft gRPC service, translating errors to gRPC status codes
type grpcService struct {
	rpc.UnimplementedKVRaftServer
	srv *Server
}

func (g *grpcService) RequestVote(ctx context.Context, req *rpc.RequestVoteRequest) (*rpc.RequestVoteResponse, error) {
	resp, err := g.srv.HandleRequestVote(ctx, req)
	if err != nil {
		return nil, raft.ToStatus(err)
	}
	return resp, nil
}

func (g *grpcService) Heartbeat(ctx context.Context, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	resp, err := g.srv.HandleHeartbeat(ctx, req)
	if err != nil {
		return nil, raft.ToStatus(err)
	}
	return resp, nil
}

func (g *grpcService) Replicate(ctx context.Context, op *rpc.Operation) (*rpc.ReplicateResponse, error) {
	if caller, ok := GetCallerID(ctx); ok {
		g.srv.logger.WithFields(logrus.Fields{"caller": caller, "op": op.ID}).Debug("Replicate received")
	}
	resp, err := g.srv.HandleReplicate(ctx, op)
	if err != nil {
		return nil, raft.ToStatus(err)
	}
	return resp, nil
}

func (g *grpcService) Put(ctx context.Context, req *rpc.PutRequest) (*rpc.PutResponse, error) {
	op, err := g.srv.Put(ctx, req.Key, req.Value)
	if err != nil {
		return nil, raft.ToStatus(err)
	}
	return &rpc.PutResponse{Operation: op}, nil
}

func (g *grpcService) Get(ctx context.Context, req *rpc.GetRequest) (*rpc.GetResponse, error) {
	if caller, ok := GetCallerID(ctx); ok && req.Forwarded {
		g.srv.logger.WithFields(logrus.Fields{"caller": caller, "key": req.Key}).Debug("Serving forwarded read")
	}
	resp, err := g.srv.Get(ctx, req.Key, req.Forwarded)
	if err != nil {
		return nil, raft.ToStatus(err)
	}
	return resp, nil
}

func (g *grpcService) ForceElection(context.Context, *rpc.ForceElectionRequest) (*rpc.ForceElectionResponse, error) {
	if err := g.srv.ForceElection(); err != nil {
		return nil, raft.ToStatus(err)
	}
	return &rpc.ForceElectionResponse{Success: true}, nil
}

func (g *grpcService) SetPartition(_ context.Context, req *rpc.SetPartitionRequest) (*rpc.SetPartitionResponse, error) {
	return &rpc.SetPartitionResponse{Success: true, Partitioned: g.srv.SetPartition(req.Partitioned)}, nil
}

func (g *grpcService) GetStatus(context.Context, *rpc.StatusRequest) (*rpc.StatusResponse, error) {
	return g.srv.Status(), nil
}

func (g *grpcService) GetOperations(context.Context, *rpc.OperationsRequest) (*rpc.OperationsResponse, error) {
	return g.srv.Operations(), nil
}
