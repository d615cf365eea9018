package server

import (
	"context"
	"fmt"
	"net"
	"replicated-kv/internal/events"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"
	"replicated-kv/internal/raft/store"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

// Server is a single node of the replicated key-value store. It owns its consensus state, its log and its store,
// and talks to other nodes only through a PeerTransport.
type Server struct {
	cfg   Config
	self  cluster.Member
	peers []cluster.Member

	state consensusState
	// A linear log used to size the commit index. Entries are created by the leader on write, on replication
	// receipt, and once as a sentinel when a node becomes leader.
	log   *raft.Log[rpc.Operation]
	store *store.KVStore

	transport PeerTransport
	metrics   MetricsCollector
	events    *events.Bus
	logger    logrus.FieldLogger

	election  *electionTimer
	heartbeat *heartbeatTicker

	// Serializes writes so that log index assignment, replication and store mutation happen in the same order
	writeMu sync.Mutex
	// Fault injection flag. While set, peer RPCs are refused in both directions.
	partitioned atomic.Bool
	stopped     atomic.Bool

	grpcServer *grpc.Server
}

// NewServer builds a Server from cfg. The server stays idle until Start is called.
func NewServer(cfg Config, transport PeerTransport) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transport == nil {
		return nil, fmt.Errorf("%w: transport is required", raft.ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	self, _ := cfg.Membership.Lookup(cfg.Self)
	logger := cfg.Logger.WithFields(logrus.Fields{
		"node":      self.ID,
		"component": "server",
	})

	var metrics MetricsCollector = noopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}

	s := &Server{
		cfg:       cfg,
		self:      self,
		peers:     cfg.Membership.Peers(self.ID),
		state:     consensusState{role: Follower},
		log:       raft.NewLog[rpc.Operation](),
		store:     store.NewKVStore(logger, cfg.Journal),
		transport: transport,
		metrics:   metrics,
		events:    cfg.Events,
		logger:    logger,
	}
	s.election = newElectionTimer(cfg.ElectionTimeoutMin, cfg.ElectionTimeoutMax, s.onElectionTimeout)
	s.heartbeat = newHeartbeatTicker(cfg.HeartbeatInterval, s.broadcastHeartbeat)

	s.grpcServer = grpc.NewServer(
		grpc.ConnectionTimeout(30*time.Second),
		grpc.ChainUnaryInterceptor(callerIDInterceptor),
	)
	rpc.RegisterKVRaftServer(s.grpcServer, &grpcService{srv: s})

	return s, nil
}

// ID returns the id of this node
func (s *Server) ID() cluster.NodeID { return s.self.ID }

// Address returns the address this node serves RPCs on
func (s *Server) Address() cluster.Address { return s.self.Address }

// Start arms the election timer. A server starts as a Follower and waits for a leader's heartbeat.
func (s *Server) Start() {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()

	timeout := s.election.Reset()
	s.logger.WithFields(logrus.Fields{
		"peers":            len(s.peers),
		"election_timeout": timeout,
	}).Info("Server started as Follower")
}

// Serve serves the KVRaft gRPC service on lis. It blocks until the listener fails or the server is stopped.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.WithField("addr", lis.Addr().String()).Info("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// ListenAndServe listens on the member address of this node and serves the gRPC service
func (s *Server) ListenAndServe() error {
	lis, err := net.Listen("tcp", string(s.self.Address))
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.self.Address, err)
	}
	return s.Serve(lis)
}

// Stop cancels the timers, stops serving RPCs and closes outbound connections. It is safe to call more than once.
func (s *Server) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.logger.Info("Shutting down server gracefully")

	s.election.Close()
	s.heartbeat.Close()

	// First, stop accepting new incoming requests, in order to prevent interrupting a pending response to a peer
	s.grpcServer.GracefulStop()
	// Flush queued journal writes before the caller closes the journal
	s.store.Close()
	// Then, close all outbound client connections
	if err := s.transport.Close(); err != nil {
		s.logger.WithError(err).Warn("Failed to close peer transport")
	}
}

// Status reports the consensus state of this node
func (s *Server) Status() *rpc.StatusResponse {
	snap := s.state.snapshot()

	var leaderAddr cluster.Address
	if leader, ok := s.cfg.Membership.Lookup(snap.leaderID); ok {
		leaderAddr = leader.Address
	}

	return &rpc.StatusResponse{
		NodeID:        string(s.self.ID),
		Address:       string(s.self.Address),
		Role:          snap.role.String(),
		Term:          snap.term,
		LeaderID:      string(snap.leaderID),
		LeaderAddress: string(leaderAddr),
		IsReady:       snap.ready,
		VotedFor:      string(snap.votedFor),
		LogLength:     s.log.Len(),
		CommitIndex:   snap.commitIndex,
		Partitioned:   s.partitioned.Load(),
	}
}

// Operations returns the operation history of this node, ordered by timestamp
func (s *Server) Operations() *rpc.OperationsResponse {
	return &rpc.OperationsResponse{
		NodeID:     string(s.self.ID),
		IsLeader:   s.state.snapshot().role == Leader,
		Operations: s.store.Operations(),
	}
}

// Store exposes the replicated store for read-only inspection
func (s *Server) Store() *store.KVStore { return s.store }

// becomeFollowerLocked demotes the server to Follower at term. The vote is cleared only if term advances. The
// heartbeat ticker is always cancelled and the election timer always re-armed.
func (s *Server) becomeFollowerLocked(term uint64) {
	prev := s.state.role
	s.state.advanceTermLocked(term)
	s.state.role = Follower

	s.heartbeat.Stop()
	s.election.Reset()

	if prev != Follower {
		s.publishRoleChangeLocked(prev)
	}
}

// becomeCandidateLocked starts a new term with a vote for self. The election timer is not re-armed here: a lost
// election re-arms it through becomeFollowerLocked.
func (s *Server) becomeCandidateLocked() uint64 {
	prev := s.state.role
	s.state.term++
	s.state.role = Candidate
	s.state.votedFor = s.self.ID
	s.state.leaderID = ""
	s.state.electionStartedAt = time.Now()

	s.heartbeat.Stop()
	s.election.Stop()

	s.publishRoleChangeLocked(prev)
	return s.state.term
}

// becomeLeaderLocked takes over leadership of the current term
func (s *Server) becomeLeaderLocked() {
	prev := s.state.role
	s.state.role = Leader
	s.state.leaderID = s.self.ID
	s.state.ready = true

	s.election.Stop()
	s.heartbeat.Start(s.state.term)
	s.log.Append(s.state.term, nil)

	s.metrics.RecordElectionWon(time.Since(s.state.electionStartedAt))
	s.publishRoleChangeLocked(prev)
	events.Publish(s.events, events.NewEvent(LeaderChanged, LeaderChangedPayload{
		NodeID:   s.self.ID,
		LeaderID: s.self.ID,
		Term:     s.state.term,
	}))
}

// stepDown demotes the server if term is greater than its own. It reports whether that happened.
func (s *Server) stepDown(term uint64, reason string) bool {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.stepDownLocked(term, reason)
}

func (s *Server) stepDownLocked(term uint64, reason string) bool {
	if term <= s.state.term {
		return false
	}
	s.logger.WithFields(logrus.Fields{
		"term":     s.state.term,
		"new_term": term,
		"reason":   reason,
	}).Info("Observed higher term, stepping down to Follower")
	s.becomeFollowerLocked(term)
	return true
}

func (s *Server) publishRoleChangeLocked(prev State) {
	s.logger.WithFields(logrus.Fields{
		"term": s.state.term,
		"from": prev,
		"to":   s.state.role,
	}).Info("Role changed")

	events.Publish(s.events, events.NewEvent(RoleChanged, RoleChangedPayload{
		NodeID: s.self.ID,
		From:   prev,
		To:     s.state.role,
		Role:   s.state.role.String(),
		Term:   s.state.term,
	}))
}

// peerContext derives the context used for a peer call. Cancellation is timer based only.
func (s *Server) peerContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
