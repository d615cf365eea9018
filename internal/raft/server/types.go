package server

import (
	"context"
	"replicated-kv/internal/events"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"
	"time"
)

// A State is a custom type representing the role of a server at any given point: leader, follower, or candidate
type State uint64

// As Golang does not support Enums this is a common pattern for implementing one
const (
	Leader State = iota
	Follower
	Candidate
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case Leader:
		return "Leader"
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	default:
		return "Unknown"
	}
}

const (
	// RoleChanged is published whenever the server changes role. The payload is RoleChangedPayload.
	RoleChanged events.Type = iota
	// LeaderChanged is published when the server learns about a new leader. The payload is LeaderChangedPayload.
	LeaderChanged
	// OperationApplied is published after an operation is applied to the store, either on commit (leader) or on
	// replication receipt (follower). The payload is OperationAppliedPayload.
	OperationApplied
)

// RoleChangedPayload travels with RoleChanged events
type RoleChangedPayload struct {
	NodeID cluster.NodeID `json:"nodeId"`
	From   State          `json:"-"`
	To     State          `json:"-"`
	Role   string         `json:"role"`
	Term   uint64         `json:"term"`
}

// LeaderChangedPayload travels with LeaderChanged events
type LeaderChangedPayload struct {
	NodeID   cluster.NodeID `json:"nodeId"`
	LeaderID cluster.NodeID `json:"leaderId"`
	Term     uint64         `json:"term"`
}

// OperationAppliedPayload travels with OperationApplied events
type OperationAppliedPayload struct {
	NodeID    cluster.NodeID `json:"nodeId"`
	Operation *rpc.Operation `json:"operation"`
}

// PeerTransport issues RPCs to other members of the cluster. Every call is bounded by the deadline of ctx, and a
// timeout is reported the same way as any other failure.
type PeerTransport interface {
	RequestVote(ctx context.Context, peer cluster.Member, req *rpc.RequestVoteRequest) (*rpc.RequestVoteResponse, error)
	Heartbeat(ctx context.Context, peer cluster.Member, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error)
	Replicate(ctx context.Context, peer cluster.Member, op *rpc.Operation) (*rpc.ReplicateResponse, error)
	Get(ctx context.Context, peer cluster.Member, req *rpc.GetRequest) (*rpc.GetResponse, error)
	Close() error
}

// MetricsCollector is an optional interface for collecting performance metrics
type MetricsCollector interface {
	RecordWriteLatency(latency time.Duration)
	RecordWriteCommitted()
	RecordReplicationFailure()
	RecordReplicate()
	RecordRequestVote()
	RecordHeartbeat()
	RecordForwardedRead()
	RecordElection()
	RecordElectionWon(duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordWriteLatency(time.Duration) {}
func (noopMetrics) RecordWriteCommitted()            {}
func (noopMetrics) RecordReplicationFailure()        {}
func (noopMetrics) RecordReplicate()                 {}
func (noopMetrics) RecordRequestVote()               {}
func (noopMetrics) RecordHeartbeat()                 {}
func (noopMetrics) RecordForwardedRead()             {}
func (noopMetrics) RecordElection()                  {}
func (noopMetrics) RecordElectionWon(time.Duration)  {}
