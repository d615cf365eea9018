// Package rpc defines the messages exchanged between nodes and clients and the KVRaft gRPC service that carries
// them. Messages are plain structs encoded with the JSON codec registered in codec.go.
package rpc

import "time"

// OperationType is the kind of mutation an Operation performs
type OperationType string

// OpPut is currently the only operation type
const OpPut OperationType = "put"

// Operation is a single client write. It is created by the leader and never modified afterwards.
type Operation struct {
	ID   string        `json:"id"`
	Type OperationType `json:"type"`
	Key  string        `json:"key"`
	// Value is the new value for Key
	Value string `json:"value"`
	// Timestamp is wall-clock time on the leader at creation, in Unix milliseconds
	Timestamp int64 `json:"timestamp"`
	// OriginNodeID is the id of the leader that created the operation
	OriginNodeID string `json:"nodeId"`
	// Term is the leader's term when the operation was created
	Term uint64 `json:"term"`
}

// Time returns Timestamp as a time.Time.
func (o *Operation) Time() time.Time {
	return time.UnixMilli(o.Timestamp)
}

type RequestVoteRequest struct {
	Term        uint64 `json:"term"`
	CandidateID string `json:"candidateId"`
}

type RequestVoteResponse struct {
	Term        uint64 `json:"term"`
	VoteGranted bool   `json:"voteGranted"`
}

type HeartbeatRequest struct {
	Term     uint64 `json:"term"`
	LeaderID string `json:"leaderId"`
}

type HeartbeatResponse struct {
	Term    uint64 `json:"term"`
	Success bool   `json:"success"`
}

// ReplicateResponse acknowledges a replicated Operation. Term is the receiver's term after processing.
type ReplicateResponse struct {
	Success bool   `json:"success"`
	Term    uint64 `json:"term"`
}

type PutRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type PutResponse struct {
	Operation *Operation `json:"operation"`
}

// GetRequest reads a key. Forwarded is set by a follower that relays the read to its leader; a forwarded read is
// never relayed a second time.
type GetRequest struct {
	Key       string `json:"key"`
	Forwarded bool   `json:"forwarded,omitempty"`
}

type GetResponse struct {
	Found     bool   `json:"found"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

type ForceElectionRequest struct{}

type ForceElectionResponse struct {
	Success bool `json:"success"`
}

type SetPartitionRequest struct {
	Partitioned bool `json:"partitioned"`
}

type SetPartitionResponse struct {
	Success     bool `json:"success"`
	Partitioned bool `json:"partitioned"`
}

type StatusRequest struct{}

// StatusResponse is a point-in-time view of a node's consensus state.
type StatusResponse struct {
	NodeID        string `json:"nodeId"`
	Address       string `json:"address"`
	Role          string `json:"role"`
	Term          uint64 `json:"term"`
	LeaderID      string `json:"leaderId,omitempty"`
	LeaderAddress string `json:"leaderAddress,omitempty"`
	IsReady       bool   `json:"isReady"`
	VotedFor      string `json:"votedFor,omitempty"`
	LogLength     uint64 `json:"logLength"`
	CommitIndex   uint64 `json:"commitIndex"`
	Partitioned   bool   `json:"partitioned"`
}

type OperationsRequest struct{}

// OperationsResponse lists a node's operation history ordered by timestamp.
type OperationsResponse struct {
	NodeID     string       `json:"nodeId"`
	IsLeader   bool         `json:"isLeader"`
	Operations []*Operation `json:"operations"`
}
