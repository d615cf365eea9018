package raft

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Errors surfaced by the replicated store. Peer RPC failures during elections and heartbeats never reach callers;
// they are counted as absent responses.
var (
	// ErrNotReady is returned when the node has not yet become leader or learned who the leader is.
	ErrNotReady = errors.New("raft: node not ready")

	// ErrNotLeader is returned when a write is attempted on a node that is not the leader.
	ErrNotLeader = errors.New("raft: not the leader")

	// ErrNoLeaderAvailable is returned when a follower has to forward a read but knows no leader.
	ErrNoLeaderAvailable = errors.New("raft: no leader available")

	// ErrLeaderUnreachable is returned when forwarding a read to the leader failed or timed out.
	ErrLeaderUnreachable = errors.New("raft: leader unreachable")

	// ErrReplicationFailed is returned when at least one follower did not acknowledge a write.
	ErrReplicationFailed = errors.New("raft: replication failed")

	// ErrKeyNotFound is returned on a read miss. It is a valid empty result, not a failure of the node.
	ErrKeyNotFound = errors.New("raft: key not found")

	// ErrPartitioned is returned by peer RPC handlers while the node is in a simulated partition.
	ErrPartitioned = errors.New("raft: node partitioned")

	// ErrServerStopped is returned when an operation reaches a node that has been shut down.
	ErrServerStopped = errors.New("raft: server stopped")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("raft: invalid configuration")
)

var statusCodes = []struct {
	err  error
	code codes.Code
}{
	{ErrNotReady, codes.Unavailable},
	{ErrNotLeader, codes.FailedPrecondition},
	{ErrNoLeaderAvailable, codes.Unavailable},
	{ErrLeaderUnreachable, codes.Unavailable},
	{ErrReplicationFailed, codes.Aborted},
	{ErrKeyNotFound, codes.NotFound},
	{ErrPartitioned, codes.Unavailable},
	{ErrServerStopped, codes.Unavailable},
	{ErrInvalidConfig, codes.InvalidArgument},
}

// ToStatus converts an error returned by the node into a gRPC status error. The sentinel message is used as the
// status message so that FromStatus can recover it on the other side of the wire.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return status.Error(sc.code, sc.err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// FromStatus maps a gRPC status error back to the matching sentinel. Errors that do not carry a known sentinel
// message are returned unchanged.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, sc := range statusCodes {
		if st.Code() == sc.code && st.Message() == sc.err.Error() {
			return sc.err
		}
	}
	return err
}
