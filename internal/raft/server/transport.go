package server

import (
	"context"
	"errors"
	"fmt"
	"replicated-kv/internal/raft"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCTransport is the PeerTransport used between real nodes. Peers are dialed by id through a resolver backed by
// the cluster membership, and every call carries the id of this node in its metadata. Calls are never retried: the
// deadline of the caller's context bounds each one and a timeout is reported like any other failure.
type GRPCTransport struct {
	self     cluster.NodeID
	resolver *membershipBuilder
	// A map to store the underlying grpc.ClientConn for each peer. It is a map[cluster.NodeID]*grpc.ClientConn.
	// sync.Map provides thread-safe access to the map, and is optimized for read operations, reducing the overhead of
	// manual locks
	clientsConnPool *sync.Map
	logger          logrus.FieldLogger
}

// NewGRPCTransport opens a channel to every peer of self in membership. grpc.NewClient does not connect eagerly,
// so peers that are not up yet are fine.
func NewGRPCTransport(self cluster.NodeID, membership *cluster.Membership, logger logrus.FieldLogger) (*GRPCTransport, error) {
	if membership == nil || !membership.Contains(self) {
		return nil, fmt.Errorf("%w: %s is not a cluster member", raft.ErrInvalidConfig, self)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	t := &GRPCTransport{
		self:            self,
		resolver:        newMembershipBuilder(membership),
		clientsConnPool: &sync.Map{},
		logger:          logger.WithFields(logrus.Fields{"node": self, "component": "transport"}),
	}

	for _, peer := range membership.Peers(self) {
		if err := t.dial(peer); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	return t, nil
}

// dial opens a channel to peer, unless one exists already
func (t *GRPCTransport) dial(peer cluster.Member) error {
	if _, ok := t.clientsConnPool.Load(peer.ID); ok {
		return nil
	}

	conn, err := grpc.NewClient(resolverTarget(peer.ID),
		grpc.WithResolvers(t.resolver),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to establish gRPC channel to peer %s: %w", peer, err)
	}
	if _, loaded := t.clientsConnPool.LoadOrStore(peer.ID, conn); loaded {
		_ = conn.Close()
	}
	return nil
}

// client returns the KVRaft client stub for the given peer
func (t *GRPCTransport) client(peer cluster.Member) (rpc.KVRaftClient, error) {
	value, ok := t.clientsConnPool.Load(peer.ID)
	if !ok {
		return nil, fmt.Errorf("gRPC client connection not found for peer %s", peer)
	}

	// We must type assert the value returned by Load, as it is of type `any` by default
	conn, ok := value.(*grpc.ClientConn)
	if !ok {
		return nil, fmt.Errorf("invalid clientConn type for peer %s. Type is %T", peer, value)
	}
	return rpc.NewKVRaftClient(conn), nil
}

func (t *GRPCTransport) RequestVote(ctx context.Context, peer cluster.Member, req *rpc.RequestVoteRequest) (*rpc.RequestVoteResponse, error) {
	client, err := t.client(peer)
	if err != nil {
		return nil, err
	}
	resp, err := client.RequestVote(withOutgoingCallerID(ctx, t.self), req)
	if err != nil {
		return nil, fmt.Errorf("RequestVote to %s: %w", peer.ID, raft.FromStatus(err))
	}
	return resp, nil
}

func (t *GRPCTransport) Heartbeat(ctx context.Context, peer cluster.Member, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	client, err := t.client(peer)
	if err != nil {
		return nil, err
	}
	resp, err := client.Heartbeat(withOutgoingCallerID(ctx, t.self), req)
	if err != nil {
		return nil, fmt.Errorf("Heartbeat to %s: %w", peer.ID, raft.FromStatus(err))
	}
	return resp, nil
}

func (t *GRPCTransport) Replicate(ctx context.Context, peer cluster.Member, op *rpc.Operation) (*rpc.ReplicateResponse, error) {
	client, err := t.client(peer)
	if err != nil {
		return nil, err
	}
	resp, err := client.Replicate(withOutgoingCallerID(ctx, t.self), op)
	if err != nil {
		return nil, fmt.Errorf("Replicate to %s: %w", peer.ID, raft.FromStatus(err))
	}
	return resp, nil
}

func (t *GRPCTransport) Get(ctx context.Context, peer cluster.Member, req *rpc.GetRequest) (*rpc.GetResponse, error) {
	client, err := t.client(peer)
	if err != nil {
		return nil, err
	}
	resp, err := client.Get(withOutgoingCallerID(ctx, t.self), req)
	if err != nil {
		return nil, fmt.Errorf("Get to %s: %w", peer.ID, raft.FromStatus(err))
	}
	return resp, nil
}

// Close closes all gRPC client connections initiated by this node
func (t *GRPCTransport) Close() error {
	var errs []error
	// Range is a thread-safe way to iterate over a sync.Map.
	t.clientsConnPool.Range(func(key, value any) bool {
		t.clientsConnPool.Delete(key)
		if conn, ok := value.(*grpc.ClientConn); ok {
			if err := conn.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close connection to %v: %w", key, err))
			}
		}
		// Return true to continue the iteration.
		return true
	})
	t.logger.Debug("All gRPC client connections closed")
	return errors.Join(errs...)
}
