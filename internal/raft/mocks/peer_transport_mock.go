package mocks

import (
	"context"
	"replicated-kv/internal/raft/cluster"
	"replicated-kv/internal/raft/rpc"

	"github.com/stretchr/testify/mock"
)

// MockPeerTransport is a testify mock of server.PeerTransport
type MockPeerTransport struct {
	mock.Mock
}

// NewMockPeerTransport creates a mock transport. Close is always allowed.
func NewMockPeerTransport() *MockPeerTransport {
	m := &MockPeerTransport{}
	m.On("Close").Return(nil).Maybe()
	return m
}

func (m *MockPeerTransport) RequestVote(ctx context.Context, peer cluster.Member, req *rpc.RequestVoteRequest) (*rpc.RequestVoteResponse, error) {
	args := m.Called(ctx, peer, req)
	resp, _ := args.Get(0).(*rpc.RequestVoteResponse)
	return resp, args.Error(1)
}

func (m *MockPeerTransport) Heartbeat(ctx context.Context, peer cluster.Member, req *rpc.HeartbeatRequest) (*rpc.HeartbeatResponse, error) {
	args := m.Called(ctx, peer, req)
	resp, _ := args.Get(0).(*rpc.HeartbeatResponse)
	return resp, args.Error(1)
}

func (m *MockPeerTransport) Replicate(ctx context.Context, peer cluster.Member, op *rpc.Operation) (*rpc.ReplicateResponse, error) {
	args := m.Called(ctx, peer, op)
	resp, _ := args.Get(0).(*rpc.ReplicateResponse)
	return resp, args.Error(1)
}

func (m *MockPeerTransport) Get(ctx context.Context, peer cluster.Member, req *rpc.GetRequest) (*rpc.GetResponse, error) {
	args := m.Called(ctx, peer, req)
	resp, _ := args.Get(0).(*rpc.GetResponse)
	return resp, args.Error(1)
}

func (m *MockPeerTransport) Close() error {
	return m.Called().Error(0)
}
