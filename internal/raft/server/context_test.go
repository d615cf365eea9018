package server

import (
	"context"
	"replicated-kv/internal/raft/cluster"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestCallerID(t *testing.T) {
	_, ok := GetCallerID(context.Background())
	assert.False(t, ok)

	ctx := SetCallerID(context.Background(), "node2")
	id, ok := GetCallerID(ctx)
	assert.True(t, ok)
	assert.Equal(t, cluster.NodeID("node2"), id)
}

func TestCallerIDInterceptor(t *testing.T) {
	handler := func(ctx context.Context, req any) (any, error) {
		id, _ := GetCallerID(ctx)
		return id, nil
	}

	t.Run("copies caller id from metadata", func(t *testing.T) {
		outgoing := withOutgoingCallerID(context.Background(), "node3")
		md, _ := metadata.FromOutgoingContext(outgoing)
		ctx := metadata.NewIncomingContext(context.Background(), md)

		resp, err := callerIDInterceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
		assert.NoError(t, err)
		assert.Equal(t, cluster.NodeID("node3"), resp)
	})

	t.Run("client requests carry no caller id", func(t *testing.T) {
		resp, err := callerIDInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
		assert.NoError(t, err)
		assert.Equal(t, cluster.NodeID(""), resp)
	})
}
