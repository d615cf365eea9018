package server

import (
	"context"
	"replicated-kv/internal"
	"replicated-kv/internal/raft/cluster"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// callerIDMetadataKey carries the id of the calling node in the gRPC metadata of peer RPCs
const callerIDMetadataKey = "kvraft-caller-id"

var callerIDKey = internal.NewCtxKey[cluster.NodeID]("callerID")

// SetCallerID returns a context carrying the id of the node that issued the current request
func SetCallerID(ctx context.Context, id cluster.NodeID) context.Context {
	return internal.WithValue(ctx, callerIDKey, id)
}

// GetCallerID returns the id of the node that issued the current request. Client requests carry no caller id.
func GetCallerID(ctx context.Context) (cluster.NodeID, bool) {
	return internal.Value(ctx, callerIDKey)
}

// withOutgoingCallerID attaches self to the outgoing gRPC metadata
func withOutgoingCallerID(ctx context.Context, self cluster.NodeID) context.Context {
	return metadata.AppendToOutgoingContext(ctx, callerIDMetadataKey, string(self))
}

// callerIDInterceptor moves the caller id from the incoming gRPC metadata into the request context
func callerIDInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(callerIDMetadataKey); len(values) > 0 && values[0] != "" {
			ctx = SetCallerID(ctx, cluster.NodeID(values[0]))
		}
	}
	return handler(ctx, req)
}
