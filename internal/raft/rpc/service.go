package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "kvraft.KVRaft"

// Full method names of the KVRaft service
const (
	KVRaft_RequestVote_FullMethodName   = "/" + serviceName + "/RequestVote"
	KVRaft_Heartbeat_FullMethodName     = "/" + serviceName + "/Heartbeat"
	KVRaft_Replicate_FullMethodName     = "/" + serviceName + "/Replicate"
	KVRaft_Put_FullMethodName           = "/" + serviceName + "/Put"
	KVRaft_Get_FullMethodName           = "/" + serviceName + "/Get"
	KVRaft_ForceElection_FullMethodName = "/" + serviceName + "/ForceElection"
	KVRaft_SetPartition_FullMethodName  = "/" + serviceName + "/SetPartition"
	KVRaft_GetStatus_FullMethodName     = "/" + serviceName + "/GetStatus"
	KVRaft_GetOperations_FullMethodName = "/" + serviceName + "/GetOperations"
)

// KVRaftClient is the client API for the KVRaft service. Peer RPCs (RequestVote, Heartbeat, Replicate) and client
// RPCs share the same service.
type KVRaftClient interface {
	RequestVote(ctx context.Context, in *RequestVoteRequest, opts ...grpc.CallOption) (*RequestVoteResponse, error)
	Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	Replicate(ctx context.Context, in *Operation, opts ...grpc.CallOption) (*ReplicateResponse, error)
	Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error)
	Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error)
	ForceElection(ctx context.Context, in *ForceElectionRequest, opts ...grpc.CallOption) (*ForceElectionResponse, error)
	SetPartition(ctx context.Context, in *SetPartitionRequest, opts ...grpc.CallOption) (*SetPartitionResponse, error)
	GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	GetOperations(ctx context.Context, in *OperationsRequest, opts ...grpc.CallOption) (*OperationsResponse, error)
}

type kvRaftClient struct {
	cc grpc.ClientConnInterface
}

// NewKVRaftClient wraps a connection. Every call is sent with the JSON content-subtype.
func NewKVRaftClient(cc grpc.ClientConnInterface) KVRaftClient {
	return &kvRaftClient{cc: cc}
}

func (c *kvRaftClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *kvRaftClient) RequestVote(ctx context.Context, in *RequestVoteRequest, opts ...grpc.CallOption) (*RequestVoteResponse, error) {
	out := new(RequestVoteResponse)
	if err := c.invoke(ctx, KVRaft_RequestVote_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvRaftClient) Heartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	out := new(HeartbeatResponse)
	if err := c.invoke(ctx, KVRaft_Heartbeat_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvRaftClient) Replicate(ctx context.Context, in *Operation, opts ...grpc.CallOption) (*ReplicateResponse, error) {
	out := new(ReplicateResponse)
	if err := c.invoke(ctx, KVRaft_Replicate_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvRaftClient) Put(ctx context.Context, in *PutRequest, opts ...grpc.CallOption) (*PutResponse, error) {
	out := new(PutResponse)
	if err := c.invoke(ctx, KVRaft_Put_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvRaftClient) Get(ctx context.Context, in *GetRequest, opts ...grpc.CallOption) (*GetResponse, error) {
	out := new(GetResponse)
	if err := c.invoke(ctx, KVRaft_Get_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvRaftClient) ForceElection(ctx context.Context, in *ForceElectionRequest, opts ...grpc.CallOption) (*ForceElectionResponse, error) {
	out := new(ForceElectionResponse)
	if err := c.invoke(ctx, KVRaft_ForceElection_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvRaftClient) SetPartition(ctx context.Context, in *SetPartitionRequest, opts ...grpc.CallOption) (*SetPartitionResponse, error) {
	out := new(SetPartitionResponse)
	if err := c.invoke(ctx, KVRaft_SetPartition_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvRaftClient) GetStatus(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.invoke(ctx, KVRaft_GetStatus_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *kvRaftClient) GetOperations(ctx context.Context, in *OperationsRequest, opts ...grpc.CallOption) (*OperationsResponse, error) {
	out := new(OperationsResponse)
	if err := c.invoke(ctx, KVRaft_GetOperations_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// KVRaftServer is the server API for the KVRaft service. Implementations must embed UnimplementedKVRaftServer.
type KVRaftServer interface {
	RequestVote(context.Context, *RequestVoteRequest) (*RequestVoteResponse, error)
	Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	Replicate(context.Context, *Operation) (*ReplicateResponse, error)
	Put(context.Context, *PutRequest) (*PutResponse, error)
	Get(context.Context, *GetRequest) (*GetResponse, error)
	ForceElection(context.Context, *ForceElectionRequest) (*ForceElectionResponse, error)
	SetPartition(context.Context, *SetPartitionRequest) (*SetPartitionResponse, error)
	GetStatus(context.Context, *StatusRequest) (*StatusResponse, error)
	GetOperations(context.Context, *OperationsRequest) (*OperationsResponse, error)
	mustEmbedUnimplementedKVRaftServer()
}

// UnimplementedKVRaftServer returns Unimplemented for every method.
type UnimplementedKVRaftServer struct{}

func (UnimplementedKVRaftServer) RequestVote(context.Context, *RequestVoteRequest) (*RequestVoteResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method RequestVote not implemented")
}
func (UnimplementedKVRaftServer) Heartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Heartbeat not implemented")
}
func (UnimplementedKVRaftServer) Replicate(context.Context, *Operation) (*ReplicateResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Replicate not implemented")
}
func (UnimplementedKVRaftServer) Put(context.Context, *PutRequest) (*PutResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Put not implemented")
}
func (UnimplementedKVRaftServer) Get(context.Context, *GetRequest) (*GetResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Get not implemented")
}
func (UnimplementedKVRaftServer) ForceElection(context.Context, *ForceElectionRequest) (*ForceElectionResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ForceElection not implemented")
}
func (UnimplementedKVRaftServer) SetPartition(context.Context, *SetPartitionRequest) (*SetPartitionResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetPartition not implemented")
}
func (UnimplementedKVRaftServer) GetStatus(context.Context, *StatusRequest) (*StatusResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStatus not implemented")
}
func (UnimplementedKVRaftServer) GetOperations(context.Context, *OperationsRequest) (*OperationsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetOperations not implemented")
}
func (UnimplementedKVRaftServer) mustEmbedUnimplementedKVRaftServer() {}

// RegisterKVRaftServer registers srv with a gRPC service registrar.
func RegisterKVRaftServer(s grpc.ServiceRegistrar, srv KVRaftServer) {
	s.RegisterService(&KVRaft_ServiceDesc, srv)
}

// unaryHandler builds a grpc.MethodDesc handler for a method taking Req and returning Resp.
func unaryHandler[Req any, Resp any](fullMethod string, call func(KVRaftServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(KVRaftServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(KVRaftServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// KVRaft_ServiceDesc is the grpc.ServiceDesc for the KVRaft service.
var KVRaft_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*KVRaftServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestVote",
			Handler:    unaryHandler(KVRaft_RequestVote_FullMethodName, KVRaftServer.RequestVote),
		},
		{
			MethodName: "Heartbeat",
			Handler:    unaryHandler(KVRaft_Heartbeat_FullMethodName, KVRaftServer.Heartbeat),
		},
		{
			MethodName: "Replicate",
			Handler:    unaryHandler(KVRaft_Replicate_FullMethodName, KVRaftServer.Replicate),
		},
		{
			MethodName: "Put",
			Handler:    unaryHandler(KVRaft_Put_FullMethodName, KVRaftServer.Put),
		},
		{
			MethodName: "Get",
			Handler:    unaryHandler(KVRaft_Get_FullMethodName, KVRaftServer.Get),
		},
		{
			MethodName: "ForceElection",
			Handler:    unaryHandler(KVRaft_ForceElection_FullMethodName, KVRaftServer.ForceElection),
		},
		{
			MethodName: "SetPartition",
			Handler:    unaryHandler(KVRaft_SetPartition_FullMethodName, KVRaftServer.SetPartition),
		},
		{
			MethodName: "GetStatus",
			Handler:    unaryHandler(KVRaft_GetStatus_FullMethodName, KVRaftServer.GetStatus),
		},
		{
			MethodName: "GetOperations",
			Handler:    unaryHandler(KVRaft_GetOperations_FullMethodName, KVRaftServer.GetOperations),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/raft/rpc/service.go",
}
