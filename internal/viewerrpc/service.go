// Package viewerrpc declares the gRPC service spoken between a Bridge and a
// remote buffer viewer.
//
// The service only uses protobuf well-known types, so there is no generated
// code: the descriptor, handlers and client stubs below are what protoc-gen-go-grpc
// would produce for
//
//	service Viewer {
//	  rpc Enumerate(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc Fetch(google.protobuf.StringValue) returns (stream google.protobuf.BytesValue);
//	  rpc WatchStops(google.protobuf.Empty) returns (stream google.protobuf.Timestamp);
//	}
package viewerrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "bufwatch.viewer.v1.Viewer"

	EnumerateMethod  = "/" + ServiceName + "/Enumerate"
	FetchMethod      = "/" + ServiceName + "/Fetch"
	WatchStopsMethod = "/" + ServiceName + "/WatchStops"
)

// ViewerServer is the server API for the Viewer service.
type ViewerServer interface {
	// Enumerate lists the buffers visible from the selected frame.
	Enumerate(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Fetch streams the bytes of one buffer. The layout is sent in the
	// header metadata.
	Fetch(*wrapperspb.StringValue, Viewer_FetchServer) error
	// WatchStops sends one timestamp every time the debuggee stops.
	WatchStops(*emptypb.Empty, Viewer_WatchStopsServer) error
}

// UnimplementedViewerServer can be embedded to have forward compatible
// implementations.
type UnimplementedViewerServer struct{}

func (UnimplementedViewerServer) Enumerate(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Enumerate not implemented")
}

func (UnimplementedViewerServer) Fetch(*wrapperspb.StringValue, Viewer_FetchServer) error {
	return status.Errorf(codes.Unimplemented, "method Fetch not implemented")
}

func (UnimplementedViewerServer) WatchStops(*emptypb.Empty, Viewer_WatchStopsServer) error {
	return status.Errorf(codes.Unimplemented, "method WatchStops not implemented")
}

// RegisterViewerServer registers srv with s.
func RegisterViewerServer(s grpc.ServiceRegistrar, srv ViewerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for the Viewer service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ViewerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Enumerate",
			Handler:    enumerateHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Fetch",
			Handler:       fetchHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "WatchStops",
			Handler:       watchStopsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "bufwatch/viewer/v1/viewer.proto",
}

func enumerateHandler(
	srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ViewerServer).Enumerate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: EnumerateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ViewerServer).Enumerate(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func fetchHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ViewerServer).Fetch(m, &viewerFetchServer{stream})
}

// Viewer_FetchServer is the server side of a Fetch stream.
type Viewer_FetchServer interface {
	Send(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type viewerFetchServer struct {
	grpc.ServerStream
}

func (x *viewerFetchServer) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

func watchStopsHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ViewerServer).WatchStops(m, &viewerWatchStopsServer{stream})
}

// Viewer_WatchStopsServer is the server side of a WatchStops stream.
type Viewer_WatchStopsServer interface {
	Send(*timestamppb.Timestamp) error
	grpc.ServerStream
}

type viewerWatchStopsServer struct {
	grpc.ServerStream
}

func (x *viewerWatchStopsServer) Send(m *timestamppb.Timestamp) error {
	return x.ServerStream.SendMsg(m)
}

// ViewerClient is the client API for the Viewer service.
type ViewerClient interface {
	Enumerate(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Fetch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (Viewer_FetchClient, error)
	WatchStops(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Viewer_WatchStopsClient, error)
}

type viewerClient struct {
	cc grpc.ClientConnInterface
}

// NewViewerClient returns a client for the Viewer service on cc.
func NewViewerClient(cc grpc.ClientConnInterface) ViewerClient {
	return &viewerClient{cc}
}

func (c *viewerClient) Enumerate(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EnumerateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *viewerClient) Fetch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (Viewer_FetchClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FetchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &viewerFetchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Viewer_FetchClient is the client side of a Fetch stream.
type Viewer_FetchClient interface {
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ClientStream
}

type viewerFetchClient struct {
	grpc.ClientStream
}

func (x *viewerFetchClient) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *viewerClient) WatchStops(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (Viewer_WatchStopsClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], WatchStopsMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &viewerWatchStopsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// Viewer_WatchStopsClient is the client side of a WatchStops stream.
type Viewer_WatchStopsClient interface {
	Recv() (*timestamppb.Timestamp, error)
	grpc.ClientStream
}

type viewerWatchStopsClient struct {
	grpc.ClientStream
}

func (x *viewerWatchStopsClient) Recv() (*timestamppb.Timestamp, error) {
	m := new(timestamppb.Timestamp)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
