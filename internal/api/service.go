package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "pixelwire.v1.StripService"

const (
	methodShow       = "Show"
	methodFill       = "Fill"
	methodSetPixel   = "SetPixel"
	methodSetPixels  = "SetPixels"
	methodClear      = "Clear"
	methodForceClear = "ForceClear"
	methodGetStats   = "GetStats"
	methodClearStats = "ClearStats"
)

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// StripServiceServer is the server API of the strip service. Messages are protobuf well-known types:
//
//	Show(UInt32Value brightness) -> BoolValue success
//	Fill(UInt32Value 0xRRGGBB) -> Empty
//	SetPixel(Struct{index, color}) -> Empty
//	SetPixels(BytesValue R,G,B triples from pixel 0) -> Empty
//	Clear(Empty) -> BoolValue success
//	ForceClear(Empty) -> BoolValue success
//	GetStats(Empty) -> Struct{name, pixels, frames, aborted_frames, fps, elapsed_ms}
//	ClearStats(Empty) -> Empty
type StripServiceServer interface {
	Show(context.Context, *wrapperspb.UInt32Value) (*wrapperspb.BoolValue, error)
	Fill(context.Context, *wrapperspb.UInt32Value) (*emptypb.Empty, error)
	SetPixel(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	SetPixels(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Clear(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	ForceClear(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ClearStats(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func unaryMethod[Req, Resp any](method string, call func(StripServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(StripServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(StripServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// StripServiceDesc describes the strip service for grpc.Server.RegisterService.
var StripServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StripServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(methodShow, StripServiceServer.Show),
		unaryMethod(methodFill, StripServiceServer.Fill),
		unaryMethod(methodSetPixel, StripServiceServer.SetPixel),
		unaryMethod(methodSetPixels, StripServiceServer.SetPixels),
		unaryMethod(methodClear, StripServiceServer.Clear),
		unaryMethod(methodForceClear, StripServiceServer.ForceClear),
		unaryMethod(methodGetStats, StripServiceServer.GetStats),
		unaryMethod(methodClearStats, StripServiceServer.ClearStats),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pixelwire/v1/strip.proto",
}

func RegisterStripServiceServer(s grpc.ServiceRegistrar, srv StripServiceServer) {
	s.RegisterService(&StripServiceDesc, srv)
}

// StripServiceClient calls the strip service.
type StripServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewStripServiceClient(cc grpc.ClientConnInterface) *StripServiceClient {
	return &StripServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StripServiceClient) Show(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, methodShow, in, opts...)
}

func (c *StripServiceClient) Fill(ctx context.Context, in *wrapperspb.UInt32Value, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, methodFill, in, opts...)
}

func (c *StripServiceClient) SetPixel(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, methodSetPixel, in, opts...)
}

func (c *StripServiceClient) SetPixels(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, methodSetPixels, in, opts...)
}

func (c *StripServiceClient) Clear(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, methodClear, in, opts...)
}

func (c *StripServiceClient) ForceClear(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, methodForceClear, in, opts...)
}

func (c *StripServiceClient) GetStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, methodGetStats, in, opts...)
}

func (c *StripServiceClient) ClearStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke[emptypb.Empty](ctx, c.cc, methodClearStats, in, opts...)
}
