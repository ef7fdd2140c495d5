package api

import (
	"context"
	"crypto/tls"
	"errors"
	"math"
	"net"
	"os"
	"strings"

	"github.com/compute-blade-community/pixelwire/pkg/log"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/strip"
	grpczap "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type ListenMode string

const (
	ModeTCP  ListenMode = "tcp"
	ModeUnix ListenMode = "unix"
)

func ListenModeFromString(s string) (ListenMode, humane.Error) {
	switch mode := ListenMode(strings.ToLower(s)); mode {
	case ModeTCP, ModeUnix:
		return mode, nil
	default:
		return "", humane.New("invalid listen mode "+s,
			"set listen.grpc_listen_mode to either 'tcp' or 'unix'",
		)
	}
}

// StripController is the strip the service operates on. Implementations serialize access themselves.
type StripController interface {
	Name() string
	Len() int
	Show(ctx context.Context, brightness uint8) bool
	Fill(ctx context.Context, c pixel.Color)
	Set(ctx context.Context, i int, c pixel.Color)
	Load(ctx context.Context, colors []pixel.Color)
	Clear(ctx context.Context) bool
	ForceClear(ctx context.Context) bool
	Stats(ctx context.Context) strip.Snapshot
	ClearStats(ctx context.Context)
}

// StripGrpcService serves a single strip over gRPC.
type StripGrpcService struct {
	controller StripController
	server     *grpc.Server
	listenAddr string
	listenMode ListenMode
	tlsConfig  *tls.Config
}

// NewGrpcApiServer creates a new gRPC service
func NewGrpcApiServer(options ...GrpcApiServiceOption) *StripGrpcService {
	service := &StripGrpcService{listenMode: ModeTCP}

	for _, option := range options {
		option(service)
	}

	grpcOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(grpczap.UnaryServerInterceptor(log.InterceptorLogger(zap.L()))),
	}
	if service.tlsConfig != nil {
		grpcOpts = append(grpcOpts, grpc.Creds(credentials.NewTLS(service.tlsConfig)))
	}

	service.server = grpc.NewServer(grpcOpts...)
	RegisterStripServiceServer(service.server, service)

	return service
}

func (s *StripGrpcService) ServeAsync(ctx context.Context, cancel context.CancelCauseFunc) {
	go func() {
		err := s.Serve(ctx)
		if err != nil {
			log.FromContext(ctx).Error("Failed to start grpc server",
				zap.Error(err),
				zap.Strings("advice", err.Advice()),
			)

			cancel(err)
		}
	}()
}

func (s *StripGrpcService) Serve(ctx context.Context) humane.Error {
	if len(s.listenAddr) == 0 {
		return humane.New("no listen address provided",
			"ensure you are passing a valid listen config to the grpc server",
		)
	}

	if s.listenMode == ModeUnix {
		if err := os.Remove(s.listenAddr); err != nil && !errors.Is(err, os.ErrNotExist) {
			return humane.Wrap(err, "failed to remove stale grpc socket",
				"ensure the daemon may write to the directory of listen.grpc",
			)
		}
	}

	grpcListen, err := net.Listen(string(s.listenMode), s.listenAddr)
	if err != nil {
		return humane.Wrap(err, "failed to create grpc listener",
			"ensure the gRPC server you are trying to serve to is not already running and the address is not bound by another process",
		)
	}

	return s.ServeListener(ctx, grpcListen)
}

// ServeListener serves on an already bound listener until GracefulStop.
func (s *StripGrpcService) ServeListener(ctx context.Context, lis net.Listener) humane.Error {
	log.FromContext(ctx).Info("Starting grpc server", zap.String("address", lis.Addr().String()))
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return humane.Wrap(err, "failed to start grpc server",
			"ensure the gRPC server you are trying to serve to is not already running and the address is not bound by another process",
		)
	}

	return nil
}

func (s *StripGrpcService) GracefulStop() {
	s.server.GracefulStop()
}

// Show latches the buffer at the requested brightness.
func (s *StripGrpcService) Show(ctx context.Context, req *wrapperspb.UInt32Value) (*wrapperspb.BoolValue, error) {
	if req.GetValue() > math.MaxUint8 {
		return nil, status.Errorf(codes.InvalidArgument, "brightness %d exceeds 255", req.GetValue())
	}

	return wrapperspb.Bool(s.controller.Show(ctx, uint8(req.GetValue()))), nil
}

func (s *StripGrpcService) Fill(ctx context.Context, req *wrapperspb.UInt32Value) (*emptypb.Empty, error) {
	if req.GetValue() > 0xFFFFFF {
		return nil, status.Errorf(codes.InvalidArgument, "color %#x is not a 24-bit RGB value", req.GetValue())
	}

	s.controller.Fill(ctx, pixel.FromRGB(req.GetValue()))
	return &emptypb.Empty{}, nil
}

// SetPixel sets one pixel. The request carries numeric "index" and "color" fields.
func (s *StripGrpcService) SetPixel(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	index, ok := integerField(req, "index")
	if !ok || index < 0 || index >= float64(s.controller.Len()) {
		return nil, status.Errorf(codes.OutOfRange, "index must be an integer in [0, %d)", s.controller.Len())
	}

	color, ok := integerField(req, "color")
	if !ok || color < 0 || color > 0xFFFFFF {
		return nil, status.Error(codes.InvalidArgument, "color must be a 24-bit RGB value")
	}

	s.controller.Set(ctx, int(index), pixel.FromRGB(uint32(color)))
	return &emptypb.Empty{}, nil
}

func integerField(req *structpb.Struct, name string) (float64, bool) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, false
	}

	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, false
	}

	return n.NumberValue, true
}

// SetPixels loads R,G,B triples into the buffer starting at pixel 0.
func (s *StripGrpcService) SetPixels(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	data := req.GetValue()
	if len(data)%3 != 0 {
		return nil, status.Errorf(codes.InvalidArgument, "pixel data length %d is not a multiple of 3", len(data))
	}
	if len(data)/3 > s.controller.Len() {
		return nil, status.Errorf(codes.OutOfRange, "%d pixels sent to a strip of %d", len(data)/3, s.controller.Len())
	}

	colors := make([]pixel.Color, len(data)/3)
	for i := range colors {
		colors[i] = pixel.Color{Red: data[3*i], Green: data[3*i+1], Blue: data[3*i+2]}
	}

	s.controller.Load(ctx, colors)
	return &emptypb.Empty{}, nil
}

func (s *StripGrpcService) Clear(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.controller.Clear(ctx)), nil
}

func (s *StripGrpcService) ForceClear(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.controller.ForceClear(ctx)), nil
}

func (s *StripGrpcService) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	snapshot := s.controller.Stats(ctx)
	stats, err := structpb.NewStruct(map[string]any{
		"name":           s.controller.Name(),
		"pixels":         s.controller.Len(),
		"frames":         snapshot.Frames,
		"aborted_frames": snapshot.AbortedFrames,
		"fps":            snapshot.FPS,
		"elapsed_ms":     snapshot.Elapsed.Milliseconds(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode stats: %s", err.Error())
	}

	return stats, nil
}

func (s *StripGrpcService) ClearStats(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.controller.ClearStats(ctx)
	return &emptypb.Empty{}, nil
}
