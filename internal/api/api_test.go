package api_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/compute-blade-community/pixelwire/internal/api"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/strip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type fakeStrip struct {
	mu          sync.Mutex
	colors      []pixel.Color
	brightness  []uint8
	cleared     int
	forced      int
	statsResets int
}

func newFakeStrip(n int) *fakeStrip {
	return &fakeStrip{colors: make([]pixel.Color, n)}
}

func (f *fakeStrip) Name() string { return "fake" }
func (f *fakeStrip) Len() int     { return len(f.colors) }

func (f *fakeStrip) Show(_ context.Context, brightness uint8) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.brightness = append(f.brightness, brightness)
	return true
}

func (f *fakeStrip) Fill(_ context.Context, c pixel.Color) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.colors {
		f.colors[i] = c
	}
}

func (f *fakeStrip) Set(_ context.Context, i int, c pixel.Color) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.colors[i] = c
}

func (f *fakeStrip) Load(_ context.Context, colors []pixel.Color) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.colors, colors)
}

func (f *fakeStrip) Clear(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return true
}

func (f *fakeStrip) ForceClear(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forced++
	return false
}

func (f *fakeStrip) Stats(context.Context) strip.Snapshot {
	return strip.Snapshot{Frames: 10, AbortedFrames: 1, Elapsed: 2 * time.Second, FPS: 5}
}

func (f *fakeStrip) ClearStats(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsResets++
}

func startServer(t *testing.T, controller api.StripController) *api.StripServiceClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	service := api.NewGrpcApiServer(api.WithStripController(controller))

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Nil(t, service.ServeListener(context.Background(), lis))
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		service.GracefulStop()
		<-done
	})

	return api.NewStripServiceClient(conn)
}

func TestService_Show(t *testing.T) {
	t.Parallel()

	fake := newFakeStrip(4)
	client := startServer(t, fake)
	ctx := context.Background()

	resp, err := client.Show(ctx, wrapperspb.UInt32(200))
	require.NoError(t, err)
	assert.True(t, resp.GetValue())
	assert.Equal(t, []uint8{200}, fake.brightness)

	_, err = client.Show(ctx, wrapperspb.UInt32(256))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestService_Fill(t *testing.T) {
	t.Parallel()

	fake := newFakeStrip(3)
	client := startServer(t, fake)
	ctx := context.Background()

	_, err := client.Fill(ctx, wrapperspb.UInt32(0x102030))
	require.NoError(t, err)
	for _, c := range fake.colors {
		assert.Equal(t, pixel.Color{Red: 0x10, Green: 0x20, Blue: 0x30}, c)
	}

	_, err = client.Fill(ctx, wrapperspb.UInt32(0x1000000))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestService_SetPixel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		fields map[string]any
		code   codes.Code
	}{
		{name: "valid", fields: map[string]any{"index": 2, "color": 0xFF0000}, code: codes.OK},
		{name: "negative index", fields: map[string]any{"index": -1, "color": 0}, code: codes.OutOfRange},
		{name: "index past end", fields: map[string]any{"index": 4, "color": 0}, code: codes.OutOfRange},
		{name: "fractional index", fields: map[string]any{"index": 1.5, "color": 0}, code: codes.OutOfRange},
		{name: "missing color", fields: map[string]any{"index": 0}, code: codes.InvalidArgument},
		{name: "color too wide", fields: map[string]any{"index": 0, "color": 0x1000000}, code: codes.InvalidArgument},
		{name: "color as string", fields: map[string]any{"index": 0, "color": "red"}, code: codes.InvalidArgument},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := newFakeStrip(4)
			client := startServer(t, fake)

			req, err := structpb.NewStruct(tt.fields)
			require.NoError(t, err)

			_, err = client.SetPixel(context.Background(), req)
			assert.Equal(t, tt.code, status.Code(err))
			if tt.code == codes.OK {
				assert.Equal(t, pixel.Color{Red: 0xFF}, fake.colors[2])
			}
		})
	}
}

func TestService_SetPixels(t *testing.T) {
	t.Parallel()

	fake := newFakeStrip(3)
	client := startServer(t, fake)
	ctx := context.Background()

	_, err := client.SetPixels(ctx, wrapperspb.Bytes([]byte{1, 2, 3, 4, 5, 6}))
	require.NoError(t, err)
	assert.Equal(t, []pixel.Color{{Red: 1, Green: 2, Blue: 3}, {Red: 4, Green: 5, Blue: 6}, {}}, fake.colors)

	_, err = client.SetPixels(ctx, wrapperspb.Bytes([]byte{1, 2}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.SetPixels(ctx, wrapperspb.Bytes(make([]byte, 12)))
	assert.Equal(t, codes.OutOfRange, status.Code(err))
}

func TestService_ClearAndForceClear(t *testing.T) {
	t.Parallel()

	fake := newFakeStrip(2)
	client := startServer(t, fake)
	ctx := context.Background()

	cleared, err := client.Clear(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.True(t, cleared.GetValue())

	forced, err := client.ForceClear(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.False(t, forced.GetValue())

	assert.Equal(t, 1, fake.cleared)
	assert.Equal(t, 1, fake.forced)
}

func TestService_Stats(t *testing.T) {
	t.Parallel()

	fake := newFakeStrip(8)
	client := startServer(t, fake)
	ctx := context.Background()

	stats, err := client.GetStats(ctx, &emptypb.Empty{})
	require.NoError(t, err)

	fields := stats.AsMap()
	assert.Equal(t, "fake", fields["name"])
	assert.InDelta(t, 8, fields["pixels"], 0)
	assert.InDelta(t, 10, fields["frames"], 0)
	assert.InDelta(t, 1, fields["aborted_frames"], 0)
	assert.InDelta(t, 5, fields["fps"], 0)
	assert.InDelta(t, 2000, fields["elapsed_ms"], 0)

	_, err = client.ClearStats(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.statsResets)
}

func TestListenModeFromString(t *testing.T) {
	t.Parallel()

	mode, err := api.ListenModeFromString("TCP")
	assert.Nil(t, err)
	assert.Equal(t, api.ModeTCP, mode)

	mode, err = api.ListenModeFromString("unix")
	assert.Nil(t, err)
	assert.Equal(t, api.ModeUnix, mode)

	_, err = api.ListenModeFromString("udp")
	assert.NotNil(t, err)
}

func TestServe_RequiresAddress(t *testing.T) {
	t.Parallel()

	service := api.NewGrpcApiServer(api.WithStripController(newFakeStrip(1)))
	err := service.Serve(context.Background())
	require.NotNil(t, err)
	assert.NotEmpty(t, err.Advice())
}
