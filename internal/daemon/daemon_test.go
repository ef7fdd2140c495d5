package daemon

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/compute-blade-community/pixelwire/internal/api"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/pulse"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newSimDaemon(t *testing.T, pixels int, settings map[string]any) *Daemon {
	t.Helper()

	v := viper.New()
	SetDefaults(v)
	v.Set("strip.backend", "sim")
	v.Set("strip.pixels", pixels)
	v.Set("listen.metrics", "")
	for k, val := range settings {
		v.Set(k, val)
	}

	cfg, herr := Load(v)
	require.Nil(t, herr)

	d, herr := New(context.Background(), cfg)
	require.Nil(t, herr)
	return d
}

// wireBytes decodes the last frame the simulated peripheral sent.
func wireBytes(t *testing.T, d *Daemon) []byte {
	t.Helper()

	profile, err := d.config.Strip.Profile()
	require.Nil(t, err)
	_, bit1 := pulse.Templates(profile, profile.FrequencyHz())
	return pulse.DecodeItems(d.wiring.sim.Items(0), bit1)
}

func TestNew_ForceClearsAtStartup(t *testing.T) {
	t.Parallel()

	d := newSimDaemon(t, 4, nil)

	assert.GreaterOrEqual(t, d.wiring.sim.Writes(), 1)
	assert.Equal(t, make([]byte, 12), wireBytes(t, d))
}

func TestDaemon_ShowSendsBufferInWireOrder(t *testing.T) {
	t.Parallel()

	d := newSimDaemon(t, 3, nil)
	ctx := context.Background()

	d.Fill(ctx, pixel.Color{Red: 255})
	d.Set(ctx, 1, pixel.Color{Blue: 0x40})
	require.True(t, d.Show(ctx, 255))

	assert.Equal(t, []byte{
		0, 255, 0,
		0, 0, 0x40,
		0, 255, 0,
	}, wireBytes(t, d))
}

func TestDaemon_ShowScalesBrightness(t *testing.T) {
	t.Parallel()

	d := newSimDaemon(t, 1, map[string]any{"strip.order": "RGB"})
	ctx := context.Background()

	d.Fill(ctx, pixel.Color{Red: 200, Green: 100, Blue: 50})
	require.True(t, d.Show(ctx, 127))

	// brightness 127 scales by 128/256
	assert.Equal(t, []byte{100, 50, 25}, wireBytes(t, d))
}

func TestDaemon_LoadKeepsTail(t *testing.T) {
	t.Parallel()

	d := newSimDaemon(t, 3, nil)
	ctx := context.Background()

	d.Fill(ctx, pixel.Color{Green: 9})
	d.Load(ctx, []pixel.Color{{Red: 1}, {Red: 2}})

	assert.Equal(t, []pixel.Color{{Red: 1}, {Red: 2}, {Green: 9}}, d.Pixels())
}

func TestDaemon_ClearAndStats(t *testing.T) {
	t.Parallel()

	d := newSimDaemon(t, 2, nil)
	ctx := context.Background()

	d.ClearStats(ctx)
	d.Fill(ctx, pixel.Color{Red: 1, Green: 2, Blue: 3})
	require.True(t, d.Show(ctx, 255))
	require.True(t, d.Clear(ctx))

	assert.Equal(t, []pixel.Color{{}, {}}, d.Pixels())
	assert.Equal(t, make([]byte, 6), wireBytes(t, d))

	stats := d.Stats(ctx)
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Zero(t, stats.AbortedFrames)
}

func TestDaemon_GracefulStopBlanksChain(t *testing.T) {
	t.Parallel()

	d := newSimDaemon(t, 2, nil)
	ctx := context.Background()

	d.Fill(ctx, pixel.Color{Red: 255, Green: 255, Blue: 255})
	require.True(t, d.Show(ctx, 255))
	require.False(t, bytes.Equal(make([]byte, 6), wireBytes(t, d)))

	require.NoError(t, d.GracefulStop(ctx))
	assert.Equal(t, make([]byte, 6), wireBytes(t, d))
	assert.Equal(t, []pixel.Color{{}, {}}, d.Pixels())
}

func TestDaemon_ShowColorsFromSource(t *testing.T) {
	t.Parallel()

	d := newSimDaemon(t, 2, map[string]any{"strip.brightness": 255, "strip.order": "RGB"})
	ctx := context.Background()

	require.NoError(t, d.showColors(ctx, []pixel.Color{{Red: 10, Green: 20, Blue: 30}}))
	assert.Equal(t, []byte{10, 20, 30, 0, 0, 0}, wireBytes(t, d))
}

func TestDaemon_RunServesGrpc(t *testing.T) {
	t.Parallel()

	socket := filepath.Join(t.TempDir(), "pixelwire.sock")
	d := newSimDaemon(t, 2, map[string]any{
		"listen.grpc":             socket,
		"listen.grpc_listen_mode": "unix",
		"strip.order":             "RGB",
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	conn, err := grpc.NewClient("unix://"+socket, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := api.NewStripServiceClient(conn)

	readyCtx, cancelReady := context.WithTimeout(ctx, 5*time.Second)
	defer cancelReady()
	_, err = client.GetStats(readyCtx, &emptypb.Empty{}, grpc.WaitForReady(true))
	require.NoError(t, err)

	_, err = client.SetPixels(ctx, wrapperspb.Bytes([]byte{1, 2, 3, 4, 5, 6}))
	require.NoError(t, err)

	shown, err := client.Show(ctx, wrapperspb.UInt32(255))
	require.NoError(t, err)
	assert.True(t, shown.GetValue())
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, wireBytes(t, d))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
