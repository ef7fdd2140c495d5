// Package daemon runs one LED strip behind the gRPC API, the metrics endpoint and an optional Adalight source.
package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/compute-blade-community/pixelwire/internal/api"
	"github.com/compute-blade-community/pixelwire/pkg/log"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/source/adalight"
	"github.com/compute-blade-community/pixelwire/pkg/strip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pixelwire",
	Name:      "daemon_requests_count",
	Help:      "Strip operations handled by the daemon",
}, []string{"strip", "op"})

// Daemon owns the strip. All strip access goes through its mutex.
type Daemon struct {
	config Config
	wiring *wiring

	mu    sync.Mutex
	strip *strip.Strip

	grpc    *api.StripGrpcService
	metrics *http.Server
}

// New builds the platform wiring, the transmitter and the strip, and force-clears the chain.
func New(ctx context.Context, config Config) (*Daemon, humane.Error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	profile, err := config.Strip.Profile()
	if err != nil {
		return nil, err
	}
	order, err := pixel.ParseOrder(config.Strip.Order)
	if err != nil {
		return nil, err
	}

	w, err := openWiring(ctx, config.Strip, profile)
	if err != nil {
		return nil, err
	}

	txCtx := strip.NewContext(strip.WithDebugPins(w.trigger, w.abort))
	tx, err := strip.NewTransmitter(w.backend, profile, txCtx,
		strip.WithRetryPolicy(config.Strip.RetryPolicy),
		strip.WithName(config.Strip.Name),
	)
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	d := &Daemon{
		config: config,
		wiring: w,
		strip:  strip.New(config.Strip.Pixels, order, tx, w.data),
	}

	if err := d.strip.Begin(); err != nil {
		_ = w.Close()
		return nil, humane.Wrap(err, "failed to drive the data line low",
			"check that the data line is configured as an output",
		)
	}

	logger := log.FromContext(ctx).With(zap.String("strip", config.Strip.Name))
	if !d.strip.ForceClear() {
		logger.Warn("Force clear at startup did not complete, the chain may show stale colors")
	}
	logger.Info("Strip ready",
		zap.Int("pixels", config.Strip.Pixels),
		zap.Stringer("order", order),
		zap.String("chipset", profile.Name),
		zap.String("backend", string(config.Strip.Backend)),
		zap.Uint64("frequency_hz", profile.FrequencyHz()),
	)

	listenMode, err := api.ListenModeFromString(config.Listen.GrpcListenMode)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	grpcOpts := []api.GrpcApiServiceOption{
		api.WithStripController(d),
		api.WithListenAddr(config.Listen.Grpc),
		api.WithListenMode(listenMode),
	}
	if config.Listen.GrpcAuthenticated {
		tlsConfig, err := ServerTLSConfig(ctx, config.Listen.CertDir, serverHosts(config.Listen.Grpc))
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		grpcOpts = append(grpcOpts, api.WithTLSConfig(tlsConfig))
	}
	d.grpc = api.NewGrpcApiServer(grpcOpts...)

	if config.Listen.Metrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		d.metrics = &http.Server{Addr: config.Listen.Metrics, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	return d, nil
}

// Run serves until ctx is canceled or one of the servers fails.
func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := d.grpc.Serve(ctx); err != nil {
			log.FromContext(ctx).Error("Failed to serve grpc",
				zap.Error(err),
				zap.Strings("advice", err.Advice()),
			)
			return err
		}
		return nil
	})

	if d.metrics != nil {
		g.Go(func() error {
			log.FromContext(ctx).Info("Starting metrics server", zap.String("address", d.metrics.Addr))
			if err := d.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return humane.Wrap(err, "failed to serve metrics", "check listen.metrics or leave it empty to disable metrics")
			}
			return nil
		})
	}

	if d.config.Adalight.Enabled {
		g.Go(func() error {
			err := adalight.ListenSerial(ctx, d.config.Adalight.Port, d.config.Adalight.Baud, d.showColors)
			if err != nil && ctx.Err() == nil {
				return humane.Wrap(err, "adalight source failed", "check adalight.port and adalight.baud")
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		d.stopServers(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (d *Daemon) stopServers(ctx context.Context) {
	d.grpc.GracefulStop()

	if d.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := d.metrics.Shutdown(shutdownCtx); err != nil {
			log.FromContext(ctx).Warn("Failed to stop metrics server", zap.Error(err))
		}
	}
}

// GracefulStop blanks the chain, leaves the data line low and releases the platform.
func (d *Daemon) GracefulStop(ctx context.Context) error {
	log.FromContext(ctx).Info("Exiting, blanking strip")

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.strip.ForceClear() {
		log.FromContext(ctx).Warn("Force clear at shutdown did not complete")
	}
	d.strip.End()

	return d.wiring.Close()
}

// showColors loads a frame from an ingest source and latches it at the configured brightness.
func (d *Daemon) showColors(ctx context.Context, colors []pixel.Color) error {
	d.Load(ctx, colors)
	if !d.Show(ctx, d.config.Strip.Brightness) {
		log.FromContext(ctx).Debug("Frame aborted", zap.Int("leds", len(colors)))
	}
	return nil
}

func (d *Daemon) count(op string) {
	requestCounter.WithLabelValues(d.config.Strip.Name, op).Inc()
}

func (d *Daemon) Name() string { return d.config.Strip.Name }
func (d *Daemon) Len() int     { return d.strip.Len() }

func (d *Daemon) Show(ctx context.Context, brightness uint8) bool {
	d.count("show")
	d.mu.Lock()
	defer d.mu.Unlock()

	ok := d.strip.Show(brightness)
	if !ok {
		log.FromContext(ctx).Warn("Frame aborted after retries", zap.String("strip", d.Name()))
	}
	return ok
}

func (d *Daemon) Fill(_ context.Context, c pixel.Color) {
	d.count("fill")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strip.Fill(c)
}

func (d *Daemon) Set(_ context.Context, i int, c pixel.Color) {
	d.count("set")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strip.Set(i, c)
}

// Load copies colors to the start of the buffer. Pixels past len(colors) keep their value.
func (d *Daemon) Load(_ context.Context, colors []pixel.Color) {
	d.count("load")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strip.Buffer().Load(0, colors)
}

func (d *Daemon) Clear(context.Context) bool {
	d.count("clear")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.strip.Clear()
}

func (d *Daemon) ForceClear(ctx context.Context) bool {
	d.count("force_clear")
	d.mu.Lock()
	defer d.mu.Unlock()

	ok := d.strip.ForceClear()
	if !ok {
		log.FromContext(ctx).Warn("Force clear did not complete", zap.String("strip", d.Name()))
	}
	return ok
}

func (d *Daemon) Stats(context.Context) strip.Snapshot {
	return d.strip.Stats()
}

func (d *Daemon) ClearStats(context.Context) {
	d.count("clear_stats")
	d.strip.ClearStats()
}

// Pixels returns a copy of the buffer in RGB order.
func (d *Daemon) Pixels() []pixel.Color {
	d.mu.Lock()
	defer d.mu.Unlock()

	colors := make([]pixel.Color, d.strip.Len())
	for i := range colors {
		colors[i] = d.strip.Get(i)
	}
	return colors
}

var _ api.StripController = (*Daemon)(nil)
