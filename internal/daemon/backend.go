package daemon

import (
	"context"
	"errors"
	"io"

	"github.com/compute-blade-community/pixelwire/pkg/hal"
	"github.com/compute-blade-community/pixelwire/pkg/pulse"
	"github.com/compute-blade-community/pixelwire/pkg/strip"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
	"github.com/sierrasoftworks/humane-errors-go"
)

// wiring is everything a strip needs from the platform.
type wiring struct {
	backend strip.Backend
	// data is driven low by Begin and ForceClear. Hardware backends own their line and leave it nil.
	data    hal.Pin
	trigger hal.Pin
	abort   hal.Pin
	sim     *pulse.SimPeripheral
	closers []io.Closer
}

func (w *wiring) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i].Close())
	}
	return errors.Join(errs...)
}

func openWiring(ctx context.Context, cfg StripConfig, profile timing.Profile) (*wiring, humane.Error) {
	if cfg.Backend == BackendSim {
		return simWiring(cfg, profile), nil
	}

	return openPlatformWiring(ctx, cfg, profile)
}

func simWiring(cfg StripConfig, profile timing.Profile) *wiring {
	periph := pulse.NewSimPeripheral(1, profile.FrequencyHz())
	gen := pulse.NewPool(periph).Generator(cfg.GPIO.Line, profile,
		pulse.WithTimeout(cfg.HardwareTimeout),
		pulse.WithName(cfg.Name),
	)

	return &wiring{backend: gen, sim: periph}
}
