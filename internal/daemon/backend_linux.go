//go:build linux && !tinygo

package daemon

import (
	"context"
	"fmt"
	"io"

	"github.com/compute-blade-community/pixelwire/pkg/encoder"
	"github.com/compute-blade-community/pixelwire/pkg/hal"
	"github.com/compute-blade-community/pixelwire/pkg/log"
	"github.com/compute-blade-community/pixelwire/pkg/pulse"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
	"github.com/sierrasoftworks/humane-errors-go"
	"go.uber.org/zap"
)

func openPlatformWiring(ctx context.Context, cfg StripConfig, profile timing.Profile) (*wiring, humane.Error) {
	w := &wiring{}

	switch cfg.Backend {
	case BackendSoftware:
		pin, err := openDataPin(ctx, cfg)
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, pin)
		w.data = pin
		w.backend = encoder.New(pin, hal.NewMonotonicCounter(), profile,
			encoder.WithInterruptTolerance(cfg.TolerateInterrupts),
		)

	case BackendHardware:
		platform, err := hal.DetectPlatform(ctx)
		if err != nil {
			return nil, humane.Wrap(err, "failed to detect the platform",
				"the hardware backend needs a device tree, use the software backend otherwise",
			)
		}
		if platform != hal.PlatformBcm2712 {
			return nil, humane.New(fmt.Sprintf("no pulse peripheral is supported on %s", platform),
				"the hardware backend requires a Raspberry Pi 5 (bcm2712)",
				"use strip.backend 'software' on this platform",
			)
		}

		periph, err := pulse.OpenRP1Peripheral()
		if err != nil {
			return nil, humane.Wrap(err, "failed to map the RP1 peripherals",
				"run the daemon as root or grant access to /dev/mem",
			)
		}
		w.closers = append(w.closers, periph)
		w.backend = pulse.NewPool(periph).Generator(cfg.GPIO.Line, profile,
			pulse.WithTimeout(cfg.HardwareTimeout),
			pulse.WithName(cfg.Name),
		)
	}

	if cfg.Debug.Enabled {
		trigger, err := hal.OpenLinePin(cfg.GPIO.Chip, cfg.Debug.TriggerLine)
		if err != nil {
			_ = w.Close()
			return nil, humane.Wrap(err, "failed to request the debug trigger line", "check strip.debug.trigger_line")
		}
		w.closers = append(w.closers, trigger)

		abort, err := hal.OpenLinePin(cfg.GPIO.Chip, cfg.Debug.AbortLine)
		if err != nil {
			_ = w.Close()
			return nil, humane.Wrap(err, "failed to request the debug abort line", "check strip.debug.abort_line")
		}
		w.closers = append(w.closers, abort)

		w.trigger, w.abort = trigger, abort
		log.FromContext(ctx).Info("Debug lines enabled",
			zap.Int("trigger_line", cfg.Debug.TriggerLine),
			zap.Int("abort_line", cfg.Debug.AbortLine),
		)
	}

	return w, nil
}

type dataPin interface {
	hal.Pin
	io.Closer
}

// softwareDriver names the driver for the bit-banged data line. Only RP1 registered IO
// toggles fast enough for WS281x timing, gpiod edges take microseconds.
func softwareDriver(platform hal.Platform) string {
	if platform == hal.PlatformBcm2712 {
		return "rio"
	}
	return "gpiod"
}

func openDataPin(ctx context.Context, cfg StripConfig) (dataPin, humane.Error) {
	platform, err := hal.DetectPlatform(ctx)
	if err != nil {
		log.FromContext(ctx).Debug("Platform detection failed", zap.Error(err))
	}

	if softwareDriver(platform) == "rio" {
		pin, err := hal.OpenRIOPin(cfg.GPIO.Line)
		if err != nil {
			return nil, humane.Wrap(err, "failed to map the RP1 registered IO block",
				"run the daemon as root or grant access to /dev/mem",
				"check strip.gpio.line is in GPIO bank 0",
			)
		}
		log.FromContext(ctx).Info("Driving data line through RP1 registered IO", zap.Int("line", cfg.GPIO.Line))
		return pin, nil
	}

	pin, err := hal.OpenLinePin(cfg.GPIO.Chip, cfg.GPIO.Line)
	if err != nil {
		return nil, humane.Wrap(err, "failed to request the data line",
			"check strip.gpio.chip and strip.gpio.line",
			"ensure no other process holds the line",
		)
	}
	log.FromContext(ctx).Warn("Driving data line through gpiod, edges are likely too slow for WS281x timing",
		zap.String("platform", string(platform)),
	)
	return pin, nil
}
