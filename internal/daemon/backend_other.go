//go:build !linux || tinygo

package daemon

import (
	"context"
	"fmt"

	"github.com/compute-blade-community/pixelwire/pkg/timing"
	"github.com/sierrasoftworks/humane-errors-go"
)

func openPlatformWiring(_ context.Context, cfg StripConfig, _ timing.Profile) (*wiring, humane.Error) {
	return nil, humane.New(fmt.Sprintf("the %s backend needs Linux GPIO", cfg.Backend),
		"use strip.backend 'sim' on this platform",
	)
}
