package pulse

import (
	"fmt"
	"time"

	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
)

type GeneratorOption func(*Generator)

func WithTimeout(timeout time.Duration) GeneratorOption {
	return func(g *Generator) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithName labels the metrics of this generator.
func WithName(name string) GeneratorOption {
	return func(g *Generator) {
		g.name = name
	}
}

// Generator is the hardware transmit backend for one LED chain.
type Generator struct {
	pool    *Pool
	pin     int
	profile timing.Profile
	timeout time.Duration
	name    string
}

// Generator creates a backend that sends on pin through any free channel of the pool.
func (p *Pool) Generator(pin int, profile timing.Profile, opts ...GeneratorOption) *Generator {
	g := &Generator{
		pool:    p,
		pin:     pin,
		profile: profile,
		timeout: DefaultTimeout,
		name:    "default",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Templates converts the profile into bit0 and bit1 pulse pairs for a counter clock.
func Templates(profile timing.Profile, counterHz uint64) (bit0, bit1 Item) {
	ticks := func(ns uint32) uint32 {
		return uint32(counterHz * uint64(ns) / 1_000_000_000)
	}

	t0h, t1h, period := ticks(profile.T0H), ticks(profile.T1H), ticks(profile.Period)
	bit0 = Item{Duration0: t0h, Level0: true, Duration1: period - t0h, Level1: false}
	bit1 = Item{Duration0: t1h, Level0: true, Duration1: period - t1h, Level1: false}
	return bit0, bit1
}

// Transmit sends the frame and reports success.
func (g *Generator) Transmit(f pixel.Frame) bool {
	return g.Send(f) == nil
}

// Send is Transmit with the failure cause.
func (g *Generator) Send(f pixel.Frame) error {
	if f.Length == 0 {
		return nil
	}

	slot, ok := g.pool.Acquire()
	if !ok {
		exhaustedCounter.WithLabelValues(g.name).Inc()
		return ErrChannelUnavailable
	}
	defer g.pool.Release(slot)

	periph := g.pool.periph
	counterHz, err := periph.Configure(slot.index, g.pin)
	if err != nil {
		return fmt.Errorf("failed to configure pulse channel %d: %w", slot.index, err)
	}
	defer periph.Release(slot.index)

	bit0, bit1 := Templates(g.profile, counterHz)
	if bit0.Duration0 == 0 || bit0.Duration0 >= bit1.Duration0 {
		return fmt.Errorf("counter clock of %d Hz cannot resolve %s timing", counterHz, g.profile.Name)
	}

	src, blank := f.Data, f.Data == nil
	if blank {
		src = slot.blankSource(f.Length)
	} else if f.Length < len(src) {
		src = src[:f.Length]
	}
	g.pool.bind(slot, f, src, blank, bit0, bit1)

	if err := periph.Write(slot.index, src, g.pool.translate); err != nil {
		return fmt.Errorf("failed to start pulse channel %d: %w", slot.index, err)
	}

	if err := periph.Wait(slot.index, g.timeout); err != nil {
		timeoutCounter.WithLabelValues(g.name).Inc()
		return err
	}

	return nil
}
