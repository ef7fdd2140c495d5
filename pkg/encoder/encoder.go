// Package encoder bit-bangs WS281x frames on a GPIO pin, timed by a cycle counter.
package encoder

import (
	"github.com/compute-blade-community/pixelwire/pkg/hal"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
)

const (
	// slotSlackNs is how late a bit slot may start before the frame is abandoned.
	slotSlackNs = 600
	// highSlackNs is how far a high phase may overshoot before the frame is abandoned.
	highSlackNs = 300
)

// State is a phase of the per-bit state machine.
type State uint8

const (
	AwaitSlot State = iota
	Raise
	HoldHigh
	Lower
	EndOfFrame
)

func (s State) String() string {
	switch s {
	case AwaitSlot:
		return "await_slot"
	case Raise:
		return "raise"
	case HoldHigh:
		return "hold_high"
	case Lower:
		return "lower"
	case EndOfFrame:
		return "end_of_frame"
	}
	return "unknown"
}

type Option func(*Encoder)

// WithInterruptTolerance enables overrun detection. Without it a late bit is sent anyway.
func WithInterruptTolerance(tolerate bool) Option {
	return func(e *Encoder) {
		e.tolerate = tolerate
	}
}

// WithTrace receives every state transition. It is meant for tests and slows the loop down.
func WithTrace(trace func(State)) Option {
	return func(e *Encoder) {
		e.trace = trace
	}
}

// errReporter is implemented by pins that cannot return an error from High and Low.
type errReporter interface {
	Err() error
}

// Encoder is the software transmit backend.
type Encoder struct {
	pin      hal.Pin
	errs     errReporter
	counter  hal.CycleCounter
	tolerate bool
	trace    func(State)

	t0h, t1h, period uint32
	slotSlack        uint32
	highSlack        uint32
}

// New binds an encoder to a pin and a counter running at the profile's frequency.
func New(pin hal.Pin, counter hal.CycleCounter, profile timing.Profile, opts ...Option) *Encoder {
	e := &Encoder{
		pin:       pin,
		counter:   counter,
		t0h:       profile.CyclesT0H(),
		t1h:       profile.CyclesT1H(),
		period:    profile.CyclesPeriod(),
		slotSlack: profile.NanosToCycles(slotSlackNs),
		highSlack: profile.NanosToCycles(highSlackNs),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.errs, _ = pin.(errReporter)
	return e
}

func (e *Encoder) enter(s State) {
	if e.trace != nil {
		e.trace(s)
	}
}

// Transmit sends the frame MSB first and reports whether it completed without an overrun.
// The caller masks interrupts and keeps the pin configured as an output.
func (e *Encoder) Transmit(f pixel.Frame) bool {
	r := pixel.NewReader(f)
	if !r.More() {
		return true
	}

	if e.errs != nil {
		// drop errors of writes made outside a frame
		_ = e.errs.Err()
	}

	period := e.period
	pix := r.Next()
	mask := byte(0x80)

	var start, c uint32
	started := false

	for {
		t := e.t0h
		if pix&mask != 0 {
			t = e.t1h
		}

		e.enter(AwaitSlot)
		c = e.counter.Cycles()
		if started {
			if e.tolerate && c-start > period+e.slotSlack {
				period = 0
				break
			}
			for c-start < period {
				c = e.counter.Cycles()
			}
		}

		e.enter(Raise)
		e.pin.High()
		start = c
		started = true

		mask >>= 1
		if mask == 0 && r.More() {
			mask = 0x80
		}

		e.enter(HoldHigh)
		for c-start < t {
			c = e.counter.Cycles()
		}

		e.enter(Lower)
		e.pin.Low()

		if e.tolerate && c-start > t+e.highSlack {
			period = 0
			break
		}

		if mask == 0 {
			break
		}
		if mask == 0x80 {
			pix = r.Next()
		}
	}

	e.enter(EndOfFrame)
	for e.counter.Cycles()-start < period {
	}

	if e.errs != nil && e.errs.Err() != nil {
		return false
	}
	return period != 0
}
