// Package strip wraps a transmit backend with refresh throttling, statistics and bounded retries.
package strip

import (
	"fmt"

	"github.com/compute-blade-community/pixelwire/pkg/hal"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sierrasoftworks/humane-errors-go"
)

var (
	framesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Name:      "frames_count",
		Help:      "Transmission attempts, including aborted ones",
	}, []string{"strip"})

	abortedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Name:      "aborted_frames_count",
		Help:      "Transmission attempts that reported failure",
	}, []string{"strip"})

	retryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Name:      "retries_count",
		Help:      "Transmissions repeated after a failed attempt",
	}, []string{"strip"})
)

// DefaultRetryBudget applies when interrupts may preempt a transmission.
const DefaultRetryBudget = 2

// Backend sends one frame and reports whether it completed.
type Backend interface {
	Transmit(f pixel.Frame) bool
}

// RetryPolicy bounds the repetitions of a failed transmission.
type RetryPolicy struct {
	TolerateInterrupts bool `yaml:"tolerate_interrupts" mapstructure:"tolerate_interrupts"`
	Budget             int  `yaml:"retry_budget" mapstructure:"retry_budget"`
}

// DefaultRetryPolicy retries only when interrupts are tolerated.
func DefaultRetryPolicy(tolerateInterrupts bool) RetryPolicy {
	if tolerateInterrupts {
		return RetryPolicy{TolerateInterrupts: true, Budget: DefaultRetryBudget}
	}
	return RetryPolicy{}
}

func (p RetryPolicy) Validate() humane.Error {
	if p.Budget < 0 {
		return humane.New(fmt.Sprintf("retry budget must not be negative, got %d", p.Budget),
			"set strip.retry_budget to 0 or more")
	}
	if !p.TolerateInterrupts && p.Budget != 0 {
		return humane.New(fmt.Sprintf("retry budget %d requires interrupt tolerance", p.Budget),
			"set strip.retry_budget to 0 when strip.tolerate_interrupts is disabled",
			"or enable strip.tolerate_interrupts",
		)
	}
	return nil
}

type TransmitterOption func(*Transmitter)

func WithRetryPolicy(policy RetryPolicy) TransmitterOption {
	return func(t *Transmitter) {
		t.policy = policy
	}
}

// WithInterruptMasker is held around every attempt.
func WithInterruptMasker(masker hal.InterruptMasker) TransmitterOption {
	return func(t *Transmitter) {
		t.masker = masker
	}
}

// WithName labels the metrics of the transmitter.
func WithName(name string) TransmitterOption {
	return func(t *Transmitter) {
		t.name = name
	}
}

// Transmitter is the public show path of one chain.
type Transmitter struct {
	backend Backend
	profile timing.Profile
	ctx     *Context
	policy  RetryPolicy
	masker  hal.InterruptMasker
	name    string
}

func NewTransmitter(backend Backend, profile timing.Profile, ctx *Context, opts ...TransmitterOption) (*Transmitter, humane.Error) {
	t := &Transmitter{
		backend: backend,
		profile: profile,
		ctx:     ctx,
		masker:  hal.ThreadLock{},
		name:    "default",
	}

	for _, opt := range opts {
		opt(t)
	}

	if err := t.policy.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transmitter) Profile() timing.Profile { return t.profile }
func (t *Transmitter) Context() *Context       { return t.ctx }
func (t *Transmitter) Policy() RetryPolicy     { return t.policy }

// ShowBytes sends pixels in the given order at brightness 0..255.
func (t *Transmitter) ShowBytes(pixels []byte, order pixel.Order, brightness uint8) bool {
	return t.Show(pixel.NewFrame(pixels, order, brightness))
}

// Show sends the frame, retrying up to the policy budget. Every attempt waits for the refresh
// throttle and counts as one frame. An empty frame succeeds without touching the line.
func (t *Transmitter) Show(f pixel.Frame) bool {
	if f.Length == 0 {
		return true
	}

	for remaining := t.policy.Budget; ; remaining-- {
		if t.attempt(f) {
			return true
		}
		if remaining <= 0 {
			return false
		}

		retryCounter.WithLabelValues(t.name).Inc()
		t.ctx.clock.Sleep(t.profile.ResetPeriod())
	}
}

func (t *Transmitter) attempt(f pixel.Frame) bool {
	t.ctx.WaitRefresh(t.profile.MinDisplayPeriod())

	t.masker.Lock()
	t.ctx.begin()
	ok := t.backend.Transmit(f)
	t.masker.Unlock()

	t.ctx.finish(ok)

	framesCounter.WithLabelValues(t.name).Inc()
	if !ok {
		abortedCounter.WithLabelValues(t.name).Inc()
	}
	return ok
}

// CanShow reports whether a transmission would start without waiting.
func (t *Transmitter) CanShow() bool {
	return t.ctx.CanShow(t.profile.MinDisplayPeriod())
}
