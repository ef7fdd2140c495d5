// Package pulse offloads WS281x waveform generation to a pulse/pattern peripheral with a fixed pool of channels.
package pulse

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrChannelUnavailable = errors.New("no free pulse channel")
	ErrTimeout            = errors.New("timed out waiting for pulse channel")
)

// DefaultTimeout bounds the wait for a channel to finish a frame.
const DefaultTimeout = 100 * time.Millisecond

var (
	exhaustedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Subsystem: "pulse",
		Name:      "channel_exhausted_count",
		Help:      "Transmissions rejected because every pulse channel was in use",
	}, []string{"strip"})

	timeoutCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Subsystem: "pulse",
		Name:      "timeout_count",
		Help:      "Transmissions that did not complete before the channel timeout",
	}, []string{"strip"})
)

// Item is one pulse pair in peripheral ticks. A zero Item is idle.
type Item struct {
	Duration0 uint32
	Level0    bool
	Duration1 uint32
	Level1    bool
}

func (i Item) IsZero() bool { return i == Item{} }

// Ticks is the total length of the pair.
func (i Item) Ticks() uint32 { return i.Duration0 + i.Duration1 }

// TranslateFunc converts source bytes into items on demand. src is the unsent remainder of
// the buffer passed to Write. It returns how many bytes were consumed and items produced.
type TranslateFunc func(src []byte, dst []Item) (consumed, produced int)

// Peripheral is a pulse generator with independent channels.
type Peripheral interface {
	// Channels is the number of independent channels.
	Channels() int
	// Configure routes channel ch to pin and returns the channel's counter clock in Hz.
	Configure(ch, pin int) (uint64, error)
	// Write starts sending src on channel ch, pulling items through translate.
	Write(ch int, src []byte, translate TranslateFunc) error
	// Wait blocks until channel ch finished sending or timeout elapsed.
	Wait(ch int, timeout time.Duration) error
	// Release disconnects channel ch from its pin.
	Release(ch int)
}
