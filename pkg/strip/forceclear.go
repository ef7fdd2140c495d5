package strip

import (
	"github.com/compute-blade-community/pixelwire/pkg/hal"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ForceClearAttempts is the number of blank transmissions ForceClear tries.
const ForceClearAttempts = 5

var (
	forceClearCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Name:      "force_clear_attempts_count",
		Help:      "Blank transmissions attempted by force clear",
	}, []string{"strip"})

	forceClearFailedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Name:      "force_clear_failures_count",
		Help:      "Force clears that left the chain in an unknown state",
	}, []string{"strip"})
)

// ForceClear blanks numPixels pixels on pin without touching any pixel buffer. It configures the
// pin itself, so it works before Begin and from shutdown paths. The pin is left low.
// Every attempt is a single transmission, the retry policy of tx does not apply.
// It reports whether one of the attempts succeeded, and false if the pin cannot be made an output.
func ForceClear(tx *Transmitter, pin hal.Pin, numPixels int) bool {
	clock := tx.ctx.clock
	reset := tx.profile.ResetPeriod()

	defer pin.Low()
	if err := pin.Output(); err != nil {
		forceClearFailedCounter.WithLabelValues(tx.name).Inc()
		return false
	}
	pin.Low()

	if numPixels == 0 {
		return true
	}

	clock.Sleep(reset)

	frame := pixel.BlankFrame(numPixels)
	for i := 0; i < ForceClearAttempts; i++ {
		forceClearCounter.WithLabelValues(tx.name).Inc()
		if tx.attempt(frame) {
			return true
		}
		clock.Sleep(reset)
	}
	forceClearFailedCounter.WithLabelValues(tx.name).Inc()
	return false
}
