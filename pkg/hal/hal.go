// Package hal is the narrow seam between the transmit path and the hardware it toggles.
package hal

import (
	"runtime"
	"time"
)

// Pin is a single output line. High and Low sit on the bit-banging hot path and do not report errors.
type Pin interface {
	High()
	Low()
	// Output configures the line as an output driven low.
	Output() error
}

// CycleCounter is a free-running 32 bit counter. Callers compare readings with wrapping subtraction.
type CycleCounter interface {
	Cycles() uint32
}

// InterruptMasker keeps the transmitting goroutine from being preempted while a frame is on the wire.
type InterruptMasker interface {
	Lock()
	Unlock()
}

// Clock provides wall time for refresh throttling and reset delays.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the process clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// MonotonicCounterHz is the rate of MonotonicCounter.
const MonotonicCounterHz = 1_000_000_000

// MonotonicCounter counts nanoseconds of the monotonic clock, truncated to 32 bits.
type MonotonicCounter struct {
	epoch time.Time
}

func NewMonotonicCounter() *MonotonicCounter {
	return &MonotonicCounter{epoch: time.Now()}
}

func (m *MonotonicCounter) Cycles() uint32 {
	return uint32(time.Since(m.epoch))
}

// ThreadLock pins the calling goroutine to its OS thread for the duration of a frame.
// It cannot mask interrupts, so it is paired with interrupt tolerance.
type ThreadLock struct{}

func (ThreadLock) Lock()   { runtime.LockOSThread() }
func (ThreadLock) Unlock() { runtime.UnlockOSThread() }

// NopPin is used where a debug pin is not configured.
type NopPin struct{}

func (NopPin) High()         {}
func (NopPin) Low()          {}
func (NopPin) Output() error { return nil }

// Toggler flips a pin on every call, for oscilloscope triggers.
type Toggler struct {
	pin   Pin
	state bool
}

func NewToggler(pin Pin) *Toggler {
	if pin == nil {
		pin = NopPin{}
	}
	return &Toggler{pin: pin}
}

func (t *Toggler) Toggle() {
	t.state = !t.state
	if t.state {
		t.pin.High()
	} else {
		t.pin.Low()
	}
}
