package strip

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/compute-blade-community/pixelwire/pkg/hal"
)

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Frames        uint64
	AbortedFrames uint64
	Elapsed       time.Duration
	FPS           uint64
}

// Stats counts transmissions since the start of an epoch.
type Stats struct {
	clock   hal.Clock
	frames  atomic.Uint64
	aborted atomic.Uint64

	mu    sync.Mutex
	start time.Time
}

func newStats(clock hal.Clock) *Stats {
	return &Stats{clock: clock, start: clock.Now()}
}

func (s *Stats) increment(ok bool) {
	s.frames.Add(1)
	if !ok {
		s.aborted.Add(1)
	}
}

// Snapshot returns the counters and frames per second over the epoch. The epoch keeps the
// monotonic clock reading, a clock that still appears to run backwards yields zero elapsed time.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	start := s.start
	s.mu.Unlock()

	snap := Snapshot{
		Frames:        s.frames.Load(),
		AbortedFrames: s.aborted.Load(),
		Elapsed:       max(s.clock.Now().Sub(start), 0),
	}
	if ms := uint64(snap.Elapsed.Milliseconds()); ms > 0 {
		snap.FPS = snap.Frames * 1000 / ms
	}
	return snap
}

// Clear resets the counters and restarts the epoch.
func (s *Stats) Clear() {
	s.mu.Lock()
	s.start = s.clock.Now()
	s.mu.Unlock()

	s.frames.Store(0)
	s.aborted.Store(0)
}

type ContextOption func(*Context)

func WithClock(clock hal.Clock) ContextOption {
	return func(c *Context) {
		c.clock = clock
	}
}

// WithDebugPins toggles trigger at the start of every transmission and abort on every failed one.
func WithDebugPins(trigger, abort hal.Pin) ContextOption {
	return func(c *Context) {
		c.trigger = hal.NewToggler(trigger)
		c.abort = hal.NewToggler(abort)
	}
}

// Context is the per-chain transmission state. It belongs to exactly one chain and is not safe for concurrent use.
type Context struct {
	clock       hal.Clock
	lastDisplay time.Time
	stats       *Stats
	trigger     *hal.Toggler
	abort       *hal.Toggler
}

func NewContext(opts ...ContextOption) *Context {
	c := &Context{clock: hal.SystemClock{}}

	for _, opt := range opts {
		opt(c)
	}

	if c.trigger == nil {
		c.trigger = hal.NewToggler(nil)
		c.abort = hal.NewToggler(nil)
	}
	c.stats = newStats(c.clock)
	return c
}

func (c *Context) Stats() *Stats          { return c.stats }
func (c *Context) Clock() hal.Clock       { return c.clock }
func (c *Context) LastDisplay() time.Time { return c.lastDisplay }

// CanShow reports whether minPeriod has passed since the last transmission.
func (c *Context) CanShow(minPeriod time.Duration) bool {
	return c.lastDisplay.IsZero() || c.clock.Now().Sub(c.lastDisplay) > minPeriod
}

// WaitRefresh blocks until minPeriod has passed since the last transmission.
func (c *Context) WaitRefresh(minPeriod time.Duration) {
	if c.lastDisplay.IsZero() {
		return
	}
	if elapsed := c.clock.Now().Sub(c.lastDisplay); elapsed < minPeriod {
		c.clock.Sleep(minPeriod - elapsed)
	}
}

func (c *Context) begin() {
	c.trigger.Toggle()
}

func (c *Context) finish(ok bool) {
	c.stats.increment(ok)
	if !ok {
		c.abort.Toggle()
	}
	c.lastDisplay = c.clock.Now()
}
