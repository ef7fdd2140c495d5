// Package simhal is a deterministic stand-in for the hardware seam.
// The cycle clock advances on every read, so busy-wait loops terminate, and the pin records
// each edge with the cycle it happened at so waveforms can be decoded back into bytes.
package simhal

import (
	"fmt"
	"time"

	"github.com/compute-blade-community/pixelwire/pkg/timing"
)

// Clock is a virtual cycle counter.
type Clock struct {
	now  uint32
	step uint32
}

// NewClock starts at start and advances step cycles per read.
func NewClock(start, step uint32) *Clock {
	if step == 0 {
		step = 1
	}
	return &Clock{now: start, step: step}
}

func (c *Clock) Cycles() uint32 {
	c.now += c.step
	return c.now
}

// Stall jumps the clock forward, as an interrupt handler would.
func (c *Clock) Stall(cycles uint32) { c.now += cycles }

// Edge is one level change of a Pin.
type Edge struct {
	High bool
	At   uint32
}

// Pin records level changes against a Clock.
type Pin struct {
	clock   *Clock
	high    bool
	output  bool
	edges   []Edge
	stalls  map[int]uint32
	outputs int

	outputErr error
	writeErr  error
	failed    error
}

func NewPin(clock *Clock) *Pin {
	return &Pin{clock: clock, stalls: map[int]uint32{}}
}

// StallOnEdge stalls the clock right after the n-th recorded edge (0 based).
func (p *Pin) StallOnEdge(n int, cycles uint32) {
	p.stalls[n] = cycles
}

// FailOutput makes every Output call return err.
func (p *Pin) FailOutput(err error) { p.outputErr = err }

// FailWrites makes every High and Low report err through Err, like a line whose ioctl fails.
func (p *Pin) FailWrites(err error) { p.writeErr = err }

// Err returns and clears the last write error.
func (p *Pin) Err() error {
	err := p.failed
	p.failed = nil
	return err
}

func (p *Pin) record(high bool) {
	if p.writeErr != nil {
		p.failed = p.writeErr
	}
	p.high = high
	p.edges = append(p.edges, Edge{High: high, At: p.clock.now})
	if s, ok := p.stalls[len(p.edges)-1]; ok {
		p.clock.Stall(s)
	}
}

func (p *Pin) High() { p.record(true) }
func (p *Pin) Low()  { p.record(false) }

func (p *Pin) Output() error {
	if p.outputErr != nil {
		return p.outputErr
	}
	p.output = true
	p.outputs++
	p.high = false
	return nil
}

// Level is the current output level.
func (p *Pin) Level() bool { return p.high }

// IsOutput reports whether Output was called at least once.
func (p *Pin) IsOutput() bool { return p.output }

// Outputs counts calls to Output.
func (p *Pin) Outputs() int { return p.outputs }

func (p *Pin) Edges() []Edge { return p.edges }

// Reset forgets recorded edges.
func (p *Pin) Reset() { p.edges = nil }

// Decode turns recorded pulses back into bytes using the midpoint between T0H and T1H.
func Decode(edges []Edge, profile timing.Profile) ([]byte, error) {
	threshold := (profile.CyclesT0H() + profile.CyclesT1H()) / 2

	var (
		out  []byte
		cur  byte
		bits int
	)
	for i := 0; i < len(edges); i++ {
		if !edges[i].High {
			continue
		}
		if i+1 >= len(edges) || edges[i+1].High {
			return out, fmt.Errorf("unterminated pulse at edge %d", i)
		}
		cur <<= 1
		if edges[i+1].At-edges[i].At >= threshold {
			cur |= 1
		}
		bits++
		if bits == 8 {
			out = append(out, cur)
			cur, bits = 0, 0
		}
		i++
	}

	if bits != 0 {
		return out, fmt.Errorf("%d trailing bits", bits)
	}
	return out, nil
}

// Periods returns the cycle distance between consecutive rising edges.
func Periods(edges []Edge) []uint32 {
	var (
		periods []uint32
		last    uint32
		seen    bool
	)
	for _, e := range edges {
		if !e.High {
			continue
		}
		if seen {
			periods = append(periods, e.At-last)
		}
		last, seen = e.At, true
	}
	return periods
}

// Time is a virtual wall clock. Sleep advances it instantly.
type Time struct {
	now    time.Time
	sleeps []time.Duration
}

func NewTime(start time.Time) *Time {
	return &Time{now: start}
}

func (t *Time) Now() time.Time { return t.now }

func (t *Time) Sleep(d time.Duration) {
	t.sleeps = append(t.sleeps, d)
	if d > 0 {
		t.now = t.now.Add(d)
	}
}

// Advance moves time forward without recording a sleep.
func (t *Time) Advance(d time.Duration) { t.now = t.now.Add(d) }

func (t *Time) Sleeps() []time.Duration { return t.sleeps }

// Masker counts lock and unlock calls.
type Masker struct {
	Locks   int
	Unlocks int
	held    bool
}

func (m *Masker) Lock() {
	m.Locks++
	m.held = true
}

func (m *Masker) Unlock() {
	m.Unlocks++
	m.held = false
}

// Held reports whether the masker is currently locked.
func (m *Masker) Held() bool { return m.held }
