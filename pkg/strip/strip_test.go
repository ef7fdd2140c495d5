package strip_test

import (
	"errors"
	"testing"
	"time"

	"github.com/compute-blade-community/pixelwire/pkg/encoder"
	"github.com/compute-blade-community/pixelwire/pkg/hal/simhal"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/strip"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profile = timing.MustProfile(timing.WS2812, 80)

type call struct {
	at    time.Time
	frame pixel.Frame
}

// scriptedBackend returns results in order and repeats the last one.
type scriptedBackend struct {
	clock   *simhal.Time
	results []bool
	calls   []call
}

func (b *scriptedBackend) Transmit(f pixel.Frame) bool {
	b.calls = append(b.calls, call{at: b.clock.Now(), frame: f})
	// a frame occupies the line for a while
	b.clock.Advance(profile.FrameDuration(f.Length))

	i := len(b.calls) - 1
	if i >= len(b.results) {
		i = len(b.results) - 1
	}
	return b.results[i]
}

func newTransmitter(t *testing.T, policy strip.RetryPolicy, results ...bool) (*strip.Transmitter, *scriptedBackend, *simhal.Time, *simhal.Masker) {
	t.Helper()

	clock := simhal.NewTime(time.Unix(1_700_000_000, 0))
	backend := &scriptedBackend{clock: clock, results: results}
	masker := &simhal.Masker{}

	tx, err := strip.NewTransmitter(backend, profile, strip.NewContext(strip.WithClock(clock)),
		strip.WithRetryPolicy(policy),
		strip.WithInterruptMasker(masker),
		strip.WithName(t.Name()),
	)
	require.Nil(t, err)
	return tx, backend, clock, masker
}

func TestTransmitter_RetryBound(t *testing.T) {
	t.Parallel()

	for _, budget := range []int{0, 1, 2, 5} {
		budget := budget
		t.Run("", func(t *testing.T) {
			t.Parallel()

			tx, backend, clock, masker := newTransmitter(t, strip.RetryPolicy{TolerateInterrupts: true, Budget: budget}, false)

			ok := tx.ShowBytes([]byte{1, 2, 3}, pixel.GRB, 255)
			assert.False(t, ok)
			assert.Len(t, backend.calls, budget+1)

			snap := tx.Context().Stats().Snapshot()
			assert.Equal(t, uint64(budget+1), snap.Frames)
			assert.Equal(t, uint64(budget+1), snap.AbortedFrames)
			assert.Equal(t, budget+1, masker.Locks)
			assert.Equal(t, masker.Locks, masker.Unlocks)

			resets := 0
			for _, d := range clock.Sleeps() {
				if d == profile.ResetPeriod() {
					resets++
				}
			}
			assert.Equal(t, budget, resets, "every retry waits a reset period")
		})
	}
}

func TestTransmitter_RecoversOnRetry(t *testing.T) {
	t.Parallel()

	tx, backend, _, _ := newTransmitter(t, strip.DefaultRetryPolicy(true), false, true)

	assert.True(t, tx.ShowBytes([]byte{1, 2, 3}, pixel.GRB, 255))
	assert.Len(t, backend.calls, 2)

	snap := tx.Context().Stats().Snapshot()
	assert.Equal(t, uint64(2), snap.Frames)
	assert.Equal(t, uint64(1), snap.AbortedFrames)
}

func TestTransmitter_RetryRetriesSameFrame(t *testing.T) {
	t.Parallel()

	tx, backend, _, _ := newTransmitter(t, strip.RetryPolicy{TolerateInterrupts: true, Budget: 1}, false)

	data := []byte{9, 8, 7}
	tx.ShowBytes(data, pixel.CRGB, 10)

	require.Len(t, backend.calls, 2)
	assert.Equal(t, backend.calls[0].frame, backend.calls[1].frame)
}

func TestRetryPolicy_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		policy strip.RetryPolicy
		valid  bool
	}{
		{"default tolerant", strip.DefaultRetryPolicy(true), true},
		{"default masked", strip.DefaultRetryPolicy(false), true},
		{"budget without tolerance", strip.RetryPolicy{Budget: 1}, false},
		{"negative budget", strip.RetryPolicy{TolerateInterrupts: true, Budget: -1}, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.policy.Validate()
			assert.Equal(t, tc.valid, err == nil)

			_, err = strip.NewTransmitter(&scriptedBackend{}, profile, strip.NewContext(), strip.WithRetryPolicy(tc.policy))
			assert.Equal(t, tc.valid, err == nil)
		})
	}

	assert.Equal(t, 2, strip.DefaultRetryPolicy(true).Budget)
	assert.Equal(t, 0, strip.DefaultRetryPolicy(false).Budget)
}

func TestTransmitter_RefreshThrottle(t *testing.T) {
	t.Parallel()

	tx, backend, clock, _ := newTransmitter(t, strip.DefaultRetryPolicy(false), true)

	data := []byte{1, 2, 3, 4, 5, 6}
	assert.True(t, tx.ShowBytes(data, pixel.GRB, 255))
	first := tx.Context().LastDisplay()
	assert.False(t, tx.CanShow())

	assert.True(t, tx.ShowBytes(data, pixel.GRB, 255))

	require.Len(t, backend.calls, 2)
	assert.GreaterOrEqual(t, backend.calls[1].at.Sub(first), profile.MinDisplayPeriod())
	assert.Equal(t, []time.Duration{profile.MinDisplayPeriod()}, clock.Sleeps())

	clock.Advance(profile.MinDisplayPeriod() + time.Microsecond)
	assert.True(t, tx.CanShow())
	assert.True(t, tx.ShowBytes(data, pixel.GRB, 255))
	assert.Len(t, clock.Sleeps(), 1, "no wait once the period has passed")
}

func TestTransmitter_EmptyFrame(t *testing.T) {
	t.Parallel()

	tx, backend, _, masker := newTransmitter(t, strip.DefaultRetryPolicy(true), false)

	assert.True(t, tx.ShowBytes(nil, pixel.GRB, 255))
	assert.Empty(t, backend.calls)
	assert.Equal(t, 0, masker.Locks)
	assert.Equal(t, uint64(0), tx.Context().Stats().Snapshot().Frames)
}

func TestStats(t *testing.T) {
	t.Parallel()

	tx, _, clock, _ := newTransmitter(t, strip.DefaultRetryPolicy(false), true)
	stats := tx.Context().Stats()

	assert.Equal(t, uint64(0), stats.Snapshot().FPS, "no time elapsed")

	for i := 0; i < 10; i++ {
		tx.ShowBytes([]byte{1, 2, 3}, pixel.GRB, 255)
	}
	clock.Advance(2*time.Second - (clock.Now().Sub(time.Unix(1_700_000_000, 0))))

	snap := stats.Snapshot()
	assert.Equal(t, uint64(10), snap.Frames)
	assert.Equal(t, uint64(5), snap.FPS)
	assert.Equal(t, 2*time.Second, snap.Elapsed)

	stats.Clear()
	snap = stats.Snapshot()
	assert.Equal(t, uint64(0), snap.Frames)
	assert.Equal(t, uint64(0), snap.AbortedFrames)
	assert.Equal(t, time.Duration(0), snap.Elapsed)
}

func TestStats_ClockStepsBack(t *testing.T) {
	t.Parallel()

	tx, _, clock, _ := newTransmitter(t, strip.DefaultRetryPolicy(false), true)
	stats := tx.Context().Stats()

	require.True(t, tx.ShowBytes([]byte{1, 2, 3}, pixel.GRB, 255))
	clock.Advance(-time.Hour)

	snap := stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Frames)
	assert.Equal(t, time.Duration(0), snap.Elapsed)
	assert.Equal(t, uint64(0), snap.FPS)
}

func TestContext_DebugPins(t *testing.T) {
	t.Parallel()

	cycles := simhal.NewClock(0, 1)
	trigger, abort := simhal.NewPin(cycles), simhal.NewPin(cycles)
	clock := simhal.NewTime(time.Unix(0, 0))
	backend := &scriptedBackend{clock: clock, results: []bool{false, true}}

	tx, err := strip.NewTransmitter(backend, profile,
		strip.NewContext(strip.WithClock(clock), strip.WithDebugPins(trigger, abort)),
		strip.WithRetryPolicy(strip.DefaultRetryPolicy(true)),
		strip.WithInterruptMasker(&simhal.Masker{}),
	)
	require.Nil(t, err)

	require.True(t, tx.ShowBytes([]byte{1, 2, 3}, pixel.GRB, 255))
	assert.Len(t, trigger.Edges(), 2)
	assert.Len(t, abort.Edges(), 1)
}

func TestForceClear(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		policy   strip.RetryPolicy
		results  []bool
		ok       bool
		attempts int
	}{
		{"first attempt", strip.DefaultRetryPolicy(false), []bool{true}, true, 1},
		{"third attempt", strip.DefaultRetryPolicy(false), []bool{false, false, true}, true, 3},
		{"never", strip.DefaultRetryPolicy(false), []bool{false}, false, strip.ForceClearAttempts},
		{"retry budget is not nested", strip.DefaultRetryPolicy(true), []bool{false}, false, strip.ForceClearAttempts},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tx, backend, clock, _ := newTransmitter(t, tc.policy, tc.results...)
			pin := simhal.NewPin(simhal.NewClock(0, 1))

			s := strip.New(4, pixel.GRB, tx, pin)
			s.Fill(pixel.FromRGB(0x102030))
			before := append([]byte(nil), s.Buffer().Bytes()...)

			assert.Equal(t, tc.ok, strip.ForceClear(tx, pin, 8))
			assert.Len(t, backend.calls, tc.attempts)

			for _, c := range backend.calls {
				assert.Nil(t, c.frame.Data, "blank frames read no memory")
				assert.Equal(t, 24, c.frame.Length)
			}

			assert.True(t, pin.IsOutput())
			assert.False(t, pin.Level())
			assert.Equal(t, before, s.Buffer().Bytes())
			require.NotEmpty(t, clock.Sleeps())
			assert.Equal(t, profile.ResetPeriod(), clock.Sleeps()[0], "waits a reset period first")
		})
	}
}

func TestForceClear_OutputFails(t *testing.T) {
	t.Parallel()

	tx, backend, _, _ := newTransmitter(t, strip.DefaultRetryPolicy(false), true)
	pin := simhal.NewPin(simhal.NewClock(0, 1))
	pin.FailOutput(errors.New("line is held by another consumer"))

	assert.False(t, strip.ForceClear(tx, pin, 8))
	assert.Empty(t, backend.calls, "nothing is sent on a line that is not an output")
	assert.False(t, pin.Level())
}

func TestStrip_ShowThroughEncoder(t *testing.T) {
	t.Parallel()

	cycles := simhal.NewClock(0, 1)
	pin := simhal.NewPin(cycles)
	enc := encoder.New(pin, cycles, profile, encoder.WithInterruptTolerance(true))

	tx, err := strip.NewTransmitter(enc, profile, strip.NewContext(strip.WithClock(simhal.NewTime(time.Unix(0, 0)))),
		strip.WithRetryPolicy(strip.DefaultRetryPolicy(true)),
		strip.WithInterruptMasker(&simhal.Masker{}),
	)
	require.Nil(t, err)

	s := strip.New(3, pixel.CRGB, tx, pin)
	require.NoError(t, s.Begin())
	s.Set(0, pixel.FromRGB(0xFF0000))
	s.Set(1, pixel.FromRGB(0x00FF00))
	s.Set(2, pixel.FromRGB(0x0000FF))

	require.True(t, s.Show(255))
	wire, derr := simhal.Decode(pin.Edges(), profile)
	require.NoError(t, derr)
	assert.Equal(t, []byte{0x00, 0xFF, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0xFF}, wire)

	pin.Reset()
	require.True(t, s.Clear())
	wire, derr = simhal.Decode(pin.Edges(), profile)
	require.NoError(t, derr)
	assert.Equal(t, make([]byte, 9), wire)
	assert.Equal(t, make([]byte, 9), s.Buffer().Bytes())

	assert.Equal(t, uint64(2), s.Stats().Frames)
	s.ClearStats()
	assert.Equal(t, uint64(0), s.Stats().Frames)
	assert.False(t, pin.Level())
}

func TestStrip_MaskedBoot(t *testing.T) {
	t.Parallel()

	// interrupts masked, no retries: every frame is exactly one masked attempt
	tx, backend, _, masker := newTransmitter(t, strip.DefaultRetryPolicy(false), true)
	pin := simhal.NewPin(simhal.NewClock(0, 1))

	s := strip.New(8, pixel.GRB, tx, pin)
	require.NoError(t, s.Begin())
	require.True(t, s.ForceClear())
	assert.Len(t, backend.calls, 1)
	assert.Equal(t, 1, masker.Locks)

	s.Set(0, pixel.Color{Blue: 0xff})
	require.True(t, s.Show(64))
	assert.Len(t, backend.calls, 2)
	assert.Equal(t, 2, masker.Locks)
	assert.False(t, pin.Level())
}
