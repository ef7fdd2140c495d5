package encoder_test

import (
	"errors"
	"testing"

	"github.com/compute-blade-community/pixelwire/pkg/encoder"
	"github.com/compute-blade-community/pixelwire/pkg/hal/simhal"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profile80 = timing.MustProfile(timing.WS2812, 80)

func newEncoder(start uint32, tolerate bool) (*encoder.Encoder, *simhal.Pin) {
	clock := simhal.NewClock(start, 1)
	pin := simhal.NewPin(clock)
	return encoder.New(pin, clock, profile80, encoder.WithInterruptTolerance(tolerate)), pin
}

func TestEncoder_Waveform(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		order pixel.Order
		data  []byte
		wire  []byte
	}{
		{
			name:  "sequential",
			order: pixel.RGB,
			data:  []byte{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0xFF},
			wire:  []byte{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0xFF},
		},
		{
			name:  "reordered",
			order: pixel.CRGB,
			data:  []byte{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0xFF},
			wire:  []byte{0x00, 0xFF, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0xFF},
		},
		{
			name:  "single byte pattern",
			order: pixel.GRB,
			data:  []byte{0xA5},
			wire:  []byte{0xA5},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			enc, pin := newEncoder(1000, true)
			ok := enc.Transmit(pixel.NewFrame(tc.data, tc.order, 255))
			require.True(t, ok)

			got, err := simhal.Decode(pin.Edges(), profile80)
			require.NoError(t, err)
			assert.Equal(t, tc.wire, got)
			assert.False(t, pin.Level())

			for _, p := range simhal.Periods(pin.Edges()) {
				assert.GreaterOrEqual(t, p, profile80.CyclesPeriod())
			}
		})
	}
}

func TestEncoder_CounterWrap(t *testing.T) {
	t.Parallel()

	enc, pin := newEncoder(^uint32(0)-250, true)
	require.True(t, enc.Transmit(pixel.NewFrame([]byte{0x0F, 0xF0, 0x55}, pixel.GRB, 255)))

	got, err := simhal.Decode(pin.Edges(), profile80)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0F, 0xF0, 0x55}, got)
}

func TestEncoder_Brightness(t *testing.T) {
	t.Parallel()

	enc, pin := newEncoder(0, true)
	require.True(t, enc.Transmit(pixel.NewFrame([]byte{0xFF, 0x80, 0x10}, pixel.GRB, 127)))

	got, err := simhal.Decode(pin.Edges(), profile80)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x7F, 0x40, 0x08}, got)

	pin.Reset()
	require.True(t, enc.Transmit(pixel.NewFrame([]byte{0xFF, 0x80, 0x10}, pixel.GRB, 0)))
	got, err = simhal.Decode(pin.Edges(), profile80)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, got)
}

func TestEncoder_BlankFrameReadsNoMemory(t *testing.T) {
	t.Parallel()

	enc, pin := newEncoder(0, true)
	require.True(t, enc.Transmit(pixel.BlankFrame(4)))

	got, err := simhal.Decode(pin.Edges(), profile80)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 12), got)
}

func TestEncoder_EmptyFrame(t *testing.T) {
	t.Parallel()

	enc, pin := newEncoder(0, true)
	assert.True(t, enc.Transmit(pixel.NewFrame(nil, pixel.GRB, 255)))
	assert.True(t, enc.Transmit(pixel.NewFrame([]byte{}, pixel.GRB, 255)))
	assert.Empty(t, pin.Edges())
}

func TestEncoder_Overrun(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		edge     int
		tolerate bool
		ok       bool
	}{
		// edge 4 is the third rising edge, a stall there overshoots the high phase
		{"during high phase", 4, true, false},
		// edge 5 is a falling edge, a stall there misses the next slot
		{"before next slot", 5, true, false},
		{"not tolerated", 5, false, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			enc, pin := newEncoder(0, tc.tolerate)
			pin.StallOnEdge(tc.edge, 500)

			ok := enc.Transmit(pixel.NewFrame([]byte{0xFF, 0xFF}, pixel.GRB, 255))
			assert.Equal(t, tc.ok, ok)
			assert.False(t, pin.Level(), "line must be left low")

			rising := 0
			for _, e := range pin.Edges() {
				if e.High {
					rising++
				}
			}
			if tc.ok {
				assert.Equal(t, 16, rising)
			} else {
				assert.Less(t, rising, 16)
			}
		})
	}
}

func TestEncoder_StateSequence(t *testing.T) {
	t.Parallel()

	var states []encoder.State
	clock := simhal.NewClock(0, 1)
	enc := encoder.New(simhal.NewPin(clock), clock, profile80, encoder.WithTrace(func(s encoder.State) {
		states = append(states, s)
	}))

	require.True(t, enc.Transmit(pixel.NewFrame([]byte{0x01}, pixel.GRB, 255)))

	require.Len(t, states, 8*4+1)
	assert.Equal(t, []encoder.State{encoder.AwaitSlot, encoder.Raise, encoder.HoldHigh, encoder.Lower}, states[:4])
	assert.Equal(t, encoder.EndOfFrame, states[len(states)-1])
}

func TestEncoder_PinWriteErrors(t *testing.T) {
	t.Parallel()

	enc, pin := newEncoder(0, true)
	pin.FailWrites(errors.New("line busy"))

	assert.False(t, enc.Transmit(pixel.NewFrame([]byte{0x12}, pixel.GRB, 255)), "a frame with failed writes is aborted")

	// errors left over from writes outside a frame are dropped
	pin.Low()
	pin.FailWrites(nil)
	assert.True(t, enc.Transmit(pixel.NewFrame([]byte{0x12}, pixel.GRB, 255)))
}
