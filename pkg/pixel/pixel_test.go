package pixel_test

import (
	"testing"

	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(f pixel.Frame) []byte {
	r := pixel.NewReader(f)
	out := make([]byte, 0, r.Len())
	for r.More() {
		out = append(out, r.Next())
	}
	return out
}

func TestScale(t *testing.T) {
	t.Parallel()

	for b := 0; b <= 255; b++ {
		for _, v := range []int{0, 1, 7, 127, 128, 200, 255} {
			got := pixel.Scale(uint8(v), pixel.RemapBrightness(uint8(b)))
			if b == 0 {
				assert.Equal(t, uint8(0), got)
				continue
			}
			assert.Equal(t, uint8((v*(b+1))>>8), got)
		}
	}

	assert.Equal(t, uint16(256), pixel.RemapBrightness(255))
	assert.Equal(t, uint16(0), pixel.RemapBrightness(0))
}

func TestFrame_FullBrightnessIsLossless(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		order pixel.Order
		wire  []byte
	}{
		{pixel.GRB, []byte{0x00, 0xFF, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0xFF}},
		{pixel.RGB, []byte{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x00, 0xFF}},
		{pixel.CRGB, []byte{0x00, 0xFF, 0x00, 0xFF, 0x00, 0x00, 0x00, 0x00, 0xFF}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.order.String(), func(t *testing.T) {
			t.Parallel()

			buf := pixel.NewBuffer(3, tc.order)
			buf.Set(0, pixel.FromRGB(0xFF0000))
			buf.Set(1, pixel.FromRGB(0x00FF00))
			buf.Set(2, pixel.FromRGB(0x0000FF))

			assert.Equal(t, tc.wire, readAll(buf.Frame(255)))
			assert.Equal(t, pixel.FromRGB(0x00FF00), buf.Get(1))
		})
	}
}

func TestFrame_ByteAtMatchesReader(t *testing.T) {
	t.Parallel()

	data := []byte{10, 20, 30, 40, 50, 60, 70}
	for _, order := range []pixel.Order{pixel.GRB, pixel.CRGB} {
		f := pixel.NewFrame(data, order, 128)
		wire := readAll(f)
		require.Len(t, wire, len(data))
		for i := range wire {
			assert.Equal(t, wire[i], f.ByteAt(i), "order %s byte %d", order, i)
		}
	}
}

func TestFrame_Blank(t *testing.T) {
	t.Parallel()

	assert.Equal(t, make([]byte, 6), readAll(pixel.BlankFrame(2)))
	assert.Equal(t, make([]byte, 3), readAll(pixel.NewFrame([]byte{1, 2, 3}, pixel.GRB, 0)))
	assert.True(t, pixel.BlankFrame(1).Blank())
	assert.Empty(t, readAll(pixel.BlankFrame(0)))
}

func TestParseOrder(t *testing.T) {
	t.Parallel()

	o, err := pixel.ParseOrder("crgb")
	require.Nil(t, err)
	assert.True(t, o.Reordered())

	o, err = pixel.ParseOrder("BRG")
	require.Nil(t, err)
	assert.False(t, o.Reordered())

	buf := pixel.NewBuffer(1, o)
	buf.Set(0, pixel.Color{Red: 1, Green: 2, Blue: 3})
	assert.Equal(t, []byte{3, 1, 2}, buf.Bytes())

	for _, bad := range []string{"RRG", "RGBW", "", "XYZ"} {
		_, err := pixel.ParseOrder(bad)
		assert.NotNil(t, err, bad)
	}
}

func TestBuffer_FillRange(t *testing.T) {
	t.Parallel()

	buf := pixel.NewBuffer(4, pixel.RGB)
	buf.FillRange(-1, 3, pixel.FromRGB(0x010203))
	buf.Set(10, pixel.FromRGB(0xFFFFFF))

	assert.Equal(t, []byte{1, 2, 3, 1, 2, 3, 0, 0, 0, 0, 0, 0}, buf.Bytes())

	buf.Clear()
	assert.Equal(t, make([]byte, 12), buf.Bytes())
}

func TestColor_Scale(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pixel.Color{Red: 127, Green: 0, Blue: 64}, pixel.FromRGB(0xFF0080).Scale(127))
	assert.Equal(t, "#ff0080", pixel.FromRGB(0xFF0080).String())
}
