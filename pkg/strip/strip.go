package strip

import (
	"github.com/compute-blade-community/pixelwire/pkg/hal"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
)

// Strip owns the pixel buffer of one chain and shows it through a Transmitter.
type Strip struct {
	buf *pixel.Buffer
	tx  *Transmitter
	pin hal.Pin
}

func New(pixels int, order pixel.Order, tx *Transmitter, pin hal.Pin) *Strip {
	if pin == nil {
		pin = hal.NopPin{}
	}
	return &Strip{buf: pixel.NewBuffer(pixels, order), tx: tx, pin: pin}
}

// Begin drives the data line low as an output.
func (s *Strip) Begin() error {
	if err := s.pin.Output(); err != nil {
		return err
	}
	s.pin.Low()
	return nil
}

// End blanks the chain and leaves the line low.
func (s *Strip) End() bool {
	ok := s.Clear()
	s.pin.Low()
	return ok
}

func (s *Strip) Len() int                   { return s.buf.Len() }
func (s *Strip) Buffer() *pixel.Buffer      { return s.buf }
func (s *Strip) Transmitter() *Transmitter  { return s.tx }
func (s *Strip) Get(i int) pixel.Color      { return s.buf.Get(i) }
func (s *Strip) Set(i int, c pixel.Color)   { s.buf.Set(i, c) }
func (s *Strip) Fill(c pixel.Color)         { s.buf.Fill(c) }
func (s *Strip) FillN(n int, c pixel.Color) { s.buf.FillRange(0, n, c) }

func (s *Strip) FillRange(start, count int, c pixel.Color) {
	s.buf.FillRange(start, count, c)
}

// Show transmits the buffer at brightness 0..255.
func (s *Strip) Show(brightness uint8) bool {
	return s.tx.Show(s.buf.Frame(brightness))
}

// Clear zeroes the buffer and sends a blank frame of the chain length.
func (s *Strip) Clear() bool {
	s.buf.Clear()
	return s.tx.Show(pixel.BlankFrame(s.buf.Len()))
}

func (s *Strip) CanShow() bool    { return s.tx.CanShow() }
func (s *Strip) Stats() Snapshot  { return s.tx.ctx.Stats().Snapshot() }
func (s *Strip) ClearStats()      { s.tx.ctx.Stats().Clear() }
func (s *Strip) ForceClear() bool { return ForceClear(s.tx, s.pin, s.buf.Len()) }
