package pixel

// Frame is a read-only view of the bytes of one transmission.
// A frame without data, or with zero brightness, is sent as all zero bits.
type Frame struct {
	Data       []byte
	Length     int
	Brightness uint16
	Order      Order
}

// NewFrame borrows data for one transmission. brightness is 0..255 and is remapped.
func NewFrame(data []byte, order Order, brightness uint8) Frame {
	return Frame{Data: data, Length: len(data), Brightness: RemapBrightness(brightness), Order: order}
}

// BlankFrame is a frame of all-off pixels that reads no memory.
func BlankFrame(pixels int) Frame {
	return Frame{Length: pixels * 3, Order: GRB}
}

// Blank reports whether the frame is sent as zeros regardless of its data.
func (f Frame) Blank() bool {
	return f.Data == nil || f.Brightness == 0
}

// ByteAt returns the scaled wire byte at position i.
func (f Frame) ByteAt(i int) byte {
	if f.Blank() || i < 0 || i >= f.Length {
		return 0
	}
	if f.Order.Reordered() {
		ofs := i % 3
		j := i - ofs + int(f.Order.wire[ofs])
		if j < f.Length {
			i = j
		}
	}
	if i >= len(f.Data) {
		return 0
	}
	return Scale(f.Data[i], f.Brightness)
}

// Reader walks the wire bytes of a frame in order.
type Reader struct {
	frame Frame
	blank bool
	pos   int
	base  int
	ofs   int
}

func NewReader(f Frame) *Reader {
	if f.Data != nil && f.Length > len(f.Data) {
		f.Length = len(f.Data)
	}
	return &Reader{frame: f, blank: f.Blank()}
}

// More reports whether bytes remain.
func (r *Reader) More() bool { return r.pos < r.frame.Length }

// Next returns the next wire byte. It must only be called while More is true.
func (r *Reader) Next() byte {
	r.pos++
	if r.blank {
		return 0
	}

	f := &r.frame
	if !f.Order.Reordered() {
		return Scale(f.Data[r.pos-1], f.Brightness)
	}

	i := r.base + int(f.Order.wire[r.ofs])
	if i >= f.Length {
		i = r.base + r.ofs
	}
	r.ofs++
	if r.ofs == 3 {
		r.ofs = 0
		r.base += 3
	}
	return Scale(f.Data[i], f.Brightness)
}

func (r *Reader) Len() int { return r.frame.Length }
