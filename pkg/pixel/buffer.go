package pixel

// Buffer is a fixed-length pixel store in the memory layout of its Order.
type Buffer struct {
	order Order
	data  []byte
}

func NewBuffer(pixels int, order Order) *Buffer {
	if pixels < 0 {
		pixels = 0
	}
	return &Buffer{order: order, data: make([]byte, pixels*3)}
}

func (b *Buffer) Len() int     { return len(b.data) / 3 }
func (b *Buffer) Order() Order { return b.order }

// Bytes returns the backing store. Callers borrow it and must not retain it across mutations.
func (b *Buffer) Bytes() []byte { return b.data }

// Set stores c at index i. Out of range indices are ignored.
func (b *Buffer) Set(i int, c Color) {
	if i < 0 || i >= b.Len() {
		return
	}
	base := i * 3
	b.data[base+b.order.offset(Red)] = c.Red
	b.data[base+b.order.offset(Green)] = c.Green
	b.data[base+b.order.offset(Blue)] = c.Blue
}

// Get returns the color at index i, or black when out of range.
func (b *Buffer) Get(i int) Color {
	if i < 0 || i >= b.Len() {
		return Color{}
	}
	base := i * 3
	return Color{
		Red:   b.data[base+b.order.offset(Red)],
		Green: b.data[base+b.order.offset(Green)],
		Blue:  b.data[base+b.order.offset(Blue)],
	}
}

func (b *Buffer) Fill(c Color) {
	b.FillRange(0, b.Len(), c)
}

// FillRange sets count pixels starting at start, clipped to the buffer.
func (b *Buffer) FillRange(start, count int, c Color) {
	if start < 0 {
		count += start
		start = 0
	}
	for i := start; i < start+count && i < b.Len(); i++ {
		b.Set(i, c)
	}
}

// Load copies colors into the buffer starting at start.
func (b *Buffer) Load(start int, colors []Color) {
	for i, c := range colors {
		b.Set(start+i, c)
	}
}

func (b *Buffer) Clear() {
	clear(b.data)
}

// Frame returns a transmit view over the buffer at the given brightness.
func (b *Buffer) Frame(brightness uint8) Frame {
	return NewFrame(b.data, b.order, brightness)
}
