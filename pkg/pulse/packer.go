package pulse

// wordPacker turns pulse levels into a bit stream of 32 bit words, MSB first.
type wordPacker struct {
	words []uint32
	cur   uint32
	n     uint
}

func (p *wordPacker) put(level bool, ticks uint32) {
	for ; ticks > 0; ticks-- {
		p.cur <<= 1
		if level {
			p.cur |= 1
		}
		p.n++
		if p.n == 32 {
			p.words = append(p.words, p.cur)
			p.cur, p.n = 0, 0
		}
	}
}

// flush pads the last partial word with low bits.
func (p *wordPacker) flush() {
	if p.n > 0 {
		p.words = append(p.words, p.cur<<(32-p.n))
		p.cur, p.n = 0, 0
	}
}
