package pulse

import (
	"sync"
	"unsafe"

	"github.com/compute-blade-community/pixelwire/pkg/pixel"
)

// Slot is the per-channel transmit state.
type Slot struct {
	index int
	inUse bool

	frame pixel.Frame
	begin uintptr
	end   uintptr
	clear bool
	blank []byte

	bit0 Item
	bit1 Item
}

// Index is the peripheral channel number.
func (s *Slot) Index() int { return s.index }

func (s *Slot) blankSource(n int) []byte {
	if cap(s.blank) < n {
		s.blank = make([]byte, n)
	}
	return s.blank[:n]
}

// Pool hands out the channels of one peripheral, first free wins.
type Pool struct {
	periph Peripheral

	mu    sync.RWMutex
	slots []*Slot
}

func NewPool(periph Peripheral) *Pool {
	p := &Pool{periph: periph, slots: make([]*Slot, periph.Channels())}
	for i := range p.slots {
		p.slots[i] = &Slot{index: i}
	}
	return p
}

// Size is the number of channels.
func (p *Pool) Size() int { return len(p.slots) }

// Acquire claims the first free slot without waiting.
func (p *Pool) Acquire() (*Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range p.slots {
		if !s.inUse {
			s.inUse = true
			return s, true
		}
	}
	return nil, false
}

// Release frees a slot and reports whether it was held.
func (p *Pool) Release(s *Slot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !s.inUse {
		return false
	}
	s.inUse = false
	s.frame = pixel.Frame{}
	s.begin, s.end = 0, 0
	s.clear = false
	return true
}

// InUse counts claimed slots.
func (p *Pool) InUse() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, s := range p.slots {
		if s.inUse {
			n++
		}
	}
	return n
}

func (p *Pool) bind(s *Slot, f pixel.Frame, src []byte, blank bool, bit0, bit1 Item) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s.frame = f
	s.clear = blank
	s.bit0, s.bit1 = bit0, bit1
	s.begin = addrOf(src)
	s.end = s.begin + uintptr(len(src))
}

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// lookup finds the active slot whose source range contains addr.
func (p *Pool) lookup(addr uintptr) *Slot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, s := range p.slots {
		if s.inUse && s.begin <= addr && addr < s.end {
			return s
		}
	}
	return nil
}

// translate is shared by every channel of the peripheral. It identifies the slot from the
// source address, emits eight items per whole byte and pads with idle items once the source is exhausted.
func (p *Pool) translate(src []byte, dst []Item) (consumed, produced int) {
	if len(src) == 0 {
		return 0, 0
	}

	addr := addrOf(src)
	s := p.lookup(addr)
	if s == nil {
		return 0, 0
	}

	offset := int(addr - s.begin)
	n := min(len(src), len(dst)/8)

	for i := 0; i < n; i++ {
		var v byte
		if !s.clear {
			v = s.frame.ByteAt(offset + i)
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if v&mask != 0 {
				dst[produced] = s.bit1
			} else {
				dst[produced] = s.bit0
			}
			produced++
		}
	}

	if n == len(src) {
		for produced < len(dst) {
			dst[produced] = Item{}
			produced++
		}
	}
	return n, produced
}
