package pulse

import (
	"fmt"
	"sync"
	"time"
)

// SimPeripheral is an in-memory peripheral. Write translates the whole source synchronously
// and records the produced items per channel.
type SimPeripheral struct {
	counterHz uint64
	chunk     int

	mu     sync.Mutex
	pins   []int
	items  [][]Item
	gates  []chan struct{}
	writes int
}

// NewSimPeripheral creates a peripheral with the given channel count and counter clock.
func NewSimPeripheral(channels int, counterHz uint64) *SimPeripheral {
	s := &SimPeripheral{
		counterHz: counterHz,
		chunk:     64,
		pins:      make([]int, channels),
		items:     make([][]Item, channels),
		gates:     make([]chan struct{}, channels),
	}
	for i := range s.pins {
		s.pins[i] = -1
	}
	return s
}

func (s *SimPeripheral) Channels() int { return len(s.pins) }

func (s *SimPeripheral) Configure(ch, pin int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch < 0 || ch >= len(s.pins) {
		return 0, fmt.Errorf("channel %d out of range", ch)
	}
	s.pins[ch] = pin
	return s.counterHz, nil
}

func (s *SimPeripheral) Write(ch int, src []byte, translate TranslateFunc) error {
	buf := make([]Item, s.chunk)
	var items []Item

	for pos := 0; pos < len(src); {
		consumed, produced := translate(src[pos:], buf)
		if consumed == 0 && produced == 0 {
			return fmt.Errorf("translator made no progress at byte %d", pos)
		}
		items = append(items, buf[:produced]...)
		pos += consumed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[ch] = items
	s.writes++
	return nil
}

func (s *SimPeripheral) Wait(ch int, timeout time.Duration) error {
	s.mu.Lock()
	gate := s.gates[ch]
	s.mu.Unlock()

	if gate == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-gate:
		return nil
	case <-timer.C:
		return ErrTimeout
	}
}

func (s *SimPeripheral) Release(ch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[ch] = -1
}

// Hold makes Wait on ch block until Unhold, emulating a channel that is still sending.
func (s *SimPeripheral) Hold(ch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[ch] = make(chan struct{})
}

func (s *SimPeripheral) Unhold(ch int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gates[ch] != nil {
		close(s.gates[ch])
		s.gates[ch] = nil
	}
}

// Pin is the pin routed to ch, or -1.
func (s *SimPeripheral) Pin(ch int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pins[ch]
}

// Items returns the items of the last write on ch.
func (s *SimPeripheral) Items(ch int) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items[ch]...)
}

func (s *SimPeripheral) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// DecodeItems turns items back into bytes, skipping idle padding.
func DecodeItems(items []Item, bit1 Item) []byte {
	var (
		out  []byte
		cur  byte
		bits int
	)
	for _, it := range items {
		if it.IsZero() {
			continue
		}
		cur <<= 1
		if it.Duration0 >= bit1.Duration0 {
			cur |= 1
		}
		bits++
		if bits == 8 {
			out = append(out, cur)
			cur, bits = 0, 0
		}
	}
	return out
}
