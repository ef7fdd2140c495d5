package pixel

import (
	"fmt"
	"strings"

	"github.com/sierrasoftworks/humane-errors-go"
)

// Channel identifies one color component of a pixel.
type Channel uint8

const (
	Red Channel = iota
	Green
	Blue
)

func (c Channel) String() string {
	switch c {
	case Red:
		return "R"
	case Green:
		return "G"
	case Blue:
		return "B"
	}
	return "?"
}

// Order describes how the three channels of a pixel are laid out in memory and on the wire.
type Order struct {
	name string
	// memory holds the channel stored at each in-memory offset
	memory [3]Channel
	// wire holds the in-memory offset sent at each wire position
	wire [3]uint8
}

var sequential = [3]uint8{0, 1, 2}

var (
	// GRB stores pixels in wire order, the native layout of most WS281x chains.
	GRB = Order{name: "GRB", memory: [3]Channel{Green, Red, Blue}, wire: sequential}
	// RGB stores and sends red first.
	RGB = Order{name: "RGB", memory: [3]Channel{Red, Green, Blue}, wire: sequential}
	// CRGB stores red first but sends green first, so every byte is fetched through the wire table.
	CRGB = Order{name: "CRGB", memory: [3]Channel{Red, Green, Blue}, wire: [3]uint8{1, 0, 2}}
)

// ParseOrder accepts a preset name or any permutation of "RGB" naming the on-wire channel order.
func ParseOrder(s string) (Order, humane.Error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "GRB":
		return GRB, nil
	case "RGB":
		return RGB, nil
	case "CRGB":
		return CRGB, nil
	}

	if len(name) == 3 {
		o := Order{name: name, wire: sequential}
		var seen [3]bool
		ok := true
		for i, r := range name {
			var c Channel
			switch r {
			case 'R':
				c = Red
			case 'G':
				c = Green
			case 'B':
				c = Blue
			default:
				ok = false
			}
			if !ok || seen[c] {
				ok = false
				break
			}
			seen[c] = true
			o.memory[i] = c
		}
		if ok {
			return o, nil
		}
	}

	return Order{}, humane.New(fmt.Sprintf("unknown channel order %q", s),
		"use GRB, RGB, CRGB or another permutation of the letters R, G and B",
	)
}

func (o Order) String() string { return o.name }

// Reordered reports whether bytes are fetched through the wire table instead of sequentially.
func (o Order) Reordered() bool { return o.wire != sequential }

// Wire returns the in-memory offset sent at wire position i (0..2).
func (o Order) Wire(i int) uint8 { return o.wire[i] }

// offset returns the in-memory offset of channel c.
func (o Order) offset(c Channel) int {
	for i, m := range o.memory {
		if m == c {
			return i
		}
	}
	return int(c)
}
