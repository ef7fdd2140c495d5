package pixel

import "fmt"

// Color is a pixel value independent of channel order.
type Color struct {
	Red   uint8 `yaml:"red" mapstructure:"red"`
	Green uint8 `yaml:"green" mapstructure:"green"`
	Blue  uint8 `yaml:"blue" mapstructure:"blue"`
}

// FromRGB unpacks a 0xRRGGBB value.
func FromRGB(v uint32) Color {
	return Color{Red: uint8(v >> 16), Green: uint8(v >> 8), Blue: uint8(v)}
}

// RGB packs the color as 0xRRGGBB.
func (c Color) RGB() uint32 {
	return uint32(c.Red)<<16 | uint32(c.Green)<<8 | uint32(c.Blue)
}

// Scale applies brightness the same way the transmit path does.
func (c Color) Scale(brightness uint8) Color {
	b := RemapBrightness(brightness)
	return Color{Red: Scale(c.Red, b), Green: Scale(c.Green, b), Blue: Scale(c.Blue, b)}
}

func (c Color) String() string {
	return fmt.Sprintf("#%06x", c.RGB())
}

// RemapBrightness maps 1..255 to 2..256 so scaling is a shift by 8. Zero stays zero.
func RemapBrightness(b uint8) uint16 {
	if b == 0 {
		return 0
	}
	return uint16(b) + 1
}

// Scale applies a remapped brightness (0..256) to one channel value.
func Scale(v uint8, b uint16) uint8 {
	return uint8((uint16(v) * b) >> 8)
}
