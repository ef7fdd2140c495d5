//go:build tinygo

package encoder

import (
	"machine"

	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"tinygo.org/x/drivers/ws2812"
)

// DriverBackend sends frames through the board's cycle-counted ws2812 driver.
// It is used on targets where no free-running cycle counter is exposed.
type DriverBackend struct {
	dev ws2812.Device
}

func NewDriverBackend(pin machine.Pin) *DriverBackend {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return &DriverBackend{dev: ws2812.New(pin)}
}

func (d *DriverBackend) Transmit(f pixel.Frame) bool {
	r := pixel.NewReader(f)
	for r.More() {
		if err := d.dev.WriteByte(r.Next()); err != nil {
			return false
		}
	}
	return true
}
