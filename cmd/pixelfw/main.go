//go:build tinygo && rp2040

// pixelfw is the microcontroller build: it drives one strip from a board pin using the
// cycle-counted ws2812 driver, with interrupts masked for every frame.
package main

import (
	"machine"
	"time"

	"github.com/compute-blade-community/pixelwire/pkg/encoder"
	"github.com/compute-blade-community/pixelwire/pkg/hal"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/strip"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
)

const (
	dataPin    = machine.GPIO16
	numPixels  = 8
	brightness = 64
)

func main() {
	pin := hal.NewMachinePin(dataPin)
	profile := timing.MustProfile(timing.WS2812, uint64(machine.CPUFrequency()))

	// interrupts are masked for the whole frame, so there is nothing to retry
	tx, err := strip.NewTransmitter(encoder.NewDriverBackend(pin.Machine()), profile, strip.NewContext(),
		strip.WithRetryPolicy(strip.DefaultRetryPolicy(false)),
		strip.WithInterruptMasker(&hal.InterruptLock{}),
	)
	if err != nil {
		println("pixelfw:", err.Error())
		return
	}

	leds := strip.New(numPixels, pixel.GRB, tx, pin)
	if err := leds.Begin(); err != nil {
		println("pixelfw: data line:", err.Error())
		return
	}
	if !leds.ForceClear() {
		println("pixelfw: chain did not blank at boot")
	}

	// heartbeat on the first pixel
	on := false
	for {
		on = !on
		if on {
			leds.Set(0, pixel.Color{Blue: 0xff})
		} else {
			leds.Set(0, pixel.Color{})
		}
		if !leds.Show(brightness) {
			println("pixelfw: frame dropped")
		}
		time.Sleep(500 * time.Millisecond)
	}
}
