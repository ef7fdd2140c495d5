//go:build tinygo

package hal

import (
	"machine"
	"runtime/interrupt"
)

// MachinePin drives a microcontroller pin directly.
type MachinePin struct {
	pin machine.Pin
}

func NewMachinePin(pin machine.Pin) *MachinePin {
	return &MachinePin{pin: pin}
}

func (p *MachinePin) High() { p.pin.High() }
func (p *MachinePin) Low()  { p.pin.Low() }

func (p *MachinePin) Output() error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Low()
	return nil
}

// Machine returns the underlying pin for drivers that time the line themselves.
func (p *MachinePin) Machine() machine.Pin { return p.pin }

// InterruptLock masks interrupts globally while held.
type InterruptLock struct {
	state interrupt.State
}

func (l *InterruptLock) Lock()   { l.state = interrupt.Disable() }
func (l *InterruptLock) Unlock() { interrupt.Restore(l.state) }
