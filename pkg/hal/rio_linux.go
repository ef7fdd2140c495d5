//go:build linux && !tinygo

package hal

import "fmt"

const (
	// RP1 southbridge is connected via PCIe on BCM2712.
	// The BAR base address is fixed by firmware at 0x1f00000000.
	rp1BarBase     int64 = 0x1f00000000
	rp1IOBank0Base int64 = rp1BarBase + 0xd0000
	rp1RioBase     int64 = rp1BarBase + 0xe0000
	rp1PadsBase    int64 = rp1BarBase + 0xf0000
	rp1PageSize          = 4096

	rp1Bank0Lines = 28

	// RP1 GPIO register layout: each GPIO has 8 bytes (STATUS + CTRL)
	rp1GpioCtrlOffset  = 0x04
	rp1GpioRegSize     = 0x08
	rp1GpioFuncselMask = 0x1f
	rp1GpioFuncselSio  = 5 // Software IO (standard GPIO)

	// Registered IO block, with atomic XOR/SET/CLR aliases at +0x1000/+0x2000/+0x3000
	rp1RioOut  = 0x00
	rp1RioOE   = 0x04
	rp1RioSet  = 0x2000
	rp1RioClr  = 0x3000
	rp1RioSize = 0x4000

	// Pad control, one register per GPIO after VOLTAGE_SELECT
	rp1PadsGpio0        = 0x04
	rp1PadOutputDisable = 1 << 7
	rp1PadInputEnable   = 1 << 6
)

// RIOPin drives an RP1 bank 0 line through the registered IO block. A level change is one store
// to the set or clear alias, which keeps up with WS281x bit timing. A gpiod line costs an ioctl
// per edge and overshoots T0H.
type RIOPin struct {
	mem  *DevMem
	line int
	mask uint32

	ctrl []uint32
	rio  []uint32
	pads []uint32
}

// OpenRIOPin maps the RP1 GPIO, RIO and pad blocks for line. Output must be called before use.
func OpenRIOPin(line int) (*RIOPin, error) {
	if line < 0 || line >= rp1Bank0Lines {
		return nil, fmt.Errorf("line %d is not in RP1 bank 0 [0, %d)", line, rp1Bank0Lines)
	}

	mem, err := OpenDevMem()
	if err != nil {
		return nil, err
	}

	ctrl, err := mem.Map(rp1IOBank0Base, rp1PageSize)
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("failed to map RP1 GPIO: %w", err)
	}
	rio, err := mem.Map(rp1RioBase, rp1RioSize)
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("failed to map RP1 RIO: %w", err)
	}
	pads, err := mem.Map(rp1PadsBase, rp1PageSize)
	if err != nil {
		mem.Close()
		return nil, fmt.Errorf("failed to map RP1 pads: %w", err)
	}

	p := newRIOPin(line, ctrl, rio, pads)
	p.mem = mem
	return p, nil
}

func newRIOPin(line int, ctrl, rio, pads []uint32) *RIOPin {
	return &RIOPin{line: line, mask: 1 << line, ctrl: ctrl, rio: rio, pads: pads}
}

func (p *RIOPin) High() { p.rio[(rp1RioSet+rp1RioOut)/4] = p.mask }
func (p *RIOPin) Low()  { p.rio[(rp1RioClr+rp1RioOut)/4] = p.mask }

// Output drives the line low, enables its output and hands the pad to SIO.
func (p *RIOPin) Output() error {
	p.Low()
	p.rio[(rp1RioSet+rp1RioOE)/4] = p.mask

	pad := rp1PadsGpio0/4 + p.line
	p.pads[pad] = (p.pads[pad] &^ rp1PadOutputDisable) | rp1PadInputEnable

	ctrlIdx := (p.line*rp1GpioRegSize + rp1GpioCtrlOffset) / 4
	p.ctrl[ctrlIdx] = (p.ctrl[ctrlIdx] &^ rp1GpioFuncselMask) | rp1GpioFuncselSio
	return nil
}

// Close unmaps the register blocks. The line keeps its level and function.
func (p *RIOPin) Close() error {
	if p.mem == nil {
		return nil
	}
	return p.mem.Close()
}
