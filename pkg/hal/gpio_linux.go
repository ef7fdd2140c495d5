//go:build linux && !tinygo

package hal

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/warthog618/gpiod"
)

const gpioConsumer = "pixelwire"

// LinePin drives a GPIO character device line.
type LinePin struct {
	chip *gpiod.Chip
	line *gpiod.Line
	err  atomic.Pointer[error]
}

// OpenLinePin requests offset on the named chip (e.g. "gpiochip0") as an output driven low.
func OpenLinePin(chipName string, offset int) (*LinePin, error) {
	chip, err := gpiod.NewChip(chipName, gpiod.WithConsumer(gpioConsumer))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(offset, gpiod.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("failed to request line %d on %s: %w", offset, chipName, err)
	}

	return &LinePin{chip: chip, line: line}, nil
}

func (p *LinePin) set(v int) {
	if err := p.line.SetValue(v); err != nil {
		p.err.Store(&err)
	}
}

func (p *LinePin) High() { p.set(1) }
func (p *LinePin) Low()  { p.set(0) }

func (p *LinePin) Output() error {
	if err := p.line.Reconfigure(gpiod.AsOutput(0)); err != nil {
		return fmt.Errorf("failed to configure line %d as output: %w", p.line.Offset(), err)
	}
	return p.line.SetValue(0)
}

// Err returns and clears the last error seen by High or Low.
func (p *LinePin) Err() error {
	if err := p.err.Swap(nil); err != nil {
		return *err
	}
	return nil
}

func (p *LinePin) Close() error {
	return errors.Join(p.line.Close(), p.chip.Close())
}
