// Package timing converts WS281x chipset timing tables into cycle counts for a given clock.
package timing

import (
	"fmt"
	"strings"
	"time"

	"github.com/sierrasoftworks/humane-errors-go"
)

// mhzThreshold separates frequencies given in MHz from frequencies given in Hz.
const mhzThreshold = 32768

// Chipset holds the datasheet timing of one WS281x variant.
// High times and the bit period are in nanoseconds, Reset and MinDisplay in microseconds.
type Chipset struct {
	Name       string `yaml:"name" mapstructure:"name"`
	T0H        uint32 `yaml:"t0h_ns" mapstructure:"t0h_ns"`
	T1H        uint32 `yaml:"t1h_ns" mapstructure:"t1h_ns"`
	Period     uint32 `yaml:"period_ns" mapstructure:"period_ns"`
	Reset      uint32 `yaml:"reset_us" mapstructure:"reset_us"`
	MinDisplay uint32 `yaml:"min_display_us" mapstructure:"min_display_us"`
}

var (
	WS2811 = Chipset{Name: "ws2811", T0H: 500, T1H: 1200, Period: 2500, Reset: 50, MinDisplay: 2750}
	WS2812 = Chipset{Name: "ws2812", T0H: 400, T1H: 800, Period: 1250, Reset: 85, MinDisplay: 1275}
	WS2813 = Chipset{Name: "ws2813", T0H: 320, T1H: 640, Period: 1280, Reset: 280, MinDisplay: 1500}
)

// Chipsets lists the built-in timing tables.
var Chipsets = []Chipset{WS2811, WS2812, WS2813}

// ChipsetByName looks up a built-in timing table, case-insensitively.
func ChipsetByName(name string) (Chipset, humane.Error) {
	for _, c := range Chipsets {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}

	return Chipset{}, humane.New(fmt.Sprintf("unknown chipset %q", name),
		"use one of ws2811, ws2812 or ws2813",
		"or provide a custom timing table with t0h_ns, t1h_ns, period_ns, reset_us and min_display_us",
	)
}

// Validate checks the ordering invariants of the table.
func (c Chipset) Validate() humane.Error {
	switch {
	case c.T0H == 0:
		return humane.New(fmt.Sprintf("chipset %s: T0H must not be zero", c.Name), "check the datasheet of your LED chain")
	case c.T0H >= c.T1H:
		return humane.New(fmt.Sprintf("chipset %s: T0H (%dns) must be shorter than T1H (%dns)", c.Name, c.T0H, c.T1H),
			"check the datasheet of your LED chain")
	case c.T1H >= c.Period:
		return humane.New(fmt.Sprintf("chipset %s: T1H (%dns) must be shorter than the bit period (%dns)", c.Name, c.T1H, c.Period),
			"check the datasheet of your LED chain")
	case uint64(c.Reset)*1000 < uint64(c.Period):
		return humane.New(fmt.Sprintf("chipset %s: reset (%dus) must be at least one bit period", c.Name, c.Reset),
			"check the datasheet of your LED chain")
	case c.MinDisplay < c.Reset:
		return humane.New(fmt.Sprintf("chipset %s: minimum display period (%dus) must not be shorter than the reset (%dus)", c.Name, c.MinDisplay, c.Reset),
			"check the datasheet of your LED chain")
	}
	return nil
}

// NormalizeFrequency returns the frequency in Hz. Values below 32768 are taken as MHz.
func NormalizeFrequency(freq uint64) uint64 {
	if freq < mhzThreshold {
		return freq * 1_000_000
	}
	return freq
}

// Profile is an immutable chipset table bound to the clock of the cycle counter that times it.
type Profile struct {
	Chipset
	frequencyHz uint64
}

// NewProfile binds a chipset to a clock frequency given in Hz or MHz.
func NewProfile(chip Chipset, freq uint64) (Profile, humane.Error) {
	if err := chip.Validate(); err != nil {
		return Profile{}, err
	}

	if freq == 0 {
		return Profile{}, humane.New("clock frequency must not be zero",
			"set strip.cpu_frequency to the frequency of the cycle counter in Hz or MHz")
	}

	p := Profile{Chipset: chip, frequencyHz: NormalizeFrequency(freq)}

	t0h, t1h, period := p.CyclesT0H(), p.CyclesT1H(), p.CyclesPeriod()
	if t0h == 0 || t0h >= t1h || t1h >= period {
		return Profile{}, humane.New(
			fmt.Sprintf("clock of %d Hz cannot resolve %s timing (T0H=%d, T1H=%d, period=%d cycles)", p.frequencyHz, chip.Name, t0h, t1h, period),
			"use a faster cycle counter",
			"check that strip.cpu_frequency is given in Hz or MHz",
		)
	}

	if p.cycles(uint64(chip.MinDisplay)*1000) > 1<<31 {
		return Profile{}, humane.New(fmt.Sprintf("clock of %d Hz overflows the 32 bit cycle counter for %s", p.frequencyHz, chip.Name),
			"check that strip.cpu_frequency is given in Hz or MHz")
	}

	return p, nil
}

// MustProfile is NewProfile for tables known to be valid. It panics otherwise.
func MustProfile(chip Chipset, freq uint64) Profile {
	p, err := NewProfile(chip, freq)
	if err != nil {
		panic(err.Error())
	}
	return p
}

// FrequencyHz is the clock the cycle counts are expressed in.
func (p Profile) FrequencyHz() uint64 { return p.frequencyHz }

func (p Profile) cycles(ns uint64) uint64 {
	return p.frequencyHz * ns / 1_000_000_000
}

// NanosToCycles converts a duration in nanoseconds to clock cycles.
func (p Profile) NanosToCycles(ns uint32) uint32 { return uint32(p.cycles(uint64(ns))) }

// MicrosToCycles converts a duration in microseconds to clock cycles.
func (p Profile) MicrosToCycles(us uint32) uint32 { return uint32(p.cycles(uint64(us) * 1000)) }

func (p Profile) CyclesT0H() uint32    { return p.NanosToCycles(p.T0H) }
func (p Profile) CyclesT1H() uint32    { return p.NanosToCycles(p.T1H) }
func (p Profile) CyclesPeriod() uint32 { return p.NanosToCycles(p.Period) }
func (p Profile) CyclesReset() uint32  { return p.MicrosToCycles(p.Reset) }

// ResetPeriod is the idle time that latches a frame.
func (p Profile) ResetPeriod() time.Duration {
	return time.Duration(p.Reset) * time.Microsecond
}

// MinDisplayPeriod is the shortest allowed interval between two transmissions.
func (p Profile) MinDisplayPeriod() time.Duration {
	return time.Duration(p.MinDisplay) * time.Microsecond
}

// FrameDuration is the time the bitstream of n bytes occupies the line.
func (p Profile) FrameDuration(n int) time.Duration {
	return time.Duration(n) * 8 * time.Duration(p.Period) * time.Nanosecond
}
