package daemon

import (
	"fmt"
	"time"

	"github.com/compute-blade-community/pixelwire/internal/api"
	"github.com/compute-blade-community/pixelwire/pkg/hal"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/compute-blade-community/pixelwire/pkg/strip"
	"github.com/compute-blade-community/pixelwire/pkg/timing"
	"github.com/sierrasoftworks/humane-errors-go"
	"github.com/spf13/viper"
)

// Backend selects how frames reach the wire.
type Backend string

const (
	// BackendSoftware bit-bangs a gpiod line against the monotonic clock.
	BackendSoftware Backend = "software"
	// BackendHardware streams pulses through the RP1 PWM serializer.
	BackendHardware Backend = "hardware"
	// BackendSim drives a simulated pulse peripheral. Nothing is attached to a wire.
	BackendSim Backend = "sim"
)

type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Strip    StripConfig    `yaml:"strip" mapstructure:"strip"`
	Listen   ListenConfig   `yaml:"listen" mapstructure:"listen"`
	Adalight AdalightConfig `yaml:"adalight" mapstructure:"adalight"`
}

type LogConfig struct {
	Mode string `yaml:"mode" mapstructure:"mode"`
}

type StripConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Pixels  int    `yaml:"pixels" mapstructure:"pixels"`
	Order   string `yaml:"order" mapstructure:"order"`
	Chipset string `yaml:"chipset" mapstructure:"chipset"`

	// Timing replaces the named chipset when set.
	Timing *timing.Chipset `yaml:"timing" mapstructure:"timing"`

	// CPUFrequency is the cycle counter rate, in Hz or MHz. Zero selects the rate of the backend's counter.
	CPUFrequency uint64 `yaml:"cpu_frequency" mapstructure:"cpu_frequency"`

	Backend Backend    `yaml:"backend" mapstructure:"backend"`
	GPIO    GPIOConfig `yaml:"gpio" mapstructure:"gpio"`
	Debug   DebugPins  `yaml:"debug" mapstructure:"debug"`

	strip.RetryPolicy `yaml:",inline" mapstructure:",squash"`

	Brightness      uint8         `yaml:"brightness" mapstructure:"brightness"`
	HardwareTimeout time.Duration `yaml:"hardware_timeout" mapstructure:"hardware_timeout"`
}

type GPIOConfig struct {
	Chip string `yaml:"chip" mapstructure:"chip"`
	Line int    `yaml:"line" mapstructure:"line"`
}

// DebugPins are optional lines toggled at frame start and on aborted frames.
type DebugPins struct {
	Enabled     bool `yaml:"enabled" mapstructure:"enabled"`
	TriggerLine int  `yaml:"trigger_line" mapstructure:"trigger_line"`
	AbortLine   int  `yaml:"abort_line" mapstructure:"abort_line"`
}

type ListenConfig struct {
	Grpc           string `yaml:"grpc" mapstructure:"grpc"`
	GrpcListenMode string `yaml:"grpc_listen_mode" mapstructure:"grpc_listen_mode"`
	// GrpcAuthenticated requires mutual TLS on a tcp listener. Certificates live in CertDir.
	GrpcAuthenticated bool   `yaml:"grpc_authenticated" mapstructure:"grpc_authenticated"`
	CertDir           string `yaml:"cert_dir" mapstructure:"cert_dir"`
	Metrics           string `yaml:"metrics" mapstructure:"metrics"`
}

type AdalightConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Port    string `yaml:"port" mapstructure:"port"`
	Baud    int    `yaml:"baud" mapstructure:"baud"`
}

// SetDefaults registers the default configuration on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.mode", "production")

	v.SetDefault("strip.name", "default")
	v.SetDefault("strip.pixels", 60)
	v.SetDefault("strip.order", pixel.GRB.String())
	v.SetDefault("strip.chipset", timing.WS2812.Name)
	v.SetDefault("strip.cpu_frequency", 0)
	v.SetDefault("strip.backend", string(BackendSoftware))
	v.SetDefault("strip.gpio.chip", "gpiochip0")
	v.SetDefault("strip.gpio.line", 18)
	v.SetDefault("strip.debug.enabled", false)
	v.SetDefault("strip.tolerate_interrupts", true)
	v.SetDefault("strip.retry_budget", strip.DefaultRetryBudget)
	v.SetDefault("strip.brightness", 255)
	v.SetDefault("strip.hardware_timeout", "100ms")

	v.SetDefault("listen.grpc", "/tmp/pixelwire.sock")
	v.SetDefault("listen.grpc_listen_mode", string(api.ModeUnix))
	v.SetDefault("listen.grpc_authenticated", false)
	v.SetDefault("listen.cert_dir", "/etc/pixelwire")
	v.SetDefault("listen.metrics", ":9666")

	v.SetDefault("adalight.enabled", false)
	v.SetDefault("adalight.baud", 115200)
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, humane.Error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, humane.Wrap(err, "failed to decode configuration",
			"check the configuration file against the documented keys and types",
		)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() humane.Error {
	if c.Strip.Pixels <= 0 {
		return humane.New(fmt.Sprintf("strip must have at least one pixel, got %d", c.Strip.Pixels),
			"set strip.pixels to the number of LEDs on the chain",
		)
	}

	if _, err := pixel.ParseOrder(c.Strip.Order); err != nil {
		return err
	}

	if _, err := c.Strip.Profile(); err != nil {
		return err
	}

	switch c.Strip.Backend {
	case BackendSoftware, BackendHardware, BackendSim:
	default:
		return humane.New(fmt.Sprintf("unknown backend %q", c.Strip.Backend),
			"set strip.backend to one of 'software', 'hardware' or 'sim'",
		)
	}

	if err := c.Strip.RetryPolicy.Validate(); err != nil {
		return err
	}

	mode, err := api.ListenModeFromString(c.Listen.GrpcListenMode)
	if err != nil {
		return err
	}
	if c.Listen.GrpcAuthenticated && mode != api.ModeTCP {
		return humane.New("authentication is only available on tcp listeners",
			"set listen.grpc_listen_mode to 'tcp' or disable listen.grpc_authenticated",
			"unix sockets are protected by file permissions instead",
		)
	}

	if c.Adalight.Enabled {
		if c.Adalight.Port == "" {
			return humane.New("adalight is enabled without a serial port",
				"set adalight.port to the serial device, for example /dev/ttyACM0",
			)
		}
		if c.Adalight.Baud <= 0 {
			return humane.New(fmt.Sprintf("invalid adalight baud rate %d", c.Adalight.Baud),
				"set adalight.baud to the rate used by the sender, usually 115200",
			)
		}
	}

	return nil
}

// ResolveChipset returns the custom timing or the named chipset.
func (s StripConfig) ResolveChipset() (timing.Chipset, humane.Error) {
	if s.Timing != nil {
		chip := *s.Timing
		if chip.Name == "" {
			chip.Name = "custom"
		}
		return chip, chip.Validate()
	}

	return timing.ChipsetByName(s.Chipset)
}

// Profile derives the timing profile for the configured counter rate.
func (s StripConfig) Profile() (timing.Profile, humane.Error) {
	chip, err := s.ResolveChipset()
	if err != nil {
		return timing.Profile{}, err
	}

	freq := s.CPUFrequency
	if freq == 0 {
		freq = hal.MonotonicCounterHz
	}

	if s.Backend == BackendSoftware && timing.NormalizeFrequency(freq) != hal.MonotonicCounterHz {
		return timing.Profile{}, humane.New(fmt.Sprintf("software backend counts at %d Hz, not %d Hz", hal.MonotonicCounterHz, timing.NormalizeFrequency(freq)),
			"leave strip.cpu_frequency unset for the software backend",
		)
	}

	return timing.NewProfile(chip, freq)
}
