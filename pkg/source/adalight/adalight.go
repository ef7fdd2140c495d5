// Package adalight reads Adalight frames, the serial protocol of ambient lighting hosts, into pixel colors.
//
// A frame is the magic "Ada", the LED count minus one as a big endian uint16, a checksum of
// hi^lo^0x55, followed by three bytes (R, G, B) per LED.
package adalight

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/compute-blade-community/pixelwire/pkg/log"
	"github.com/compute-blade-community/pixelwire/pkg/pixel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	magic    = "Ada"
	greeting = "Ada\n"
)

var (
	framesCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Subsystem: "adalight",
		Name:      "frames_count",
		Help:      "Adalight frames received",
	})

	checksumErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pixelwire",
		Subsystem: "adalight",
		Name:      "checksum_errors_count",
		Help:      "Adalight headers dropped because of a checksum mismatch",
	})
)

// Decoder reads frames from a byte stream and resynchronizes on the magic after garbage.
type Decoder struct {
	r *bufio.Reader
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next blocks until a complete frame was read.
func (d *Decoder) Next() ([]pixel.Color, error) {
	for {
		if err := d.sync(); err != nil {
			return nil, err
		}

		var hdr [3]byte
		if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
			return nil, err
		}
		if hdr[0]^hdr[1]^0x55 != hdr[2] {
			checksumErrorCounter.Inc()
			continue
		}

		count := (int(hdr[0])<<8 | int(hdr[1])) + 1
		raw := make([]byte, count*3)
		if _, err := io.ReadFull(d.r, raw); err != nil {
			return nil, err
		}

		colors := make([]pixel.Color, count)
		for i := range colors {
			colors[i] = pixel.Color{Red: raw[i*3], Green: raw[i*3+1], Blue: raw[i*3+2]}
		}
		framesCounter.Inc()
		return colors, nil
	}
}

// sync consumes bytes until the magic has been read.
func (d *Decoder) sync() error {
	matched := 0
	for matched < len(magic) {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		switch {
		case b == magic[matched]:
			matched++
		case b == magic[0]:
			matched = 1
		default:
			matched = 0
		}
	}
	return nil
}

// Encode writes colors as one frame.
func Encode(w io.Writer, colors []pixel.Color) error {
	if len(colors) == 0 || len(colors) > 1<<16 {
		return fmt.Errorf("adalight frames carry 1 to 65536 LEDs, got %d", len(colors))
	}

	n := len(colors) - 1
	buf := make([]byte, 0, 6+len(colors)*3)
	buf = append(buf, magic...)
	buf = append(buf, byte(n>>8), byte(n), byte(n>>8)^byte(n)^0x55)
	for _, c := range colors {
		buf = append(buf, c.Red, c.Green, c.Blue)
	}

	_, err := w.Write(buf)
	return err
}

// Sink receives every decoded frame.
type Sink func(ctx context.Context, colors []pixel.Color) error

// Serve decodes frames from rw until ctx is canceled or the stream ends.
func Serve(ctx context.Context, rw io.ReadWriter, sink Sink) error {
	if _, err := io.WriteString(rw, greeting); err != nil {
		return fmt.Errorf("failed to send adalight greeting: %w", err)
	}

	dec := NewDecoder(rw)
	for {
		colors, err := dec.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if err := sink(ctx, colors); err != nil {
			log.FromContext(ctx).Warn("failed to apply adalight frame", zap.Error(err), zap.Int("leds", len(colors)))
		}
	}
}

// ListenSerial opens the serial port and serves frames from it until ctx is canceled.
func ListenSerial(ctx context.Context, portName string, baud int, sink Sink) error {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	stop := context.AfterFunc(ctx, func() {
		port.Close()
	})
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	log.FromContext(ctx).Info("Listening for adalight frames", zap.String("port", portName), zap.Int("baud", baud))
	return Serve(ctx, port, sink)
}
