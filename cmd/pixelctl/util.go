package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/compute-blade-community/pixelwire/pkg/util"
)

// parseColor accepts #rrggbb, 0xrrggbb or rrggbb.
func parseColor(s string) (uint32, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "#"), "0x")
	if len(hex) != 6 {
		return 0, fmt.Errorf("invalid color %q, expected six hex digits like #ff8800", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return uint32(v), nil
}

func abortRateLabel(frames, aborted int64) string {
	if frames == 0 {
		return "no frames"
	}
	return fmt.Sprintf("%.1f%%", float64(aborted)*100/float64(frames))
}

func elapsedLabel(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func abortStyle(frames, aborted int64) lipgloss.Style {
	color := util.ColorOk

	switch {
	case aborted > 0 && aborted*10 >= frames:
		color = util.ColorCritical
	case aborted > 0:
		color = util.ColorWarning
	}

	return lipgloss.NewStyle().Foreground(color)
}
