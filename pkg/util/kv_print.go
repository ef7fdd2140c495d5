package util

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	ColorCritical = lipgloss.Color("#cc0000")
	ColorWarning  = lipgloss.Color("#e69138")
	ColorOk       = lipgloss.Color("#04B575")
	ColorUnknown  = lipgloss.Color("#68228B")
)

func OkStyle([]any) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorOk)
}

// KeyValuePair is one line of a key/value listing. Style picks the value style from the values.
type KeyValuePair struct {
	Key    string
	Format string
	Value  []any
	Style  func([]any) lipgloss.Style
}

// PrintKeyValues renders pairs with aligned keys.
func PrintKeyValues(pairs []KeyValuePair) string {
	keyStyle := lipgloss.NewStyle().Bold(true)

	width := 0
	for _, kv := range pairs {
		width = max(width, len(kv.Key)+1)
	}

	lines := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		value := fmt.Sprintf(kv.Format, kv.Value...)
		if kv.Style != nil {
			value = kv.Style(kv.Value).Render(value)
		}
		key := keyStyle.Render(fmt.Sprintf("%-*s", width, kv.Key+":"))
		lines = append(lines, key+" "+value)
	}

	return strings.Join(lines, "\n")
}
