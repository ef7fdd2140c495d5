package main

import (
	"testing"

	"github.com/compute-blade-community/pixelwire/pkg/util"
	"github.com/stretchr/testify/assert"
)

func TestParseColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "#ff8800", want: 0xff8800},
		{in: "0x00FF00", want: 0x00ff00},
		{in: "0000ff", want: 0x0000ff},
		{in: "#fff", wantErr: true},
		{in: "#gg0000", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := parseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAbortLabelsAndStyle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no frames", abortRateLabel(0, 0))
	assert.Equal(t, "25.0%", abortRateLabel(4, 1))
	assert.Equal(t, "1m30s", elapsedLabel(90_400))

	assert.Equal(t, util.ColorOk, abortStyle(100, 0).GetForeground())
	assert.Equal(t, util.ColorWarning, abortStyle(100, 1).GetForeground())
	assert.Equal(t, util.ColorCritical, abortStyle(100, 10).GetForeground())
}
