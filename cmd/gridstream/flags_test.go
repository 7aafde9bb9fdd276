package main

import (
	"testing"

	"gridstream/internal/config"
	"gridstream/internal/gridmath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCell(t *testing.T) {
	c, err := parseCell("12, -7")
	require.NoError(t, err)
	assert.Equal(t, gridmath.CellCoord{X: 12, Y: -7}, c)

	for _, bad := range []string{"", "3", "a,1", "1,b"} {
		_, err := parseCell(bad)
		assert.Error(t, err, bad)
	}
}

func TestFlagsOverrideOnlyWhatIsSet(t *testing.T) {
	o, err := parseFlags([]string{"--mode", "simple", "--fps=0"})
	require.NoError(t, err)

	s := config.Default()
	s.MetricsAddr = ":9100"
	o.apply(&s)

	assert.Equal(t, "simple", s.Navigation.Mode)
	assert.Equal(t, 0, s.FPSLimit)
	assert.Equal(t, ":9100", s.MetricsAddr)
	assert.Equal(t, "info", s.Log.Level)
}

func TestParseFlagsRejectsUnknown(t *testing.T) {
	_, err := parseFlags([]string{"--zoom", "2"})
	assert.Error(t, err)
}
