package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkPixelSize(t *testing.T) {
	assert.Equal(t, 1000, ChunkPixelSize)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	data := []byte("window:\n  width: 640\nnavigation:\n  mode: simple\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 640, s.Window.Width)
	assert.Equal(t, 800, s.Window.Height, "unset keys keep defaults")
	assert.Equal(t, "simple", s.Navigation.Mode)
	assert.Equal(t, "debug", s.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"mode":   "navigation:\n  mode: warp\n",
		"width":  "window:\n  width: 0\n",
		"fps":    "fps_limit: -3\n",
		"syntax": "window: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSetFPSLimitClamps(t *testing.T) {
	prev := GetFPSLimit()
	t.Cleanup(func() { SetFPSLimit(prev) })

	SetFPSLimit(-10)
	assert.Equal(t, 0, GetFPSLimit())
	SetFPSLimit(MaxFPSLimit + 1)
	assert.Equal(t, MaxFPSLimit, GetFPSLimit())
	SetFPSLimit(144)
	assert.Equal(t, 144, GetFPSLimit())
}

func TestApply(t *testing.T) {
	prevFPS, prevShow := GetFPSLimit(), GetShowFPS()
	t.Cleanup(func() {
		SetFPSLimit(prevFPS)
		SetShowFPS(prevShow)
	})

	s := Default()
	s.FPSLimit = 30
	s.ShowFPS = false
	Apply(s)
	assert.Equal(t, 30, GetFPSLimit())
	assert.False(t, GetShowFPS())
}
