package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WindowSettings describes the host window
type WindowSettings struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// NavigationSettings selects how drag gestures trigger streaming
type NavigationSettings struct {
	// Mode is "simple" (stream on every move) or "throttled"
	Mode string `yaml:"mode"`
}

// LogSettings configures the process logger
type LogSettings struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Settings is the host configuration read from a YAML file.
// Grid geometry is fixed at build time and is not part of it.
type Settings struct {
	Window      WindowSettings     `yaml:"window"`
	Navigation  NavigationSettings `yaml:"navigation"`
	FPSLimit    int                `yaml:"fps_limit"`
	ShowFPS     bool               `yaml:"show_fps"`
	Log         LogSettings        `yaml:"log"`
	MetricsAddr string             `yaml:"metrics_addr"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		Window: WindowSettings{
			Width:  1280,
			Height: 800,
			Title:  "gridstream",
		},
		Navigation: NavigationSettings{Mode: "throttled"},
		FPSLimit:   60,
		ShowFPS:    true,
		Log: LogSettings{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load reads settings from path on top of Default. An empty path returns the defaults.
func Load(path string) (Settings, error) {
	s := Default()
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate reports the first unusable value in s.
func (s Settings) Validate() error {
	if s.Window.Width <= 0 || s.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d must be positive", s.Window.Width, s.Window.Height)
	}
	if s.FPSLimit < 0 || s.FPSLimit > MaxFPSLimit {
		return fmt.Errorf("fps_limit %d out of range [0,%d]", s.FPSLimit, MaxFPSLimit)
	}
	switch s.Navigation.Mode {
	case "simple", "throttled":
	default:
		return errors.New("navigation.mode must be \"simple\" or \"throttled\"")
	}
	return nil
}
