package config

import "sync"

// RenderSettings holds render configuration that may change while the window is open
type RenderSettings struct {
	mu       sync.RWMutex
	fpsLimit int // 0 = unlimited
	showFPS  bool
}

var globalRenderSettings = &RenderSettings{
	fpsLimit: 60,
	showFPS:  true,
}

// GetFPSLimit returns the current frame rate cap
func GetFPSLimit() int {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.fpsLimit
}

// SetFPSLimit sets the frame rate cap. Values <= 0 disable the cap.
func SetFPSLimit(limit int) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()

	if limit < 0 {
		limit = 0
	}
	if limit > MaxFPSLimit {
		limit = MaxFPSLimit
	}

	globalRenderSettings.fpsLimit = limit
}

// GetShowFPS reports whether the FPS overlay is drawn
func GetShowFPS() bool {
	globalRenderSettings.mu.RLock()
	defer globalRenderSettings.mu.RUnlock()
	return globalRenderSettings.showFPS
}

// SetShowFPS toggles the FPS overlay
func SetShowFPS(show bool) {
	globalRenderSettings.mu.Lock()
	defer globalRenderSettings.mu.Unlock()
	globalRenderSettings.showFPS = show
}

// Apply copies the runtime-adjustable parts of s into the global render settings.
func Apply(s Settings) {
	SetFPSLimit(s.FPSLimit)
	SetShowFPS(s.ShowFPS)
}
