package config

import (
	"image/color"
	"time"
)

const (
	// Grid geometry
	CellPixelSize  = 50 // size of one cell in pixels
	ChunkSize      = 20 // cells per chunk edge
	ChunkPixelSize = ChunkSize * CellPixelSize

	// ChunkMargin is the number of extra chunks streamed past each viewport edge
	ChunkMargin = 1

	// UpdateThrottle is the minimum spacing of streaming updates while dragging
	UpdateThrottle = 100 * time.Millisecond
	// DeferredUpdateDelay is how long a coalesced update waits before retrying
	DeferredUpdateDelay = 16 * time.Millisecond

	// LabelCacheChurnFactor scales the label cache past the visible cell count
	LabelCacheChurnFactor = 2

	// FPSOverlayInterval is how often the FPS overlay text is refreshed
	FPSOverlayInterval = 500 * time.Millisecond

	MaxFPSLimit = 1000
)

var (
	GridBackground = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	ZeroCellColor  = color.RGBA{R: 0xff, A: 0xff}
	HoverColor     = color.RGBA{A: 0xff}
	StrokeColor    = color.RGBA{A: 0xff}
	LabelColor     = color.RGBA{A: 0xff}
	ClearColor     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)
