package gridmath

import (
	"errors"
	"fmt"
	"math"

	"gridstream/internal/config"
)

// ErrInvalidViewport is returned for non-finite or inverted rectangles.
var ErrInvalidViewport = errors.New("invalid viewport")

// ViewportRect is the visible world-space rectangle.
type ViewportRect struct {
	Left, Right, Top, Bottom float64
}

// ViewportFromOffset derives the visible rectangle of a width x height screen
// when the world layer is translated by offset.
func ViewportFromOffset(offset WorldPoint, width, height float64) ViewportRect {
	return ViewportRect{
		Left:   -offset.X(),
		Right:  -offset.X() + width,
		Top:    -offset.Y(),
		Bottom: -offset.Y() + height,
	}
}

// Validate rejects non-finite and empty or inverted rectangles.
func (r ViewportRect) Validate() error {
	for _, v := range [...]float64{r.Left, r.Right, r.Top, r.Bottom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bound in %+v", ErrInvalidViewport, r)
		}
	}
	if r.Right <= r.Left || r.Bottom <= r.Top {
		return fmt.Errorf("%w: inverted or empty %+v", ErrInvalidViewport, r)
	}
	return nil
}

func (r ViewportRect) Width() float64  { return r.Right - r.Left }
func (r ViewportRect) Height() float64 { return r.Bottom - r.Top }

// Translate moves the rectangle by d.
func (r ViewportRect) Translate(d WorldPoint) ViewportRect {
	return ViewportRect{
		Left:   r.Left + d.X(),
		Right:  r.Right + d.X(),
		Top:    r.Top + d.Y(),
		Bottom: r.Bottom + d.Y(),
	}
}

// ChunkRange is an inclusive rectangle of chunk coordinates.
type ChunkRange struct {
	Min, Max ChunkCoord
}

// Contains reports whether c lies inside the range.
func (r ChunkRange) Contains(c ChunkCoord) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X && c.Y >= r.Min.Y && c.Y <= r.Max.Y
}

// Len returns the number of chunks in the range.
func (r ChunkRange) Len() int {
	w := r.Max.X - r.Min.X + 1
	h := r.Max.Y - r.Min.Y + 1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Each calls fn for every coordinate, row-major.
func (r ChunkRange) Each(fn func(ChunkCoord)) {
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			fn(ChunkCoord{X: x, Y: y})
		}
	}
}

// Coords returns every coordinate in the range, row-major.
func (r ChunkRange) Coords() []ChunkCoord {
	out := make([]ChunkCoord, 0, r.Len())
	r.Each(func(c ChunkCoord) { out = append(out, c) })
	return out
}

// VisibleChunkRange expands r by margin chunk widths on every side and converts
// the corners to chunk coordinates, flooring the minimum and ceiling the maximum
// so partially visible chunks are included.
func VisibleChunkRange(r ViewportRect, margin int) ChunkRange {
	pad := float64(margin * config.ChunkPixelSize)
	return ChunkRange{
		Min: ChunkCoord{
			X: int(math.Floor((r.Left - pad) / config.ChunkPixelSize)),
			Y: int(math.Floor((r.Top - pad) / config.ChunkPixelSize)),
		},
		Max: ChunkCoord{
			X: int(math.Ceil((r.Right + pad) / config.ChunkPixelSize)),
			Y: int(math.Ceil((r.Bottom + pad) / config.ChunkPixelSize)),
		},
	}
}
