// Package gridmath maps between world pixel space, chunk indices and cell indices.
// Everything here is pure.
package gridmath

import (
	"math"
	"strconv"

	"gridstream/internal/config"

	"github.com/go-gl/mathgl/mgl64"
)

// WorldPoint is a pixel-space position relative to the fixed world origin.
type WorldPoint = mgl64.Vec2

// Point builds a WorldPoint.
func Point(x, y float64) WorldPoint {
	return WorldPoint{x, y}
}

// ChunkCoord identifies a chunk by floor(world / ChunkPixelSize).
type ChunkCoord struct {
	X, Y int
}

// String returns the "cx,cy" key form.
func (c ChunkCoord) String() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

// Origin returns the world position of the chunk's top-left corner.
func (c ChunkCoord) Origin() WorldPoint {
	return Point(float64(c.X*config.ChunkPixelSize), float64(c.Y*config.ChunkPixelSize))
}

// Cell returns the absolute coordinate of the cell at local (col, row).
func (c ChunkCoord) Cell(col, row int) CellCoord {
	return CellCoord{X: c.X*config.ChunkSize + col, Y: c.Y*config.ChunkSize + row}
}

// CellCoord is an absolute cell position.
type CellCoord struct {
	X, Y int
}

// IsZero reports whether c is the distinguished cell at (0,0).
func (c CellCoord) IsZero() bool {
	return c.X == 0 && c.Y == 0
}

func (c CellCoord) String() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

// Chunk returns the chunk holding c.
func (c CellCoord) Chunk() ChunkCoord {
	return ChunkCoord{X: floorDiv(c.X, config.ChunkSize), Y: floorDiv(c.Y, config.ChunkSize)}
}

// Local returns c's column and row inside its chunk.
func (c CellCoord) Local() (col, row int) {
	return mod(c.X, config.ChunkSize), mod(c.Y, config.ChunkSize)
}

// Origin returns the world position of the cell's top-left corner.
func (c CellCoord) Origin() WorldPoint {
	return Point(float64(c.X*config.CellPixelSize), float64(c.Y*config.CellPixelSize))
}

// Center returns the world position of the cell's center.
func (c CellCoord) Center() WorldPoint {
	half := float64(config.CellPixelSize) / 2
	return c.Origin().Add(Point(half, half))
}

// ChunkCoordOf returns the chunk containing the world point (x, y).
func ChunkCoordOf(x, y float64) ChunkCoord {
	return ChunkCoord{
		X: int(math.Floor(x / config.ChunkPixelSize)),
		Y: int(math.Floor(y / config.ChunkPixelSize)),
	}
}

// CellCoordOf returns the cell containing the world point (x, y).
func CellCoordOf(x, y float64) CellCoord {
	return CellCoord{
		X: int(math.Floor(x / config.CellPixelSize)),
		Y: int(math.Floor(y / config.CellPixelSize)),
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
