// Package cells produces the visual content of grid cells: rasterized
// coordinate labels, cached by absolute coordinate, and the shared hover
// highlight.
package cells

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"gridstream/internal/config"
	"gridstream/internal/gridmath"
	"gridstream/internal/profiling"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Label is the immutable rendered content for one cell.
type Label struct {
	Coord gridmath.CellCoord
	Text  string
	Image *image.Alpha
}

// LabelCache memoizes labels by absolute coordinate. It is bounded by an LRU so
// long pans do not grow it forever; while an entry is resident every lookup
// returns the same *Label.
type LabelCache struct {
	entries *lru.Cache[gridmath.CellCoord, *Label]
	hits    uint64
	misses  uint64
}

// NewLabelCache creates a cache holding at most capacity labels.
func NewLabelCache(capacity int) (*LabelCache, error) {
	entries, err := lru.New[gridmath.CellCoord, *Label](capacity)
	if err != nil {
		return nil, fmt.Errorf("label cache: %w", err)
	}
	return &LabelCache{entries: entries}, nil
}

// DefaultCapacity sizes a cache for a width x height screen: the most chunks
// that can be materialized at once, times the cells in a chunk, times the churn
// factor.
func DefaultCapacity(width, height int) int {
	chunksX := int(math.Ceil(float64(width)/config.ChunkPixelSize)) + 2 + 2*config.ChunkMargin
	chunksY := int(math.Ceil(float64(height)/config.ChunkPixelSize)) + 2 + 2*config.ChunkMargin
	return chunksX * chunksY * config.ChunkSize * config.ChunkSize * config.LabelCacheChurnFactor
}

// LabelFor returns the cached label for coord, rendering it on a miss.
func (c *LabelCache) LabelFor(coord gridmath.CellCoord) *Label {
	if l, ok := c.entries.Get(coord); ok {
		c.hits++
		return l
	}
	c.misses++
	l := renderLabel(coord)
	c.entries.Add(coord, l)
	return l
}

// Contains reports whether coord is resident without touching recency.
func (c *LabelCache) Contains(coord gridmath.CellCoord) bool {
	return c.entries.Contains(coord)
}

// Len returns the number of resident labels.
func (c *LabelCache) Len() int { return c.entries.Len() }

// Purge drops every label.
func (c *LabelCache) Purge() { c.entries.Purge() }

// Stats returns lookup hits and misses since creation.
func (c *LabelCache) Stats() (hits, misses uint64) { return c.hits, c.misses }

// LabelText is the text shown in a cell: its x and y on two lines.
func LabelText(coord gridmath.CellCoord) string {
	return strconv.Itoa(coord.X) + "\n" + strconv.Itoa(coord.Y)
}

func renderLabel(coord gridmath.CellCoord) *Label {
	defer profiling.Track("cells.renderLabel")()
	text := LabelText(coord)
	return &Label{Coord: coord, Text: text, Image: RasterizeText(text)}
}

// RasterizeText draws text with the built-in 7x13 face into a tight alpha
// mask, one centered row per line.
func RasterizeText(text string) *image.Alpha {
	face := basicfont.Face7x13
	lines := strings.Split(text, "\n")
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	width := 0
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line).Ceil())
	}
	img := image.NewAlpha(image.Rect(0, 0, max(width, 1), lineHeight*len(lines)))

	d := &font.Drawer{Dst: img, Src: image.Opaque, Face: face}
	for i, line := range lines {
		lw := font.MeasureString(face, line).Ceil()
		d.Dot = fixed.P((width-lw)/2, i*lineHeight+ascent)
		d.DrawString(line)
	}
	return img
}
