// Package drawlist flattens a scene tree into screen-space rectangles and
// label masks ready for upload. It has no GL dependency.
package drawlist

import (
	"image"
	"image/color"
	"math"

	"gridstream/internal/gridmath"
	"gridstream/internal/profiling"
	"gridstream/internal/scene"

	"github.com/go-gl/mathgl/mgl32"
)

// FloatsPerVertex is x, y, r, g, b, a.
const FloatsPerVertex = 6

// Rect is a filled screen-space rectangle, top-left origin.
type Rect struct {
	X, Y, W, H float32
	Color      mgl32.Vec4
}

// Glyph is an alpha mask drawn at a pixel position.
type Glyph struct {
	X, Y  float32
	Mask  *image.Alpha
	Color mgl32.Vec4
}

// List is one frame's worth of draw data. Reuse it across frames.
type List struct {
	Rects  []Rect
	Glyphs []Glyph
}

// Color converts an 8-bit color to normalized floats.
func Color(c color.RGBA) mgl32.Vec4 {
	return mgl32.Vec4{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
}

// Reset empties the list keeping its storage.
func (l *List) Reset() {
	l.Rects = l.Rects[:0]
	l.Glyphs = l.Glyphs[:0]
}

// Build fills the list from the visible nodes of tr that intersect a
// width x height screen. Sized nodes entirely off screen are skipped with
// their subtree.
func (l *List) Build(tr *scene.Tree, width, height float64, labelColor color.RGBA) {
	defer profiling.Track("drawlist.Build")()
	l.Reset()
	ink := Color(labelColor)

	tr.Walk(func(n *scene.Node, pos gridmath.WorldPoint) bool {
		sized := n.Size != (gridmath.WorldPoint{})
		if sized && !onScreen(pos, n.Size, width, height) {
			return false
		}
		x, y := float32(math.Round(pos.X())), float32(math.Round(pos.Y()))
		w, h := float32(n.Size.X()), float32(n.Size.Y())

		if sized && n.Fill.A > 0 {
			l.Rects = append(l.Rects, Rect{X: x, Y: y, W: w, H: h, Color: Color(n.Fill)})
		}
		if sized && n.StrokeWidth > 0 && n.Stroke.A > 0 {
			l.appendStroke(x, y, w, h, float32(n.StrokeWidth), Color(n.Stroke))
		}
		if n.Label != nil {
			b := n.Label.Bounds()
			gx, gy := x, y
			if sized {
				gx += float32(math.Floor(float64(w-float32(b.Dx())) / 2))
				gy += float32(math.Floor(float64(h-float32(b.Dy())) / 2))
			}
			l.Glyphs = append(l.Glyphs, Glyph{X: gx, Y: gy, Mask: n.Label, Color: ink})
		}
		return true
	})
}

// appendStroke draws the border inside the rectangle as four bars.
func (l *List) appendStroke(x, y, w, h, sw float32, c mgl32.Vec4) {
	l.Rects = append(l.Rects,
		Rect{X: x, Y: y, W: w, H: sw, Color: c},
		Rect{X: x, Y: y + h - sw, W: w, H: sw, Color: c},
		Rect{X: x, Y: y + sw, W: sw, H: h - 2*sw, Color: c},
		Rect{X: x + w - sw, Y: y + sw, W: sw, H: h - 2*sw, Color: c},
	)
}

// AppendRectVertices appends two triangles per rect to dst.
func (l *List) AppendRectVertices(dst []float32) []float32 {
	for _, r := range l.Rects {
		x0, y0, x1, y1 := r.X, r.Y, r.X+r.W, r.Y+r.H
		c := r.Color
		dst = append(dst,
			x0, y0, c[0], c[1], c[2], c[3],
			x1, y0, c[0], c[1], c[2], c[3],
			x1, y1, c[0], c[1], c[2], c[3],
			x0, y0, c[0], c[1], c[2], c[3],
			x1, y1, c[0], c[1], c[2], c[3],
			x0, y1, c[0], c[1], c[2], c[3],
		)
	}
	return dst
}

func onScreen(pos, size gridmath.WorldPoint, width, height float64) bool {
	return pos.X() < width && pos.Y() < height && pos.X()+size.X() > 0 && pos.Y()+size.Y() > 0
}
