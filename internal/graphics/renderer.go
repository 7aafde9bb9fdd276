// Package graphics draws a scene tree with OpenGL 4.1 core.
package graphics

import (
	"image/color"

	"gridstream/internal/config"
	"gridstream/internal/graphics/drawlist"
	"gridstream/internal/profiling"
	"gridstream/internal/scene"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
)

// Renderer draws the visible part of a scene tree each frame: colored
// rectangles in one batch, then label masks.
type Renderer struct {
	rectShader  *Shader
	labelShader *Shader

	rectVAO, rectVBO   uint32
	labelVAO, labelVBO uint32
	rectCap            int

	textures *labelTextures
	list     drawlist.List
	verts    []float32

	width, height int
	proj          mgl32.Mat4
	clear         color.RGBA
}

// NewRenderer compiles the shaders and sets up buffers. A GL context must be
// current.
func NewRenderer(width, height int) (*Renderer, error) {
	r := &Renderer{textures: newLabelTextures(), clear: config.ClearColor}

	var err error
	if r.rectShader, err = LoadShader("rect"); err != nil {
		return nil, err
	}
	if r.labelShader, err = LoadShader("label"); err != nil {
		r.rectShader.Delete()
		return nil, err
	}

	gl.GenVertexArrays(1, &r.rectVAO)
	gl.GenBuffers(1, &r.rectVBO)
	gl.BindVertexArray(r.rectVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.rectVBO)
	stride := int32(drawlist.FloatsPerVertex * 4)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, stride, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 4, gl.FLOAT, false, stride, gl.PtrOffset(2*4))

	gl.GenVertexArrays(1, &r.labelVAO)
	gl.GenBuffers(1, &r.labelVBO)
	gl.BindVertexArray(r.labelVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.labelVBO)
	gl.BufferData(gl.ARRAY_BUFFER, 6*4*4, nil, gl.DYNAMIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, 4*4, gl.PtrOffset(2*4))

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)

	r.SetViewport(width, height)
	return r, nil
}

// SetViewport updates the projection for a window of the given logical size.
func (r *Renderer) SetViewport(width, height int) {
	r.width, r.height = width, height
	r.proj = mgl32.Ortho2D(0, float32(width), float32(height), 0)
}

// Render draws tr.
func (r *Renderer) Render(tr *scene.Tree) {
	defer profiling.Track("graphics.Render")()

	c := drawlist.Color(r.clear)
	gl.ClearColor(c[0], c[1], c[2], c[3])
	gl.Clear(gl.COLOR_BUFFER_BIT)

	r.list.Build(tr, float64(r.width), float64(r.height), config.LabelColor)
	r.drawRects()
	r.drawLabels()
	r.textures.endFrame()
}

func (r *Renderer) drawRects() {
	r.verts = r.list.AppendRectVertices(r.verts[:0])
	if len(r.verts) == 0 {
		return
	}

	r.rectShader.Use()
	r.rectShader.SetMatrix4("uProj", &r.proj[0])

	gl.BindVertexArray(r.rectVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.rectVBO)
	if len(r.verts) > r.rectCap {
		r.rectCap = len(r.verts) * 2
		gl.BufferData(gl.ARRAY_BUFFER, r.rectCap*4, nil, gl.DYNAMIC_DRAW)
	}
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(r.verts)*4, gl.Ptr(r.verts))
	gl.DrawArrays(gl.TRIANGLES, 0, int32(len(r.verts)/drawlist.FloatsPerVertex))
	gl.BindVertexArray(0)
}

func (r *Renderer) drawLabels() {
	if len(r.list.Glyphs) == 0 {
		return
	}

	r.labelShader.Use()
	r.labelShader.SetMatrix4("uProj", &r.proj[0])
	r.labelShader.SetInt("uMask", 0)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindVertexArray(r.labelVAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, r.labelVBO)

	var quad [24]float32
	for _, g := range r.list.Glyphs {
		tex := r.textures.get(g.Mask)
		x0, y0, x1, y1 := g.X, g.Y, g.X+tex.w, g.Y+tex.h
		quad = [24]float32{
			x0, y0, 0, 0,
			x1, y0, 1, 0,
			x1, y1, 1, 1,
			x0, y0, 0, 0,
			x1, y1, 1, 1,
			x0, y1, 0, 1,
		}
		r.labelShader.SetVector4("uColor", g.Color[0], g.Color[1], g.Color[2], g.Color[3])
		gl.BindTexture(gl.TEXTURE_2D, tex.id)
		gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(quad)*4, gl.Ptr(&quad[0]))
		gl.DrawArrays(gl.TRIANGLES, 0, 6)
	}

	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.BindVertexArray(0)
}

// Dispose releases every GL object.
func (r *Renderer) Dispose() {
	r.textures.dispose()
	if r.rectVAO != 0 {
		gl.DeleteVertexArrays(1, &r.rectVAO)
		gl.DeleteBuffers(1, &r.rectVBO)
	}
	if r.labelVAO != 0 {
		gl.DeleteVertexArrays(1, &r.labelVAO)
		gl.DeleteBuffers(1, &r.labelVBO)
	}
	r.rectShader.Delete()
	r.labelShader.Delete()
}
