package graphics

import (
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// labelTextures keeps one GL texture per label mask. Labels are immutable, so
// the mask pointer is the key; entries not drawn for maxIdleFrames are freed.
type labelTextures struct {
	entries map[*image.Alpha]*labelTexture
	frame   uint64
}

type labelTexture struct {
	id       uint32
	w, h     float32
	lastUsed uint64
}

const maxIdleFrames = 120

func newLabelTextures() *labelTextures {
	return &labelTextures{entries: make(map[*image.Alpha]*labelTexture)}
}

// get returns the texture for mask, uploading it on first use.
func (t *labelTextures) get(mask *image.Alpha) *labelTexture {
	if tex, ok := t.entries[mask]; ok {
		tex.lastUsed = t.frame
		return tex
	}
	size := mask.Rect.Size()
	tex := &labelTexture{id: uploadAlpha(mask), w: float32(size.X), h: float32(size.Y), lastUsed: t.frame}
	t.entries[mask] = tex
	return tex
}

// endFrame advances the frame counter and frees idle textures.
func (t *labelTextures) endFrame() {
	for mask, tex := range t.entries {
		if t.frame-tex.lastUsed > maxIdleFrames {
			gl.DeleteTextures(1, &tex.id)
			delete(t.entries, mask)
		}
	}
	t.frame++
}

func (t *labelTextures) dispose() {
	for mask, tex := range t.entries {
		gl.DeleteTextures(1, &tex.id)
		delete(t.entries, mask)
	}
}

// uploadAlpha creates a single-channel texture from an alpha mask.
func uploadAlpha(mask *image.Alpha) uint32 {
	size := mask.Rect.Size()

	var texture uint32
	gl.GenTextures(1, &texture)
	gl.BindTexture(gl.TEXTURE_2D, texture)

	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, int32(mask.Stride))
	gl.TexImage2D(
		gl.TEXTURE_2D,
		0,
		gl.R8,
		int32(size.X),
		int32(size.Y),
		0,
		gl.RED,
		gl.UNSIGNED_BYTE,
		gl.Ptr(mask.Pix),
	)
	gl.PixelStorei(gl.UNPACK_ROW_LENGTH, 0)

	gl.BindTexture(gl.TEXTURE_2D, 0)
	return texture
}
