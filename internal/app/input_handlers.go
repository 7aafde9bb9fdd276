package app

import (
	"gridstream/internal/input"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// BindWindow forwards the window's pointer and size events to bus. Positions
// are in window coordinates; releases outside the window are reported as
// PointerUpOutside.
func BindWindow(window *glfw.Window, bus *input.Bus) {
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		bus.Emit(input.Event{Kind: input.PointerMove, X: xpos, Y: ypos})
	})

	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if button != glfw.MouseButtonLeft {
			return
		}
		x, y := w.GetCursorPos()
		switch action {
		case glfw.Press:
			bus.Emit(input.Event{Kind: input.PointerDown, X: x, Y: y})
		case glfw.Release:
			width, height := w.GetSize()
			kind := input.PointerUp
			if !input.Inside(x, y, width, height) {
				kind = input.PointerUpOutside
			}
			bus.Emit(input.Event{Kind: kind, X: x, Y: y})
		}
	})

	window.SetSizeCallback(func(w *glfw.Window, width, height int) {
		if width <= 0 || height <= 0 {
			// iconified
			return
		}
		bus.Emit(input.Event{Kind: input.Resize, Width: width, Height: height})
	})

	window.SetFramebufferSizeCallback(func(w *glfw.Window, fbWidth, fbHeight int) {
		gl.Viewport(0, 0, int32(fbWidth), int32(fbHeight))
	})
}
