// Package app hosts the grid in a glfw window: it owns the scene tree, the
// event loop and the renderer, and runs the frame loop.
package app

import (
	"fmt"
	"time"

	"gridstream/internal/eventloop"
	"gridstream/internal/graphics"
	"gridstream/internal/grid"
	"gridstream/internal/gridmath"
	"gridstream/internal/hud"
	"gridstream/internal/input"
	"gridstream/internal/logging"
	"gridstream/internal/navigation"
	"gridstream/internal/profiling"
	"gridstream/internal/scene"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const slowFrame = 16 * time.Millisecond

// Options configure an App.
type Options struct {
	Mode     navigation.Mode
	Logger   logrus.FieldLogger
	Registry *prometheus.Registry
}

type App struct {
	window   *glfw.Window
	tree     *scene.Tree
	bus      *input.Bus
	loop     *eventloop.Loop
	grid     *grid.Grid
	renderer *graphics.Renderer
	overlay  *hud.FPSOverlay
	limiter  *FPSLimiter
	log      logrus.FieldLogger

	listeners []input.ListenerID
	closed    bool
}

// New mounts a grid into window. The window's GL context must be current.
func New(window *glfw.Window, opts Options) (*App, error) {
	width, height := window.GetSize()
	a := &App{
		window:  window,
		tree:    scene.NewTree(),
		bus:     input.NewBus(),
		loop:    eventloop.New(nil),
		limiter: NewFPSLimiter(),
		log:     logging.Component(opts.Logger, "app"),
	}

	var err error
	if a.renderer, err = graphics.NewRenderer(width, height); err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	var reg prometheus.Registerer
	if opts.Registry != nil {
		reg = opts.Registry
	}
	a.grid = grid.New(grid.Options{Mode: opts.Mode, Logger: opts.Logger, Registerer: reg})
	if err := a.grid.Mount(grid.Surface{Graph: a.tree, Bus: a.bus, Loop: a.loop, Width: width, Height: height}); err != nil {
		a.renderer.Dispose()
		return nil, err
	}

	// registered after the grid so hover sees the moved layer
	a.listeners = append(a.listeners,
		a.bus.On(input.PointerMove, func(ev input.Event) {
			a.tree.DispatchHover(gridmath.Point(ev.X, ev.Y))
		}),
		a.bus.On(input.Resize, func(ev input.Event) {
			a.renderer.SetViewport(ev.Width, ev.Height)
		}),
	)

	if a.overlay, err = hud.NewFPSOverlay(a.tree, a.loop, a.streamStats); err != nil {
		a.Close()
		return nil, fmt.Errorf("fps overlay: %w", err)
	}

	BindWindow(window, a.bus)
	window.SetCursorEnterCallback(func(w *glfw.Window, entered bool) {
		if !entered {
			a.tree.ClearHover()
		}
	})
	window.SetRefreshCallback(func(w *glfw.Window) {
		a.renderer.Render(a.tree)
		w.SwapBuffers()
	})

	return a, nil
}

func (a *App) streamStats() []string {
	m := a.grid.Manager()
	if m == nil {
		return nil
	}
	last := m.LastPass()
	return []string{
		fmt.Sprintf("chunks: %d", m.Len()),
		fmt.Sprintf("last pass: +%d -%d", last.Added, last.Removed),
	}
}

// GoTo centers the view on cell.
func (a *App) GoTo(cell gridmath.CellCoord) error {
	return a.grid.GoTo(cell)
}

// Run drives frames until the window is asked to close.
func (a *App) Run() {
	for !a.window.ShouldClose() {
		a.tick()
	}
}

func (a *App) tick() {
	profiling.ResetFrame()
	start := time.Now()

	glfw.PollEvents()
	a.renderer.Render(a.tree)
	a.window.SwapBuffers()
	a.loop.RunFrame()

	if d := time.Since(start); d > slowFrame {
		a.log.WithField("duration", d).Debugf("Slow frame. Top tasks: %s", profiling.TopN(5))
	}

	idle := a.window.GetAttrib(glfw.Iconified) == glfw.True || a.window.GetAttrib(glfw.Focused) == glfw.False
	a.limiter.Wait(idle)
}

// Close unmounts the grid and frees GL resources. Safe to call twice.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true
	if a.overlay != nil {
		if err := a.overlay.Close(); err != nil {
			a.log.WithError(err).Warn("Failed to remove fps overlay")
		}
	}
	for _, id := range a.listeners {
		a.bus.Off(id)
	}
	a.grid.Unmount()
	a.renderer.Dispose()
	a.log.Info("App closed")
}
