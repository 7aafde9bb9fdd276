// Package grid mounts the streaming grid onto a host surface and exposes the
// small API the surrounding UI uses.
package grid

import (
	"errors"
	"fmt"

	"gridstream/internal/cells"
	"gridstream/internal/chunks"
	"gridstream/internal/config"
	"gridstream/internal/eventloop"
	"gridstream/internal/gridmath"
	"gridstream/internal/input"
	"gridstream/internal/logging"
	"gridstream/internal/navigation"
	"gridstream/internal/scene"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"
)

var (
	ErrAlreadyMounted = errors.New("grid already mounted")
	ErrNotMounted     = errors.New("grid not mounted")
)

// Surface is everything the host provides at mount time.
type Surface struct {
	Graph  scene.Graph
	Bus    *input.Bus
	Loop   eventloop.Scheduler
	Clock  clock.PassiveClock
	Width  int
	Height int
}

// Options configure a Grid for its whole lifetime.
type Options struct {
	Mode   navigation.Mode
	Logger logrus.FieldLogger
	// Registerer receives the streaming metrics. Nil keeps them private.
	Registerer prometheus.Registerer
	// LabelCapacity overrides the label cache size derived from the screen.
	LabelCapacity int
}

// Grid ties the label cache, highlight, chunk manager and navigation together.
type Grid struct {
	opts    Options
	log     logrus.FieldLogger
	metrics *chunks.Metrics

	surface   Surface
	layer     scene.NodeID
	labels    *cells.LabelCache
	highlight *cells.Highlight
	manager   *chunks.Manager
	nav       *navigation.Controller
	mounted   bool
}

// New creates an unmounted grid.
func New(opts Options) *Grid {
	return &Grid{
		opts:    opts,
		log:     logging.Component(opts.Logger, "grid"),
		metrics: chunks.NewMetrics(opts.Registerer),
	}
}

// Mount builds the world layer centered on the origin and streams in the
// initial chunks.
func (g *Grid) Mount(s Surface) (err error) {
	if g.mounted {
		return ErrAlreadyMounted
	}
	if s.Graph == nil || s.Bus == nil || s.Loop == nil {
		return errors.New("grid: surface needs a graph, bus and loop")
	}
	g.surface = s
	defer func() {
		if err != nil {
			g.teardown()
		}
	}()

	g.layer, err = s.Graph.CreateNode(scene.Props{
		Kind:     scene.KindContainer,
		Position: gridmath.Point(float64(s.Width)/2, float64(s.Height)/2),
		Visible:  true,
	})
	if err != nil {
		return fmt.Errorf("grid: create layer: %w", err)
	}
	if err = s.Graph.AttachChildren(s.Graph.Root(), g.layer); err != nil {
		return fmt.Errorf("grid: attach layer: %w", err)
	}

	if g.highlight, err = cells.NewHighlight(s.Graph, s.Graph.Root()); err != nil {
		return fmt.Errorf("grid: %w", err)
	}

	capacity := g.opts.LabelCapacity
	if capacity <= 0 {
		capacity = cells.DefaultCapacity(s.Width, s.Height)
	}
	if g.labels, err = cells.NewLabelCache(capacity); err != nil {
		return fmt.Errorf("grid: %w", err)
	}

	opts := chunks.DefaultOptions()
	opts.ViewportSource = g.viewport
	opts.Logger = g.opts.Logger
	opts.Metrics = g.metrics
	g.manager = chunks.NewManager(s.Graph, g.layer, g.labels, g.highlight, s.Loop, opts)

	g.nav, err = navigation.New(navigation.Options{
		Mode:      g.opts.Mode,
		Graph:     s.Graph,
		Layer:     g.layer,
		Streamer:  g.manager,
		Bus:       s.Bus,
		Highlight: g.highlight,
		Clock:     s.Clock,
		Throttle:  config.UpdateThrottle,
		Width:     s.Width,
		Height:    s.Height,
		Logger:    g.opts.Logger,
	})
	if err != nil {
		return fmt.Errorf("grid: %w", err)
	}

	if err = g.manager.UpdateVisibleChunks(g.nav.Viewport()); err != nil {
		return fmt.Errorf("grid: initial update: %w", err)
	}
	g.mounted = true
	g.log.WithFields(logrus.Fields{
		"width":  s.Width,
		"height": s.Height,
		"mode":   g.opts.Mode.String(),
		"chunks": g.manager.Len(),
	}).Info("Grid mounted")
	return nil
}

func (g *Grid) viewport() gridmath.ViewportRect {
	if g.nav == nil {
		return gridmath.ViewportRect{}
	}
	return g.nav.Viewport()
}

// Unmount stops navigation, destroys every chunk and removes the grid's nodes.
// It is safe to call more than once.
func (g *Grid) Unmount() {
	if !g.mounted {
		return
	}
	g.teardown()
	g.log.Info("Grid unmounted")
}

func (g *Grid) teardown() {
	if g.nav != nil {
		g.nav.Cleanup()
		g.nav = nil
	}
	if g.manager != nil {
		g.manager.Cleanup()
		g.manager = nil
	}
	if g.highlight != nil {
		if err := g.highlight.Destroy(); err != nil {
			g.log.WithError(err).Warn("Failed to destroy highlight")
		}
		g.highlight = nil
	}
	if g.layer != scene.NoNode {
		if err := g.surface.Graph.DestroyNode(g.layer); err != nil {
			g.log.WithError(err).Warn("Failed to destroy layer")
		}
		g.layer = scene.NoNode
	}
	g.labels = nil
	g.mounted = false
}

// GoTo centers the view on cell.
func (g *Grid) GoTo(cell gridmath.CellCoord) error {
	if !g.mounted {
		return ErrNotMounted
	}
	return g.nav.GoTo(cell)
}

// Mounted reports whether the grid is on a surface.
func (g *Grid) Mounted() bool { return g.mounted }

// Layer returns the world layer node.
func (g *Grid) Layer() scene.NodeID { return g.layer }

// Manager returns the chunk manager while mounted.
func (g *Grid) Manager() *chunks.Manager { return g.manager }

// Navigation returns the navigation controller while mounted.
func (g *Grid) Navigation() *navigation.Controller { return g.nav }

// Highlight returns the hover highlight while mounted.
func (g *Grid) Highlight() *cells.Highlight { return g.highlight }

// Labels returns the label cache while mounted.
func (g *Grid) Labels() *cells.LabelCache { return g.labels }

// Metrics returns the streaming metrics, which outlive mounts.
func (g *Grid) Metrics() *chunks.Metrics { return g.metrics }
