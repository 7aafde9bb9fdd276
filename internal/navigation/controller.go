// Package navigation turns pointer drags, resizes and go-to requests into
// layer offsets and streaming updates.
package navigation

import (
	"errors"
	"fmt"
	"time"

	"gridstream/internal/cells"
	"gridstream/internal/config"
	"gridstream/internal/gridmath"
	"gridstream/internal/input"
	"gridstream/internal/logging"
	"gridstream/internal/scene"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"k8s.io/utils/clock"
)

var errInvalidSize = errors.New("screen size must be positive")

// Streamer receives the viewport after every navigation step.
type Streamer interface {
	UpdateVisibleChunks(gridmath.ViewportRect) error
}

// Options configure a Controller. Graph, Layer, Streamer and Bus are required.
type Options struct {
	Mode     Mode
	Graph    scene.Graph
	Layer    scene.NodeID
	Streamer Streamer
	Bus      *input.Bus
	// Highlight, when set, is re-placed whenever the layer moves.
	Highlight *cells.Highlight
	Clock     clock.PassiveClock
	Throttle  time.Duration
	Width     int
	Height    int
	Logger    logrus.FieldLogger
}

// Controller owns the world layer's offset and drives streaming from input.
type Controller struct {
	graph     scene.Graph
	layer     scene.NodeID
	streamer  Streamer
	bus       *input.Bus
	highlight *cells.Highlight
	clock     clock.PassiveClock
	mode      Mode
	limiter   *rate.Limiter
	log       logrus.FieldLogger

	offset    gridmath.WorldPoint
	width     float64
	height    float64
	state     State
	last      gridmath.WorldPoint
	listeners []input.ListenerID
}

// New creates a controller and subscribes it to the bus. The starting offset is
// the layer's current screen position.
func New(opts Options) (*Controller, error) {
	if opts.Graph == nil || opts.Streamer == nil || opts.Bus == nil {
		return nil, errors.New("navigation: graph, streamer and bus are required")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("navigation: %w: %dx%d", errInvalidSize, opts.Width, opts.Height)
	}
	offset, err := opts.Graph.ScreenPositionOf(opts.Layer)
	if err != nil {
		return nil, fmt.Errorf("navigation: layer: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Throttle <= 0 {
		opts.Throttle = config.UpdateThrottle
	}

	c := &Controller{
		graph:     opts.Graph,
		layer:     opts.Layer,
		streamer:  opts.Streamer,
		bus:       opts.Bus,
		highlight: opts.Highlight,
		clock:     opts.Clock,
		mode:      opts.Mode,
		limiter:   rate.NewLimiter(rate.Every(opts.Throttle), 1),
		log:       logging.Component(opts.Logger, "navigation"),
		offset:    offset,
		width:     float64(opts.Width),
		height:    float64(opts.Height),
	}
	c.listeners = []input.ListenerID{
		c.bus.On(input.PointerDown, c.onDown),
		c.bus.On(input.PointerMove, c.onMove),
		c.bus.On(input.PointerUp, c.onUp),
		c.bus.On(input.PointerUpOutside, c.onUp),
		c.bus.On(input.Resize, c.onResize),
	}
	return c, nil
}

// Viewport returns the world rectangle currently on screen.
func (c *Controller) Viewport() gridmath.ViewportRect {
	return gridmath.ViewportFromOffset(c.offset, c.width, c.height)
}

// Offset returns the layer translation.
func (c *Controller) Offset() gridmath.WorldPoint { return c.offset }

// State returns the drag state.
func (c *Controller) State() State { return c.state }

// Mode returns the update mode.
func (c *Controller) Mode() Mode { return c.mode }

func (c *Controller) onDown(ev input.Event) {
	c.state = Dragging
	c.last = gridmath.Point(ev.X, ev.Y)
}

func (c *Controller) onMove(ev input.Event) {
	if c.state != Dragging {
		return
	}
	p := gridmath.Point(ev.X, ev.Y)
	delta := p.Sub(c.last)
	c.last = p
	if delta == (gridmath.WorldPoint{}) {
		return
	}
	if err := c.moveTo(c.offset.Add(delta)); err != nil {
		c.log.WithError(err).Warn("Failed to move layer")
		return
	}

	switch c.mode {
	case ModeSimple:
		c.update()
	default:
		if c.limiter.AllowN(c.clock.Now(), 1) {
			c.update()
		}
	}
}

func (c *Controller) onUp(input.Event) {
	if c.state != Dragging {
		return
	}
	c.state = Idle
	c.update()
}

func (c *Controller) onResize(ev input.Event) {
	if err := c.Resize(ev.Width, ev.Height); err != nil {
		c.log.WithError(err).Warn("Ignoring resize")
	}
}

// Resize records the new screen size and updates immediately, even mid-drag.
func (c *Controller) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", errInvalidSize, width, height)
	}
	c.width, c.height = float64(width), float64(height)
	return c.streamer.UpdateVisibleChunks(c.Viewport())
}

// GoTo recenters the view on cell and updates immediately.
func (c *Controller) GoTo(cell gridmath.CellCoord) error {
	center := gridmath.Point(c.width/2, c.height/2)
	if err := c.moveTo(center.Sub(cell.Center())); err != nil {
		return err
	}
	c.log.WithField("cell", cell.String()).Debug("Go to cell")
	return c.streamer.UpdateVisibleChunks(c.Viewport())
}

func (c *Controller) moveTo(offset gridmath.WorldPoint) error {
	if err := c.graph.SetPosition(c.layer, offset); err != nil {
		return err
	}
	c.offset = offset
	if c.highlight != nil {
		c.highlight.Refresh()
	}
	return nil
}

func (c *Controller) update() {
	if err := c.streamer.UpdateVisibleChunks(c.Viewport()); err != nil {
		c.log.WithError(err).Warn("Streaming update failed")
	}
}

// Cleanup unsubscribes from the bus. The controller ignores input afterwards.
func (c *Controller) Cleanup() {
	for _, id := range c.listeners {
		c.bus.Off(id)
	}
	c.listeners = nil
	c.state = Idle
}
