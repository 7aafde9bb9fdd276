// Package chunks streams grid chunks in and out of the scene as the viewport
// moves.
package chunks

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gridstream/internal/cells"
	"gridstream/internal/config"
	"gridstream/internal/eventloop"
	"gridstream/internal/gridmath"
	"gridstream/internal/logging"
	"gridstream/internal/profiling"
	"gridstream/internal/scene"

	"github.com/sirupsen/logrus"
)

// ErrSceneAttach marks a chunk the host scene refused to attach.
var ErrSceneAttach = errors.New("scene rejected chunk attach")

// Options tune a Manager.
type Options struct {
	// Margin is the number of chunks kept past each viewport edge.
	Margin int
	// DeferredDelay is how long a coalesced request waits before it runs.
	DeferredDelay time.Duration
	// ViewportSource, when set, is read by deferred updates so they act on the
	// viewport at run time rather than the one that scheduled them.
	ViewportSource func() gridmath.ViewportRect
	Logger         logrus.FieldLogger
	Metrics        *Metrics
}

// DefaultOptions returns the configured margin and deferred delay.
func DefaultOptions() Options {
	return Options{
		Margin:        config.ChunkMargin,
		DeferredDelay: config.DeferredUpdateDelay,
	}
}

// PassStats describes one completed update pass.
type PassStats struct {
	Seq      uint64
	Range    gridmath.ChunkRange
	Added    int
	Removed  int
	Kept     int
	Failed   int
	Duration time.Duration
	// Err joins the per-chunk failures the pass recovered from.
	Err error
}

// Manager keeps the set of materialized chunks equal to the range around the
// latest viewport. It must be used from the loop's goroutine only.
type Manager struct {
	graph     scene.Graph
	layer     scene.NodeID
	labels    *cells.LabelCache
	highlight *cells.Highlight
	sched     eventloop.Scheduler
	opts      Options
	log       logrus.FieldLogger
	metrics   *Metrics

	chunks   map[gridmath.ChunkCoord]*Chunk
	updating bool
	pending  *eventloop.Timer
	latest   gridmath.ViewportRect
	seq      uint64
	last     PassStats
	closed   bool
}

// NewManager creates a manager that attaches chunks under layer.
func NewManager(g scene.Graph, layer scene.NodeID, labels *cells.LabelCache, hl *cells.Highlight, sched eventloop.Scheduler, opts Options) *Manager {
	if opts.DeferredDelay <= 0 {
		opts.DeferredDelay = config.DeferredUpdateDelay
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	m := &Manager{
		graph:     g,
		layer:     layer,
		labels:    labels,
		highlight: hl,
		sched:     sched,
		opts:      opts,
		log:       logging.Component(opts.Logger, "chunks"),
		metrics:   opts.Metrics,
		chunks:    make(map[gridmath.ChunkCoord]*Chunk),
	}
	hl.OnRelease(m.restoreCell)
	return m
}

// UpdateVisibleChunks brings the materialized set in line with rect. While a
// pass is still settling the request is folded into a single deferred update.
func (m *Manager) UpdateVisibleChunks(rect gridmath.ViewportRect) error {
	if m.closed {
		return nil
	}
	if err := rect.Validate(); err != nil {
		return err
	}
	m.latest = rect
	if m.updating {
		m.scheduleDeferred()
		return nil
	}
	m.pending.Stop()
	m.pending = nil
	m.run(rect)
	return nil
}

func (m *Manager) scheduleDeferred() {
	if m.pending.Stop() {
		m.metrics.Coalesced.Inc()
	}
	m.metrics.Deferred.Inc()
	m.pending = m.sched.AfterFunc(m.opts.DeferredDelay, m.runDeferred)
}

func (m *Manager) runDeferred() {
	m.pending = nil
	if m.closed {
		return
	}
	if m.updating {
		m.scheduleDeferred()
		return
	}
	m.run(m.currentViewport())
}

func (m *Manager) currentViewport() gridmath.ViewportRect {
	if m.opts.ViewportSource != nil {
		if r := m.opts.ViewportSource(); r.Validate() == nil {
			return r
		}
	}
	return m.latest
}

func (m *Manager) run(rect gridmath.ViewportRect) {
	defer profiling.Track("chunks.UpdateVisibleChunks")()
	start := time.Now()
	m.updating = true
	m.seq++

	want := gridmath.VisibleChunkRange(rect, m.opts.Margin)
	stats := PassStats{Seq: m.seq, Range: want}
	var errs []error

	for coord, c := range m.chunks {
		if want.Contains(coord) {
			continue
		}
		if err := m.evict(c); err != nil {
			m.log.WithError(err).WithField("chunk", coord.String()).Warn("Failed to destroy chunk")
		}
		stats.Removed++
	}

	var fresh []*Chunk
	want.Each(func(coord gridmath.ChunkCoord) {
		if _, ok := m.chunks[coord]; ok {
			stats.Kept++
			return
		}
		c, err := buildChunk(m.graph, m.labels, m.highlight, coord)
		if err != nil {
			m.log.WithError(err).WithField("chunk", coord.String()).Warn("Failed to build chunk")
			errs = append(errs, err)
			stats.Failed++
			return
		}
		fresh = append(fresh, c)
	})

	if len(fresh) > 0 {
		added, err := m.attach(fresh)
		stats.Added = added
		stats.Failed += len(fresh) - added
		if err != nil {
			errs = append(errs, err)
		}
	}

	stats.Duration = time.Since(start)
	stats.Err = errors.Join(errs...)
	m.last = stats

	m.metrics.Passes.Inc()
	m.metrics.ChunksCreated.Add(float64(stats.Added))
	m.metrics.ChunksDestroyed.Add(float64(stats.Removed))
	m.metrics.ChunkFailures.Add(float64(stats.Failed))
	m.metrics.Materialized.Set(float64(len(m.chunks)))
	m.metrics.PassDuration.Observe(stats.Duration.Seconds())

	m.log.WithFields(logrus.Fields{
		"update":   stats.Seq,
		"added":    stats.Added,
		"removed":  stats.Removed,
		"kept":     stats.Kept,
		"failed":   stats.Failed,
		"duration": stats.Duration,
	}).Debug("Updated visible chunks")

	// New nodes are only laid out once the host has drawn them, so the next
	// pass waits for the frame to finish.
	if stats.Added > 0 {
		m.sched.OnNextFrame(func() { m.updating = false })
	} else {
		m.updating = false
	}
}

// attach adds fresh chunks to the layer in one batch and registers the ones the
// scene accepted.
func (m *Manager) attach(fresh []*Chunk) (int, error) {
	nodes := make([]scene.NodeID, len(fresh))
	for i, c := range fresh {
		nodes[i] = c.Node
	}
	err := m.graph.AttachChildren(m.layer, nodes...)

	var batch *scene.BatchError
	partial := errors.As(err, &batch)

	var errs []error
	added := 0
	for _, c := range fresh {
		var cause error
		switch {
		case err == nil:
		case partial:
			cause = batch.Failed[c.Node]
		default:
			cause = err
		}
		if cause == nil {
			m.chunks[c.Coord] = c
			added++
			continue
		}
		aerr := fmt.Errorf("chunk %s: %w: %w", c.Coord, ErrSceneAttach, cause)
		m.log.WithError(aerr).Warn("Dropping chunk")
		errs = append(errs, aerr)
		_ = c.discard(m.graph)
	}
	return added, errors.Join(errs...)
}

func (m *Manager) evict(c *Chunk) error {
	if owner, ok := m.highlight.Owner(); ok && owner.Chunk() == c.Coord {
		m.highlight.Reset()
	}
	delete(m.chunks, c.Coord)
	if err := m.graph.DetachChild(m.layer, c.Node); err != nil && !errors.Is(err, scene.ErrNotChild) {
		return err
	}
	return c.destroy(m.graph)
}

// restoreCell shows a cell again once it loses the highlight.
func (m *Manager) restoreCell(cell gridmath.CellCoord) {
	c, ok := m.chunks[cell.Chunk()]
	if !ok {
		return
	}
	if node, ok := c.CellNode(cell); ok {
		_ = m.graph.SetVisible(node, true)
	}
}

// Cleanup destroys every chunk, empties the label cache, hides the highlight
// and cancels any deferred update. Further updates are ignored.
func (m *Manager) Cleanup() {
	if m.closed {
		return
	}
	m.closed = true
	m.pending.Stop()
	m.pending = nil
	m.highlight.Reset()
	for _, c := range m.chunks {
		if err := m.evict(c); err != nil {
			m.log.WithError(err).WithField("chunk", c.Coord.String()).Warn("Failed to destroy chunk")
		}
	}
	m.labels.Purge()
	m.metrics.Materialized.Set(0)
	m.log.Debug("Chunk manager cleaned up")
}

// Len returns the number of materialized chunks.
func (m *Manager) Len() int { return len(m.chunks) }

// Has reports whether coord is materialized.
func (m *Manager) Has(coord gridmath.ChunkCoord) bool {
	_, ok := m.chunks[coord]
	return ok
}

// Chunk returns the materialized chunk at coord.
func (m *Manager) Chunk(coord gridmath.ChunkCoord) (*Chunk, bool) {
	c, ok := m.chunks[coord]
	return c, ok
}

// Coords returns the materialized chunk coordinates sorted row-major.
func (m *Manager) Coords() []gridmath.ChunkCoord {
	out := make([]gridmath.ChunkCoord, 0, len(m.chunks))
	for coord := range m.chunks {
		out = append(out, coord)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// LastPass returns statistics for the most recent pass.
func (m *Manager) LastPass() PassStats { return m.last }

// Updating reports whether a pass is still settling.
func (m *Manager) Updating() bool { return m.updating }

// PendingUpdate reports whether a deferred update is scheduled.
func (m *Manager) PendingUpdate() bool { return m.pending != nil }

// Closed reports whether Cleanup ran.
func (m *Manager) Closed() bool { return m.closed }
