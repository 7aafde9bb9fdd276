package chunks

import (
	"errors"
	"testing"
	"time"

	"gridstream/internal/cells"
	"gridstream/internal/config"
	"gridstream/internal/eventloop"
	"gridstream/internal/gridmath"
	"gridstream/internal/logging"
	"gridstream/internal/scene"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
)

var startRect = gridmath.ViewportRect{Left: -100, Right: 900, Top: -100, Bottom: 900}

type fixture struct {
	tree   *scene.Tree
	layer  scene.NodeID
	labels *cells.LabelCache
	hl     *cells.Highlight
	clock  *clocktesting.FakeClock
	loop   *eventloop.Loop
	m      *Manager
}

func newFixture(t testing.TB, margin int, wrap func(*scene.Tree, scene.NodeID) scene.Graph, source func() gridmath.ViewportRect) *fixture {
	t.Helper()
	f := &fixture{tree: scene.NewTree()}
	var err error
	f.layer, err = f.tree.CreateNode(scene.Props{Kind: scene.KindContainer, Visible: true})
	require.NoError(t, err)
	require.NoError(t, f.tree.AttachChildren(f.tree.Root(), f.layer))

	var g scene.Graph = f.tree
	if wrap != nil {
		g = wrap(f.tree, f.layer)
	}

	f.labels, err = cells.NewLabelCache(cells.DefaultCapacity(1280, 800))
	require.NoError(t, err)
	f.hl, err = cells.NewHighlight(g, f.tree.Root())
	require.NoError(t, err)

	f.clock = clocktesting.NewFakeClock(time.Unix(0, 0))
	f.loop = eventloop.New(f.clock)
	f.m = NewManager(g, f.layer, f.labels, f.hl, f.loop, Options{
		Margin:         margin,
		DeferredDelay:  config.DeferredUpdateDelay,
		ViewportSource: source,
		Logger:         logging.Discard(),
	})
	return f
}

// settle completes the current frame and lets any deferred update run.
func (f *fixture) settle() {
	f.loop.RunFrame()
	f.clock.Step(config.DeferredUpdateDelay)
	f.loop.RunFrame()
}

func (f *fixture) cellNode(t *testing.T, cell gridmath.CellCoord) *scene.Node {
	t.Helper()
	c, ok := f.m.Chunk(cell.Chunk())
	require.True(t, ok, "chunk %s not materialized", cell.Chunk())
	id, ok := c.CellNode(cell)
	require.True(t, ok)
	n, ok := f.tree.Node(id)
	require.True(t, ok)
	return n
}

func TestInitialViewportWithoutMargin(t *testing.T) {
	f := newFixture(t, 0, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	assert.Equal(t, 9, f.m.Len())
	want := gridmath.ChunkRange{Min: gridmath.ChunkCoord{X: -1, Y: -1}, Max: gridmath.ChunkCoord{X: 1, Y: 1}}
	assert.Equal(t, want.Coords(), f.m.Coords())

	layer, _ := f.tree.Node(f.layer)
	assert.Len(t, layer.Children, 9)
	// root, layer, highlight, then a container plus 400 cells per chunk
	assert.Equal(t, 3+9*401, f.tree.Len())
}

func TestInitialViewportDefaultMargin(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	assert.Equal(t, 25, f.m.Len())
	stats := f.m.LastPass()
	assert.Equal(t, 25, stats.Added)
	assert.Equal(t, gridmath.ChunkCoord{X: -2, Y: -2}, stats.Range.Min)
	assert.Equal(t, gridmath.ChunkCoord{X: 2, Y: 2}, stats.Range.Max)
	assert.NoError(t, stats.Err)
}

func TestChunkLayout(t *testing.T) {
	f := newFixture(t, 0, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	c, ok := f.m.Chunk(gridmath.ChunkCoord{X: 1, Y: -1})
	require.True(t, ok)
	container, _ := f.tree.Node(c.Node)
	assert.Equal(t, gridmath.Point(1000, -1000), container.Position)
	require.Len(t, c.Cells, config.ChunkSize*config.ChunkSize)

	// row-major: index 21 is col 1 of row 1
	cell, _ := f.tree.Node(c.Cells[21])
	assert.Equal(t, gridmath.Point(50, 50), cell.Position)
	assert.Equal(t, f.labels.LabelFor(gridmath.CellCoord{X: 21, Y: -19}).Image, cell.Label)
	assert.NotNil(t, cell.Handler)
}

func TestZeroCellIsSpecial(t *testing.T) {
	f := newFixture(t, 0, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	zero := f.cellNode(t, gridmath.CellCoord{})
	assert.Equal(t, config.ZeroCellColor, zero.Fill)
	assert.Nil(t, zero.Handler)

	other := f.cellNode(t, gridmath.CellCoord{X: 1})
	assert.Equal(t, config.GridBackground, other.Fill)
	assert.NotNil(t, other.Handler)
}

func TestUpdateIsIdempotent(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	before := map[gridmath.ChunkCoord]scene.NodeID{}
	for _, coord := range f.m.Coords() {
		c, _ := f.m.Chunk(coord)
		before[coord] = c.Node
	}
	f.settle()

	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	stats := f.m.LastPass()
	assert.Equal(t, 0, stats.Added)
	assert.Equal(t, 0, stats.Removed)
	assert.Equal(t, 25, stats.Kept)
	for coord, node := range before {
		c, ok := f.m.Chunk(coord)
		require.True(t, ok)
		assert.Equal(t, node, c.Node, "chunk %s recreated", coord)
	}
	assert.False(t, f.m.Updating(), "nothing added, so the flag clears at once")
}

func TestPanShiftsRangeByOneChunk(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	f.settle()

	// dragging the pointer +1000 px moves the viewport -1000 in world space
	require.NoError(t, f.m.UpdateVisibleChunks(startRect.Translate(gridmath.Point(-1000, 0))))

	stats := f.m.LastPass()
	assert.Equal(t, 5, stats.Added)
	assert.Equal(t, 5, stats.Removed)
	assert.Equal(t, 20, stats.Kept)
	assert.Equal(t, -3, stats.Range.Min.X)
	assert.Equal(t, 1, stats.Range.Max.X)
	assert.False(t, f.m.Has(gridmath.ChunkCoord{X: 2, Y: 0}))
	assert.True(t, f.m.Has(gridmath.ChunkCoord{X: -3, Y: 2}))
}

func TestMaterializedSetMatchesRange(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	rects := []gridmath.ViewportRect{
		startRect,
		{Left: 2500, Right: 3780, Top: -4000, Bottom: -3200},
		{Left: -10, Right: 10, Top: -10, Bottom: 10},
		{Left: 999, Right: 1001, Top: 0, Bottom: 1},
	}
	for _, r := range rects {
		require.NoError(t, f.m.UpdateVisibleChunks(r))
		want := gridmath.VisibleChunkRange(r, config.ChunkMargin)
		assert.Equal(t, want.Coords(), f.m.Coords(), "rect %+v", r)
		f.settle()
	}
}

func TestInvalidViewportMutatesNothing(t *testing.T) {
	f := newFixture(t, 0, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	f.settle()
	nodes := f.tree.Len()

	err := f.m.UpdateVisibleChunks(gridmath.ViewportRect{Left: 10, Right: 0, Top: 0, Bottom: 10})
	assert.ErrorIs(t, err, gridmath.ErrInvalidViewport)
	assert.Equal(t, nodes, f.tree.Len())
	assert.Equal(t, uint64(1), f.m.LastPass().Seq)
}

func TestRequestsDuringUpdateAreCoalesced(t *testing.T) {
	metrics := NewMetrics(nil)
	f := newFixture(t, config.ChunkMargin, nil, nil)
	f.m.metrics = metrics

	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	require.True(t, f.m.Updating())

	b := startRect.Translate(gridmath.Point(-1000, 0))
	c := startRect.Translate(gridmath.Point(-3000, 0))
	require.NoError(t, f.m.UpdateVisibleChunks(b))
	require.NoError(t, f.m.UpdateVisibleChunks(c))

	assert.True(t, f.m.PendingUpdate())
	assert.Equal(t, 1, f.loop.PendingTimers(), "follow-ups replace each other")
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Deferred))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Coalesced))
	assert.Equal(t, uint64(1), f.m.LastPass().Seq)

	f.loop.RunFrame()
	assert.False(t, f.m.Updating())
	assert.True(t, f.m.PendingUpdate())

	f.clock.Step(config.DeferredUpdateDelay)
	f.loop.RunFrame()

	stats := f.m.LastPass()
	assert.Equal(t, uint64(2), stats.Seq, "one pass for both requests")
	assert.Equal(t, gridmath.VisibleChunkRange(c, config.ChunkMargin), stats.Range)
	assert.False(t, f.m.PendingUpdate())
}

func TestDeferredUpdateReadsFreshViewport(t *testing.T) {
	current := startRect
	f := newFixture(t, config.ChunkMargin, nil, func() gridmath.ViewportRect { return current })

	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	require.NoError(t, f.m.UpdateVisibleChunks(startRect.Translate(gridmath.Point(-1000, 0))))

	current = startRect.Translate(gridmath.Point(0, 5000))
	f.settle()

	assert.Equal(t, gridmath.VisibleChunkRange(current, config.ChunkMargin), f.m.LastPass().Range)
}

func TestDeferredUpdateWaitsForFrame(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	next := startRect.Translate(gridmath.Point(-1000, 0))
	require.NoError(t, f.m.UpdateVisibleChunks(next))

	// the timer is due before the frame that clears the flag completes
	f.clock.Step(config.DeferredUpdateDelay)
	f.loop.RunFrame()
	assert.Equal(t, uint64(1), f.m.LastPass().Seq)
	assert.True(t, f.m.PendingUpdate(), "rescheduled behind the running pass")

	f.clock.Step(config.DeferredUpdateDelay)
	f.loop.RunFrame()
	assert.Equal(t, uint64(2), f.m.LastPass().Seq)
	assert.Equal(t, gridmath.VisibleChunkRange(next, config.ChunkMargin), f.m.LastPass().Range)
}

func TestDirectUpdateCancelsPendingFollowUp(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	require.NoError(t, f.m.UpdateVisibleChunks(startRect.Translate(gridmath.Point(-1000, 0))))
	f.loop.RunFrame()

	final := startRect.Translate(gridmath.Point(1000, 0))
	require.NoError(t, f.m.UpdateVisibleChunks(final))
	assert.False(t, f.m.PendingUpdate())
	assert.Equal(t, 0, f.loop.PendingTimers())
	assert.Equal(t, gridmath.VisibleChunkRange(final, config.ChunkMargin), f.m.LastPass().Range)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	require.NoError(t, f.m.UpdateVisibleChunks(startRect.Translate(gridmath.Point(-1000, 0))))
	require.True(t, f.m.PendingUpdate())

	f.m.Cleanup()

	assert.Equal(t, 0, f.m.Len())
	assert.Equal(t, 0, f.labels.Len())
	assert.Equal(t, 0, f.loop.PendingTimers())
	assert.Equal(t, 3, f.tree.Len(), "only root, layer and highlight remain")
	assert.False(t, f.hl.Visible())

	f.m.Cleanup()
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	f.settle()
	assert.Equal(t, 0, f.m.Len())
	assert.True(t, f.m.Closed())
}

func TestHoverMovesHighlight(t *testing.T) {
	f := newFixture(t, 0, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	a, b := gridmath.CellCoord{X: 1}, gridmath.CellCoord{X: 2}

	f.tree.DispatchHover(gridmath.Point(75, 25))
	owner, ok := f.hl.Owner()
	require.True(t, ok)
	assert.Equal(t, a, owner)
	assert.False(t, f.cellNode(t, a).Visible)
	overlay, _ := f.tree.Node(f.hl.Node())
	assert.True(t, overlay.Visible)
	assert.Equal(t, gridmath.Point(50, 0), overlay.Position)

	// the hidden cell keeps receiving pointer events
	f.tree.DispatchHover(gridmath.Point(80, 30))
	owner, _ = f.hl.Owner()
	assert.Equal(t, a, owner)

	f.tree.DispatchHover(gridmath.Point(125, 25))
	owner, _ = f.hl.Owner()
	assert.Equal(t, b, owner)
	assert.True(t, f.cellNode(t, a).Visible)
	assert.False(t, f.cellNode(t, b).Visible)

	f.tree.ClearHover()
	_, ok = f.hl.Owner()
	assert.False(t, ok)
	assert.True(t, f.cellNode(t, b).Visible)
	assert.False(t, f.hl.Visible())
}

func TestHighlightTransferWithoutLeave(t *testing.T) {
	f := newFixture(t, 0, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	a, b := gridmath.CellCoord{X: 3, Y: 3}, gridmath.CellCoord{X: -4, Y: 7}
	f.cellNode(t, a).Handler.PointerEnter()
	f.cellNode(t, b).Handler.PointerEnter()

	assert.True(t, f.cellNode(t, a).Visible, "previous owner restored")
	assert.False(t, f.cellNode(t, b).Visible)

	// a late leave from a must not hide b's highlight
	f.cellNode(t, a).Handler.PointerLeave()
	owner, ok := f.hl.Owner()
	assert.True(t, ok)
	assert.Equal(t, b, owner)
	assert.True(t, f.hl.Visible())
}

func TestZeroCellIsNotHovered(t *testing.T) {
	f := newFixture(t, 0, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	f.tree.DispatchHover(gridmath.Point(25, 25))
	_, ok := f.hl.Owner()
	assert.False(t, ok)
	assert.Equal(t, scene.NoNode, f.tree.Hovered())
}

func TestEvictingHoveredChunkHidesHighlight(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	f.settle()

	f.tree.DispatchHover(gridmath.Point(2275, 25))
	owner, ok := f.hl.Owner()
	require.True(t, ok)
	require.Equal(t, gridmath.ChunkCoord{X: 2, Y: 0}, owner.Chunk())

	require.NoError(t, f.m.UpdateVisibleChunks(startRect.Translate(gridmath.Point(-1000, 0))))
	_, ok = f.hl.Owner()
	assert.False(t, ok)
	assert.False(t, f.hl.Visible())
	assert.Equal(t, scene.NoNode, f.tree.Hovered())
}

func TestLabelsSurviveChunkChurn(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	f.settle()

	cell := gridmath.CellCoord{X: 45, Y: 3}
	before := f.cellNode(t, cell)
	beforeID, beforeLabel := before.ID, before.Label

	require.NoError(t, f.m.UpdateVisibleChunks(startRect.Translate(gridmath.Point(-1000, 0))))
	f.settle()
	require.False(t, f.m.Has(cell.Chunk()))
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	after := f.cellNode(t, cell)
	assert.NotEqual(t, beforeID, after.ID, "chunk was rebuilt")
	assert.Same(t, beforeLabel, after.Label)
}

type flakyGraph struct {
	*scene.Tree
	layer       scene.NodeID
	createLimit int
	creates     int
	reject      map[gridmath.ChunkCoord]bool
}

var (
	errCreate   = errors.New("out of nodes")
	errRejected = errors.New("rejected")
)

func (g *flakyGraph) CreateNode(p scene.Props) (scene.NodeID, error) {
	g.creates++
	if g.createLimit > 0 && g.creates > g.createLimit {
		return scene.NoNode, errCreate
	}
	return g.Tree.CreateNode(p)
}

func (g *flakyGraph) AttachChildren(parent scene.NodeID, children ...scene.NodeID) error {
	if parent != g.layer || len(g.reject) == 0 {
		return g.Tree.AttachChildren(parent, children...)
	}
	var keep []scene.NodeID
	failed := map[scene.NodeID]error{}
	for _, id := range children {
		n, _ := g.Tree.Node(id)
		if g.reject[gridmath.ChunkCoordOf(n.Position.X(), n.Position.Y())] {
			failed[id] = errRejected
			continue
		}
		keep = append(keep, id)
	}
	if err := g.Tree.AttachChildren(parent, keep...); err != nil {
		return err
	}
	if len(failed) > 0 {
		return &scene.BatchError{Parent: parent, Failed: failed}
	}
	return nil
}

func TestRejectedAttachIsNotRegistered(t *testing.T) {
	var fg *flakyGraph
	f := newFixture(t, 0, func(tr *scene.Tree, layer scene.NodeID) scene.Graph {
		fg = &flakyGraph{Tree: tr, layer: layer, reject: map[gridmath.ChunkCoord]bool{{X: 0, Y: 0}: true}}
		return fg
	}, nil)

	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	stats := f.m.LastPass()
	assert.Equal(t, 8, stats.Added)
	assert.Equal(t, 1, stats.Failed)
	assert.ErrorIs(t, stats.Err, ErrSceneAttach)
	assert.ErrorIs(t, stats.Err, errRejected)
	assert.False(t, f.m.Has(gridmath.ChunkCoord{}))
	assert.Equal(t, 3+8*401, f.tree.Len(), "rejected chunk leaves no nodes")

	fg.reject = nil
	f.settle()
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	assert.True(t, f.m.Has(gridmath.ChunkCoord{}), "retried on the next pass")
	assert.Equal(t, 1, f.m.LastPass().Added)
}

func TestConstructionFailureLeavesChunkAbsent(t *testing.T) {
	var fg *flakyGraph
	f := newFixture(t, 0, func(tr *scene.Tree, layer scene.NodeID) scene.Graph {
		fg = &flakyGraph{Tree: tr, layer: layer}
		return fg
	}, nil)

	fg.creates = 0
	fg.createLimit = 401 + 10
	require.NoError(t, f.m.UpdateVisibleChunks(startRect))

	stats := f.m.LastPass()
	assert.Equal(t, 1, stats.Added)
	assert.Equal(t, 8, stats.Failed)
	assert.ErrorIs(t, stats.Err, errCreate)
	assert.Equal(t, []gridmath.ChunkCoord{{X: -1, Y: -1}}, f.m.Coords())
	assert.Equal(t, 3+401, f.tree.Len(), "partial chunks are torn down")
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, config.ChunkMargin, nil, nil)
	metrics := f.m.metrics

	require.NoError(t, f.m.UpdateVisibleChunks(startRect))
	f.settle()
	require.NoError(t, f.m.UpdateVisibleChunks(startRect.Translate(gridmath.Point(-1000, 0))))

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Passes))
	assert.Equal(t, float64(30), testutil.ToFloat64(metrics.ChunksCreated))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.ChunksDestroyed))
	assert.Equal(t, float64(25), testutil.ToFloat64(metrics.Materialized))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.PassDuration))
}

func BenchmarkPanPass(b *testing.B) {
	f := newFixture(b, config.ChunkMargin, nil, nil)
	require.NoError(b, f.m.UpdateVisibleChunks(startRect))
	f.settle()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dx := float64((i%2)*2-1) * 1000
		_ = f.m.UpdateVisibleChunks(startRect.Translate(gridmath.Point(dx, 0)))
		f.loop.RunFrame()
	}
}
