package cells

import (
	"fmt"

	"gridstream/internal/config"
	"gridstream/internal/gridmath"
	"gridstream/internal/scene"
)

// Highlight is the single hover overlay shared by every cell. At most one cell
// owns it at a time; handing it to another cell first releases the previous
// owner so that cell can restore its own appearance.
type Highlight struct {
	graph     scene.Graph
	node      scene.NodeID
	owner     gridmath.CellCoord
	ownerNode scene.NodeID
	owned     bool
	shown     bool
	onRelease func(gridmath.CellCoord)
}

// NewHighlight creates the hidden overlay node and attaches it under parent.
func NewHighlight(g scene.Graph, parent scene.NodeID) (*Highlight, error) {
	node, err := g.CreateNode(scene.Props{
		Kind: scene.KindOverlay,
		Size: gridmath.Point(config.CellPixelSize, config.CellPixelSize),
		Fill: config.HoverColor,
	})
	if err != nil {
		return nil, fmt.Errorf("create highlight: %w", err)
	}
	if err := g.AttachChildren(parent, node); err != nil {
		_ = g.DestroyNode(node)
		return nil, fmt.Errorf("attach highlight: %w", err)
	}
	return &Highlight{graph: g, node: node}, nil
}

// Node returns the overlay's scene node.
func (h *Highlight) Node() scene.NodeID { return h.node }

// OnRelease registers fn to run whenever an owner loses the highlight.
func (h *Highlight) OnRelease(fn func(gridmath.CellCoord)) { h.onRelease = fn }

// Owner returns the current owner, if any.
func (h *Highlight) Owner() (gridmath.CellCoord, bool) { return h.owner, h.owned }

// Visible reports whether the overlay is shown.
func (h *Highlight) Visible() bool { return h.shown }

// CheckOut hands the highlight to owner and shows it over cellNode. A different
// previous owner is released first.
func (h *Highlight) CheckOut(owner gridmath.CellCoord, cellNode scene.NodeID) error {
	if h.owned && h.owner != owner {
		h.Release(h.owner)
	}
	pos, err := h.graph.ScreenPositionOf(cellNode)
	if err != nil {
		return fmt.Errorf("highlight %s: %w", owner, err)
	}
	h.owner, h.ownerNode, h.owned = owner, cellNode, true
	return h.show(pos)
}

// Release hides the highlight if owner holds it. It reports whether anything
// was released.
func (h *Highlight) Release(owner gridmath.CellCoord) bool {
	if !h.owned || h.owner != owner {
		return false
	}
	h.owned = false
	h.ownerNode = scene.NoNode
	h.hide()
	if h.onRelease != nil {
		h.onRelease(owner)
	}
	return true
}

// Refresh re-places the overlay over its owner after the layer moved. An owner
// whose node is gone loses the highlight.
func (h *Highlight) Refresh() {
	if !h.owned {
		return
	}
	pos, err := h.graph.ScreenPositionOf(h.ownerNode)
	if err != nil {
		h.Reset()
		return
	}
	_ = h.show(pos)
}

// Reset releases the current owner, if any, and hides the overlay.
func (h *Highlight) Reset() {
	if h.owned {
		h.Release(h.owner)
		return
	}
	h.hide()
}

// Destroy resets the highlight and removes its node.
func (h *Highlight) Destroy() error {
	h.Reset()
	if h.node == scene.NoNode {
		return nil
	}
	err := h.graph.DestroyNode(h.node)
	h.node = scene.NoNode
	return err
}

func (h *Highlight) show(pos gridmath.WorldPoint) error {
	if err := h.graph.SetPosition(h.node, pos); err != nil {
		return err
	}
	if err := h.graph.SetVisible(h.node, true); err != nil {
		return err
	}
	h.shown = true
	return nil
}

func (h *Highlight) hide() {
	if h.shown && h.node != scene.NoNode {
		_ = h.graph.SetVisible(h.node, false)
	}
	h.shown = false
}
