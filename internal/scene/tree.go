package scene

import (
	"fmt"
	"image"

	"gridstream/internal/gridmath"
)

// Node is one entry of a Tree. Renderers read it; only the Tree mutates it.
type Node struct {
	Props
	ID       NodeID
	Parent   NodeID
	Children []NodeID
}

// Tree is a single-threaded in-memory scene graph. It is the host used by the
// OpenGL renderer and by tests.
type Tree struct {
	nodes map[NodeID]*Node
	next  NodeID
	root  NodeID
	hover NodeID
}

var _ Graph = (*Tree)(nil)

// NewTree creates a tree holding only a visible root container.
func NewTree() *Tree {
	t := &Tree{nodes: make(map[NodeID]*Node)}
	t.root = t.add(Props{Kind: KindContainer, Visible: true})
	return t
}

func (t *Tree) add(p Props) NodeID {
	t.next++
	t.nodes[t.next] = &Node{Props: p, ID: t.next}
	return t.next
}

func (t *Tree) get(id NodeID) (*Node, error) {
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	return n, nil
}

func (t *Tree) Root() NodeID { return t.root }

func (t *Tree) CreateNode(p Props) (NodeID, error) {
	return t.add(p), nil
}

func (t *Tree) DestroyNode(id NodeID) error {
	if id == t.root {
		return ErrRootImmutable
	}
	n, err := t.get(id)
	if err != nil {
		return err
	}
	if n.Parent != NoNode {
		if p, ok := t.nodes[n.Parent]; ok {
			p.Children = removeID(p.Children, id)
		}
	}
	t.destroySubtree(n)
	return nil
}

func (t *Tree) destroySubtree(n *Node) {
	for _, c := range n.Children {
		if child, ok := t.nodes[c]; ok {
			t.destroySubtree(child)
		}
	}
	if t.hover == n.ID {
		t.hover = NoNode
	}
	delete(t.nodes, n.ID)
}

func (t *Tree) AttachChildren(parent NodeID, children ...NodeID) error {
	p, err := t.get(parent)
	if err != nil {
		return err
	}

	var failed map[NodeID]error
	reject := func(id NodeID, err error) {
		if failed == nil {
			failed = make(map[NodeID]error)
		}
		failed[id] = err
	}

	for _, id := range children {
		c, err := t.get(id)
		switch {
		case err != nil:
			reject(id, err)
		case id == t.root:
			reject(id, ErrRootImmutable)
		case c.Parent != NoNode:
			reject(id, fmt.Errorf("%w: %d under %d", ErrAlreadyAttached, id, c.Parent))
		case t.isAncestor(id, parent):
			reject(id, fmt.Errorf("attaching %d under %d would create a cycle", id, parent))
		default:
			c.Parent = parent
			p.Children = append(p.Children, id)
		}
	}

	if failed != nil {
		return &BatchError{Parent: parent, Failed: failed}
	}
	return nil
}

// isAncestor reports whether a is id or one of id's ancestors.
func (t *Tree) isAncestor(a, id NodeID) bool {
	for id != NoNode {
		if id == a {
			return true
		}
		n, ok := t.nodes[id]
		if !ok {
			return false
		}
		id = n.Parent
	}
	return false
}

func (t *Tree) DetachChild(parent, child NodeID) error {
	p, err := t.get(parent)
	if err != nil {
		return err
	}
	c, err := t.get(child)
	if err != nil {
		return err
	}
	if c.Parent != parent {
		return fmt.Errorf("%w: %d not under %d", ErrNotChild, child, parent)
	}
	p.Children = removeID(p.Children, child)
	c.Parent = NoNode
	return nil
}

func (t *Tree) SetPosition(id NodeID, pos gridmath.WorldPoint) error {
	n, err := t.get(id)
	if err != nil {
		return err
	}
	n.Position = pos
	return nil
}

func (t *Tree) SetVisible(id NodeID, visible bool) error {
	n, err := t.get(id)
	if err != nil {
		return err
	}
	n.Visible = visible
	return nil
}

// SetLabel replaces a node's label mask. Overlays whose text changes use it;
// it is not part of Graph because cells never relabel.
func (t *Tree) SetLabel(id NodeID, label *image.Alpha) error {
	n, err := t.get(id)
	if err != nil {
		return err
	}
	n.Label = label
	return nil
}

func (t *Tree) ScreenPositionOf(id NodeID) (gridmath.WorldPoint, error) {
	n, err := t.get(id)
	if err != nil {
		return gridmath.WorldPoint{}, err
	}
	pos := n.Position
	for n.Parent != NoNode {
		n = t.nodes[n.Parent]
		pos = pos.Add(n.Position)
	}
	return pos, nil
}

// Node returns the node for id. The returned value must not be modified.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of live nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) }

// Walk visits visible nodes depth-first in paint order with their screen
// position. Returning false from fn skips the node's children.
func (t *Tree) Walk(fn func(n *Node, screen gridmath.WorldPoint) bool) {
	t.walk(t.nodes[t.root], gridmath.WorldPoint{}, fn)
}

func (t *Tree) walk(n *Node, origin gridmath.WorldPoint, fn func(*Node, gridmath.WorldPoint) bool) {
	if !n.Visible {
		return
	}
	screen := origin.Add(n.Position)
	if !fn(n, screen) {
		return
	}
	for _, c := range n.Children {
		if child, ok := t.nodes[c]; ok {
			t.walk(child, screen, fn)
		}
	}
}

// HitTest returns the topmost interactive node under the screen point p.
// Interactive nodes are hit even while hidden, as long as their ancestors are
// visible, so a cell covered by an overlay keeps receiving pointer events.
func (t *Tree) HitTest(p gridmath.WorldPoint) NodeID {
	return t.hit(t.nodes[t.root], gridmath.WorldPoint{}, p)
}

func (t *Tree) hit(n *Node, origin, p gridmath.WorldPoint) NodeID {
	screen := origin.Add(n.Position)
	if n.Handler == nil && !n.Visible {
		return NoNode
	}
	if n.Size != (gridmath.WorldPoint{}) && !contains(screen, n.Size, p) {
		return NoNode
	}
	for i := len(n.Children) - 1; i >= 0; i-- {
		if child, ok := t.nodes[n.Children[i]]; ok {
			if id := t.hit(child, screen, p); id != NoNode {
				return id
			}
		}
	}
	if n.Handler != nil && contains(screen, n.Size, p) {
		return n.ID
	}
	return NoNode
}

// DispatchHover moves the hover target to whatever is under p, firing leave on
// the old target before enter on the new one.
func (t *Tree) DispatchHover(p gridmath.WorldPoint) {
	t.setHover(t.HitTest(p))
}

// ClearHover fires leave on the current hover target, if any.
func (t *Tree) ClearHover() {
	t.setHover(NoNode)
}

// Hovered returns the current hover target.
func (t *Tree) Hovered() NodeID { return t.hover }

func (t *Tree) setHover(id NodeID) {
	if id == t.hover {
		return
	}
	old := t.hover
	t.hover = id
	if n, ok := t.nodes[old]; ok && n.Handler != nil {
		n.Handler.PointerLeave()
	}
	if n, ok := t.nodes[id]; ok && n.Handler != nil {
		n.Handler.PointerEnter()
	}
}

func contains(origin, size, p gridmath.WorldPoint) bool {
	return p.X() >= origin.X() && p.X() < origin.X()+size.X() &&
		p.Y() >= origin.Y() && p.Y() < origin.Y()+size.Y()
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
