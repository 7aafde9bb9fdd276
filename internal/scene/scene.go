// Package scene defines the scene-graph contract the grid needs from its host
// renderer, and an in-memory Tree that implements it.
package scene

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"gridstream/internal/gridmath"
)

var (
	ErrNodeNotFound    = errors.New("scene node not found")
	ErrAlreadyAttached = errors.New("scene node already has a parent")
	ErrNotChild        = errors.New("scene node is not a child of parent")
	ErrRootImmutable   = errors.New("scene root cannot be modified")
)

// NodeID is a handle to a host scene node. The zero value is never issued.
type NodeID uint64

// NoNode is the invalid node handle.
const NoNode NodeID = 0

// Kind is a hint for renderers
type Kind int

const (
	KindContainer Kind = iota
	KindCell
	KindOverlay
)

// PointerHandler receives hover transitions for interactive nodes.
type PointerHandler interface {
	PointerEnter()
	PointerLeave()
}

// Props describe a node at creation time.
type Props struct {
	Kind        Kind
	Position    gridmath.WorldPoint // relative to the parent
	Size        gridmath.WorldPoint
	Fill        color.RGBA
	Stroke      color.RGBA
	StrokeWidth float64
	Label       *image.Alpha
	Visible     bool
	// Handler makes the node interactive; nil nodes are never hit.
	Handler PointerHandler
}

// Graph is the host scene graph the streaming code mutates.
type Graph interface {
	Root() NodeID
	CreateNode(p Props) (NodeID, error)
	// DestroyNode destroys id and its whole subtree, detaching it from its parent.
	DestroyNode(id NodeID) error
	// AttachChildren appends children to parent in one batch. Rejected children
	// are reported through a *BatchError; the rest are attached.
	AttachChildren(parent NodeID, children ...NodeID) error
	DetachChild(parent, child NodeID) error
	SetPosition(id NodeID, p gridmath.WorldPoint) error
	SetVisible(id NodeID, visible bool) error
	ScreenPositionOf(id NodeID) (gridmath.WorldPoint, error)
}

// BatchError lists the children a batch attach rejected.
type BatchError struct {
	Parent NodeID
	Failed map[NodeID]error
}

func (e *BatchError) Error() string {
	ids := make([]NodeID, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d: %v", id, e.Failed[id]))
	}
	return fmt.Sprintf("attach to %d rejected %d node(s): %s", e.Parent, len(ids), strings.Join(parts, "; "))
}

// Unwrap exposes the individual failures to errors.Is.
func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		out = append(out, err)
	}
	return out
}
