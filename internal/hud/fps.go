// Package hud holds screen-space overlays drawn above the grid.
package hud

import (
	"fmt"
	"strings"
	"time"

	"gridstream/internal/cells"
	"gridstream/internal/config"
	"gridstream/internal/eventloop"
	"gridstream/internal/gridmath"
	"gridstream/internal/scene"
)

// FPSOverlay shows the measured frame rate in the top-left corner, refreshed
// every FPSOverlayInterval. Extra lines, such as streaming stats, follow it.
type FPSOverlay struct {
	tree  *scene.Tree
	node  scene.NodeID
	extra func() []string

	frames  int
	elapsed time.Duration
	fps     float64
	text    string
	shown   bool
	cancel  func()
}

// NewFPSOverlay attaches the overlay to the root of tr and hooks it into the
// loop's per-frame callbacks.
func NewFPSOverlay(tr *scene.Tree, loop *eventloop.Loop, extra func() []string) (*FPSOverlay, error) {
	shown := config.GetShowFPS()
	node, err := tr.CreateNode(scene.Props{
		Kind:     scene.KindOverlay,
		Position: gridmath.Point(10, 10),
		Visible:  shown,
	})
	if err != nil {
		return nil, err
	}
	if err := tr.AttachChildren(tr.Root(), node); err != nil {
		_ = tr.DestroyNode(node)
		return nil, fmt.Errorf("attach fps overlay: %w", err)
	}

	o := &FPSOverlay{tree: tr, node: node, extra: extra, shown: shown}
	o.refresh()
	o.cancel = loop.OnFrame(o.tick)
	return o, nil
}

func (o *FPSOverlay) tick(dt time.Duration) {
	if show := config.GetShowFPS(); show != o.shown {
		o.shown = show
		_ = o.tree.SetVisible(o.node, show)
	}

	o.frames++
	o.elapsed += dt
	if o.elapsed < config.FPSOverlayInterval {
		return
	}
	o.fps = float64(o.frames) / o.elapsed.Seconds()
	o.frames, o.elapsed = 0, 0
	o.refresh()
}

func (o *FPSOverlay) refresh() {
	lines := []string{fmt.Sprintf("FPS: %.0f", o.fps)}
	if o.extra != nil {
		lines = append(lines, o.extra()...)
	}
	text := strings.Join(lines, "\n")
	if text == o.text {
		return
	}
	o.text = text
	_ = o.tree.SetLabel(o.node, cells.RasterizeText(text))
}

// FPS returns the rate measured over the last interval.
func (o *FPSOverlay) FPS() float64 { return o.fps }

// Text returns the text currently shown.
func (o *FPSOverlay) Text() string { return o.text }

// Node returns the overlay node.
func (o *FPSOverlay) Node() scene.NodeID { return o.node }

// Close stops updates and removes the node.
func (o *FPSOverlay) Close() error {
	if o.cancel == nil {
		return nil
	}
	o.cancel()
	o.cancel = nil
	return o.tree.DestroyNode(o.node)
}
