package chunks

import (
	"errors"
	"fmt"

	"gridstream/internal/cells"
	"gridstream/internal/config"
	"gridstream/internal/gridmath"
	"gridstream/internal/profiling"
	"gridstream/internal/scene"
)

// Chunk is one materialized square of ChunkSize x ChunkSize cells. It owns its
// container and cell nodes; labels are borrowed from the LabelCache.
type Chunk struct {
	Coord gridmath.ChunkCoord
	Node  scene.NodeID
	// Cells holds the cell nodes in row-major order.
	Cells []scene.NodeID
}

// CellNode returns the node for an absolute cell inside this chunk.
func (c *Chunk) CellNode(cell gridmath.CellCoord) (scene.NodeID, bool) {
	if cell.Chunk() != c.Coord {
		return scene.NoNode, false
	}
	col, row := cell.Local()
	return c.Cells[row*config.ChunkSize+col], true
}

// cellHandler wires a cell's hover transitions to the shared highlight.
type cellHandler struct {
	coord     gridmath.CellCoord
	node      scene.NodeID
	graph     scene.Graph
	highlight *cells.Highlight
}

func (h *cellHandler) PointerEnter() {
	if err := h.highlight.CheckOut(h.coord, h.node); err != nil {
		return
	}
	_ = h.graph.SetVisible(h.node, false)
}

func (h *cellHandler) PointerLeave() {
	h.highlight.Release(h.coord)
}

// buildChunk creates the container and every cell node for coord. The chunk is
// not attached anywhere yet. On error nothing it created is left behind.
func buildChunk(g scene.Graph, labels *cells.LabelCache, hl *cells.Highlight, coord gridmath.ChunkCoord) (_ *Chunk, err error) {
	defer profiling.Track("chunks.buildChunk")()

	node, err := g.CreateNode(scene.Props{
		Kind:     scene.KindContainer,
		Position: coord.Origin(),
		Size:     gridmath.Point(config.ChunkPixelSize, config.ChunkPixelSize),
		Visible:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", coord, err)
	}
	c := &Chunk{Coord: coord, Node: node, Cells: make([]scene.NodeID, 0, config.ChunkSize*config.ChunkSize)}
	defer func() {
		if err != nil {
			_ = c.discard(g)
		}
	}()

	size := gridmath.Point(config.CellPixelSize, config.CellPixelSize)
	for row := 0; row < config.ChunkSize; row++ {
		for col := 0; col < config.ChunkSize; col++ {
			cell := coord.Cell(col, row)
			props := scene.Props{
				Kind:        scene.KindCell,
				Position:    gridmath.Point(float64(col*config.CellPixelSize), float64(row*config.CellPixelSize)),
				Size:        size,
				Fill:        config.GridBackground,
				Stroke:      config.StrokeColor,
				StrokeWidth: 1,
				Label:       labels.LabelFor(cell).Image,
				Visible:     true,
			}
			var h *cellHandler
			if cell.IsZero() {
				props.Fill = config.ZeroCellColor
			} else {
				h = &cellHandler{coord: cell, graph: g, highlight: hl}
				props.Handler = h
			}

			id, err := g.CreateNode(props)
			if err != nil {
				return nil, fmt.Errorf("chunk %s cell %s: %w", coord, cell, err)
			}
			if h != nil {
				h.node = id
			}
			c.Cells = append(c.Cells, id)
		}
	}

	if err := g.AttachChildren(node, c.Cells...); err != nil {
		return nil, fmt.Errorf("chunk %s cells: %w", coord, err)
	}
	return c, nil
}

// destroy removes the container and, with it, every attached cell.
func (c *Chunk) destroy(g scene.Graph) error {
	c.Cells = nil
	return g.DestroyNode(c.Node)
}

// discard is destroy for a chunk whose build failed part way: cells that never
// joined the container are destroyed one by one.
func (c *Chunk) discard(g scene.Graph) error {
	err := g.DestroyNode(c.Node)
	for _, id := range c.Cells {
		if derr := g.DestroyNode(id); derr != nil && !errors.Is(derr, scene.ErrNodeNotFound) {
			err = errors.Join(err, derr)
		}
	}
	c.Cells = nil
	return err
}
