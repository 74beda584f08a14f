package world

// stitchEdge describes how one horizontal neighbor shares a border with a
// chunk, in padded indices along the border's axis.
type stitchEdge struct {
	delta        ChunkCoord
	alongX       bool
	ownPadding   int
	ownEdge      int
	theirEdge    int
	theirPadding int
}

var stitchEdges = [...]stitchEdge{
	{delta: ChunkCoord{X: -1}, alongX: true, ownPadding: 0, ownEdge: 1, theirEdge: ChunkArea, theirPadding: ChunkArea + 1},
	{delta: ChunkCoord{X: 1}, alongX: true, ownPadding: ChunkArea + 1, ownEdge: ChunkArea, theirEdge: 1, theirPadding: 0},
	{delta: ChunkCoord{Z: -1}, ownPadding: 0, ownEdge: 1, theirEdge: ChunkArea, theirPadding: ChunkArea + 1},
	{delta: ChunkCoord{Z: 1}, ownPadding: ChunkArea + 1, ownEdge: ChunkArea, theirEdge: 1, theirPadding: 0},
}

// readPlane copies the border plane at padded index idx, interior cells only.
func (c *Chunk) readPlane(alongX bool, idx int) []Material {
	plane := make([]Material, 0, ChunkHeight*ChunkArea)
	for y := 0; y < ChunkHeight; y++ {
		for t := 1; t <= ChunkArea; t++ {
			if alongX {
				plane = append(plane, c.blocks[blockIndex(y, idx, t)].Material)
			} else {
				plane = append(plane, c.blocks[blockIndex(y, t, idx)].Material)
			}
		}
	}
	return plane
}

// writePlane stores plane at padded index idx and marks every layer whose
// content changed. It reports whether anything changed.
func (c *Chunk) writePlane(alongX bool, idx int, plane []Material) bool {
	changed := false
	for y := 0; y < ChunkHeight; y++ {
		layerChanged := false
		for t := 1; t <= ChunkArea; t++ {
			i := blockIndex(y, t, idx)
			if alongX {
				i = blockIndex(y, idx, t)
			}
			m := plane[y*ChunkArea+t-1]
			if c.blocks[i].Material != m {
				c.blocks[i].Material = m
				layerChanged = true
			}
		}
		if layerChanged {
			c.MarkLayersDirty(LayerRange{Min: y, Max: y})
			changed = true
		}
	}
	if changed {
		c.MarkDirty()
	}
	return changed
}

// StitchPadding reconciles the padding of slot with its resident horizontal
// neighbors in both directions: the slot's padding takes the neighbors'
// edges and each neighbor's padding takes the slot's edge. It returns the
// slots whose padding changed, which need a remesh. At most one chunk lock is
// held at a time.
func (m *Manager) StitchPadding(slot int) []int {
	offset := m.OffsetOf(slot)
	if offset == UnmappedCoord {
		return nil
	}
	h, ok := m.Handle(slot)
	if !ok {
		return nil
	}

	var touched []int
	selfChanged := false
	for _, edge := range stitchEdges {
		neighbor, ok := m.Slot(offset.Add(edge.delta))
		if !ok || neighbor == slot {
			continue
		}
		nh, _ := m.Handle(neighbor)

		var theirs, ours []Material
		nh.Read(func(c *Chunk) { theirs = c.readPlane(edge.alongX, edge.theirEdge) })
		h.Write(func(c *Chunk) {
			if c.writePlane(edge.alongX, edge.ownPadding, theirs) {
				selfChanged = true
			}
			ours = c.readPlane(edge.alongX, edge.ownEdge)
		})

		neighborChanged := false
		nh.Write(func(c *Chunk) { neighborChanged = c.writePlane(edge.alongX, edge.theirPadding, ours) })
		if neighborChanged {
			touched = append(touched, neighbor)
		}
	}
	if selfChanged {
		touched = append([]int{slot}, touched...)
	}
	return touched
}
