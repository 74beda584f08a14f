package world

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
)

// VertexSize is the encoded size of one Vertex: position xyz and uv, all
// little-endian float32.
const VertexSize = 5 * 4

// IndexSize is the encoded size of one index.
const IndexSize = 4

// Vertex is one corner of a block face in world space.
type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
}

// Mesh holds triangle geometry as indexed vertices.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Empty reports whether the mesh has nothing to draw.
func (m *Mesh) Empty() bool {
	return len(m.Indices) == 0
}

// Clone returns a deep copy.
func (m *Mesh) Clone() Mesh {
	return Mesh{
		Vertices: append([]Vertex(nil), m.Vertices...),
		Indices:  append([]uint32(nil), m.Indices...),
	}
}

// AppendVertexBytes appends the encoded vertex stream to dst.
func (m *Mesh) AppendVertexBytes(dst []byte) []byte {
	return appendVertexBytes(dst, m.Vertices)
}

// AppendIndexBytes appends the encoded index stream to dst.
func (m *Mesh) AppendIndexBytes(dst []byte) []byte {
	return appendIndexBytes(dst, m.Indices)
}

func appendVertexBytes(dst []byte, vertices []Vertex) []byte {
	for _, v := range vertices {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Position[0]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Position[1]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.Position[2]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.UV[0]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v.UV[1]))
	}
	return dst
}

func appendIndexBytes(dst []byte, indices []uint32) []byte {
	for _, i := range indices {
		dst = binary.LittleEndian.AppendUint32(dst, i)
	}
	return dst
}

// LayerSpan locates one layer's geometry inside the concatenated chunk mesh.
type LayerSpan struct {
	VStart uint32
	VLen   uint32
	IStart uint32
	ILen   uint32
}

// layerSet is a bit vector with one bit per layer.
type layerSet [ChunkHeight / 64]uint64

func (s *layerSet) has(y int) bool {
	return s[y>>6]&(1<<(uint(y)&63)) != 0
}

func (s *layerSet) clear(y int) {
	s[y>>6] &^= 1 << (uint(y) & 63)
}

func (s *layerSet) setRange(lo, hi int) {
	for y := lo; y <= hi; y++ {
		s[y>>6] |= 1 << (uint(y) & 63)
	}
}

func (s *layerSet) count() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// UpdateMesh rebuilds the dirty layers inside yRange, or every layer when
// yRange is nil, then concatenates all cached layers in Y order. Layers
// outside the range keep their cached geometry even if dirty.
func (c *Chunk) UpdateMesh(atlas Atlas, yRange *LayerRange) {
	r := FullRange
	if yRange == nil {
		c.layerDirty.setRange(0, ChunkHeight-1)
	} else {
		r = *yRange
	}

	rebuilt := make([]int, 0, 8)
	if r, ok := r.clamp(); ok {
		for y := r.Min; y <= r.Max; y++ {
			if !c.layerDirty.has(y) {
				continue
			}
			c.layerDirty.clear(y)
			c.layers[y] = c.buildLayer(atlas, y, c.layers[y])
			rebuilt = append(rebuilt, y)
		}
	}

	var totalV, totalI int
	for i := range c.layers {
		totalV += len(c.layers[i].Vertices)
		totalI += len(c.layers[i].Indices)
	}
	verts := make([]Vertex, 0, totalV)
	indices := make([]uint32, 0, totalI)

	changed := false
	for y := range c.layers {
		layer := &c.layers[y]
		span := LayerSpan{
			VStart: uint32(len(verts)),
			VLen:   uint32(len(layer.Vertices)),
			IStart: uint32(len(indices)),
			ILen:   uint32(len(layer.Indices)),
		}
		if c.spans[y] != span {
			changed = true
			c.spans[y] = span
		}
		for _, i := range layer.Indices {
			indices = append(indices, i+span.VStart)
		}
		verts = append(verts, layer.Vertices...)
	}

	c.mesh = Mesh{Vertices: verts, Indices: indices}
	c.layoutChanged = changed
	c.rebuilt = rebuilt
	c.dirtyRange = LayerRange{}
	c.hasDirtyRange = false
}

// buildLayer meshes the interior voxels of layer y into dst, reusing its
// storage.
func (c *Chunk) buildLayer(atlas Atlas, y int, dst Mesh) Mesh {
	dst.Vertices = dst.Vertices[:0]
	dst.Indices = dst.Indices[:0]
	origin := c.offset.Origin()

	for x := 1; x <= ChunkArea; x++ {
		for z := 1; z <= ChunkArea; z++ {
			m := c.blocks[blockIndex(y, x, z)].Material
			if m == MaterialAir {
				continue
			}
			local := BlockCoord{X: x - 1, Y: y, Z: z - 1}
			pos := mgl32.Vec3{
				float32(origin.X + local.X),
				float32(origin.Y + local.Y),
				float32(origin.Z + local.Z),
			}
			for _, d := range Directions {
				if !c.faceVisible(local.Add(d.Normal())) {
					continue
				}
				base := uint32(len(dst.Vertices))
				dst.Vertices = appendQuad(dst.Vertices, atlas, m, d, pos)
				for _, i := range quadIndices {
					dst.Indices = append(dst.Indices, base+i)
				}
			}
		}
	}
	return dst
}

// faceVisible decides whether the face toward neighbor is exposed. Only air
// exposes a face; a neighbor outside the padded grid always does.
func (c *Chunk) faceVisible(neighbor BlockCoord) bool {
	m, ok := c.LocalMaterial(neighbor)
	if !ok {
		return true
	}
	return m == MaterialAir
}

// Mesh returns the concatenated geometry from the last UpdateMesh. It is
// replaced, not modified, by the next call.
func (c *Chunk) Mesh() *Mesh { return &c.mesh }

// LayerSpans returns the per-layer spans of the current mesh. Callers must
// not modify the slice.
func (c *Chunk) LayerSpans() []LayerSpan { return c.spans }

// LayoutChanged reports whether the last UpdateMesh moved any layer span.
func (c *Chunk) LayoutChanged() bool { return c.layoutChanged }

// TakeRebuiltLayers returns the layers rebuilt by the last UpdateMesh and
// forgets them.
func (c *Chunk) TakeRebuiltLayers() []int {
	rebuilt := c.rebuilt
	c.rebuilt = nil
	return rebuilt
}

// LayerMesh returns the cached geometry of one layer in layer-local indices.
func (c *Chunk) LayerMesh(y int) (*Mesh, bool) {
	if y < 0 || y >= ChunkHeight {
		return nil, false
	}
	return &c.layers[y], true
}

// DirtyLayerCount reports how many layers wait for a rebuild.
func (c *Chunk) DirtyLayerCount() int {
	return c.layerDirty.count()
}
