package streaming

import (
	"math/bits"

	"voxelterrain/internal/world"
)

// MeshBuffer is the GPU-side home of one slot's mesh.
type MeshBuffer interface {
	// Update replaces the buffer contents, growing capacity when needed.
	Update(mesh *world.Mesh)
	// ShrinkTo drops the contents and lowers capacity to at least the given
	// floors.
	ShrinkTo(minVertices, minIndices int)
	// IndexCount is the number of indices to draw.
	IndexCount() uint32
}

// LayerWriter is implemented by buffers that can rewrite individual layer
// spans in place when the overall layout is unchanged.
type LayerWriter interface {
	WriteLayers(mesh *world.Mesh, spans []world.LayerSpan, layers []int)
}

// BufferFactory creates the buffer for one slot with initial capacities.
type BufferFactory func(vertexCap, indexCap int) MeshBuffer

// RenderPass receives one indexed draw per resident slot.
type RenderPass interface {
	DrawIndexed(buf MeshBuffer, indexCount uint32)
}

// HostBuffer is a MeshBuffer kept in CPU memory. Capacities grow to the next
// power of two, like a dynamic GPU buffer would.
type HostBuffer struct {
	vertices    []byte
	indices     []byte
	vertexCap   int
	indexCap    int
	numVertices int
	numIndices  uint32

	fullUploads    int
	partialUploads int
}

func NewHostBuffer(vertexCap, indexCap int) *HostBuffer {
	b := &HostBuffer{}
	b.allocate(vertexCap, indexCap)
	return b
}

func (b *HostBuffer) allocate(vertexCap, indexCap int) {
	b.vertexCap = max(vertexCap, 0)
	b.indexCap = max(indexCap, 0)
	b.vertices = make([]byte, b.vertexCap*world.VertexSize)
	b.indices = make([]byte, b.indexCap*world.IndexSize)
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func (b *HostBuffer) Update(mesh *world.Mesh) {
	nv, ni := len(mesh.Vertices), len(mesh.Indices)
	if nv > b.vertexCap {
		b.vertexCap = nextPowerOfTwo(nv)
		b.vertices = make([]byte, b.vertexCap*world.VertexSize)
	}
	if ni > b.indexCap {
		b.indexCap = nextPowerOfTwo(ni)
		b.indices = make([]byte, b.indexCap*world.IndexSize)
	}
	mesh.AppendVertexBytes(b.vertices[:0])
	mesh.AppendIndexBytes(b.indices[:0])
	b.numVertices = nv
	b.numIndices = uint32(ni)
	b.fullUploads++
}

// WriteLayers copies only the listed layers' spans. It falls back to a full
// Update when a span does not fit the current contents.
func (b *HostBuffer) WriteLayers(mesh *world.Mesh, spans []world.LayerSpan, layers []int) {
	if len(mesh.Vertices) != b.numVertices || len(mesh.Indices) != int(b.numIndices) {
		b.Update(mesh)
		return
	}
	for _, y := range layers {
		if y < 0 || y >= len(spans) {
			continue
		}
		span := spans[y]
		vEnd := span.VStart + span.VLen
		iEnd := span.IStart + span.ILen
		if int(vEnd) > len(mesh.Vertices) || int(iEnd) > len(mesh.Indices) {
			b.Update(mesh)
			return
		}
		vertexPart := world.Mesh{Vertices: mesh.Vertices[span.VStart:vEnd]}
		vertexPart.AppendVertexBytes(b.vertices[int(span.VStart)*world.VertexSize : int(span.VStart)*world.VertexSize])
		indexPart := world.Mesh{Indices: mesh.Indices[span.IStart:iEnd]}
		indexPart.AppendIndexBytes(b.indices[int(span.IStart)*world.IndexSize : int(span.IStart)*world.IndexSize])
	}
	b.partialUploads++
}

func (b *HostBuffer) ShrinkTo(minVertices, minIndices int) {
	if b.vertexCap > minVertices || b.indexCap > minIndices {
		b.allocate(min(b.vertexCap, minVertices), min(b.indexCap, minIndices))
	}
	b.numVertices = 0
	b.numIndices = 0
}

func (b *HostBuffer) IndexCount() uint32 { return b.numIndices }

// VertexCapacity and IndexCapacity report the allocated element counts.
func (b *HostBuffer) VertexCapacity() int { return b.vertexCap }

func (b *HostBuffer) IndexCapacity() int { return b.indexCap }

// VertexBytes returns the encoded vertices currently in use.
func (b *HostBuffer) VertexBytes() []byte {
	return b.vertices[:b.numVertices*world.VertexSize]
}

// IndexBytes returns the encoded indices currently in use.
func (b *HostBuffer) IndexBytes() []byte {
	return b.indices[:int(b.numIndices)*world.IndexSize]
}

// Uploads reports how many full and partial writes the buffer received.
func (b *HostBuffer) Uploads() (full, partial int) {
	return b.fullUploads, b.partialUploads
}
