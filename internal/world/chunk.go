package world

import (
	"math"

	"voxelterrain/internal/terrain"
)

// placeholderHeight is the top layer of the debug column a fresh chunk holds
// before generation.
const placeholderHeight = 12

// HeightSampler is the noise source used by generation.
type HeightSampler interface {
	Height(x, z, frequency, amplitude float32) float32
}

// LayerRange is an inclusive span of Y layers.
type LayerRange struct {
	Min int
	Max int
}

// FullRange covers every layer of a chunk.
var FullRange = LayerRange{Min: 0, Max: ChunkHeight - 1}

// Chunk is a padded voxel column with a per-layer mesh cache. A Chunk is not
// safe for concurrent use; Manager hands it out behind a Handle.
type Chunk struct {
	blocks    []Block
	offset    ChunkCoord
	dirty     bool
	needsSave bool

	mesh          Mesh
	layers        []Mesh
	layerDirty    layerSet
	spans         []LayerSpan
	layoutChanged bool
	rebuilt       []int
	dirtyRange    LayerRange
	hasDirtyRange bool
}

// NewChunk allocates a chunk at offset filled with a debug placeholder column.
func NewChunk(offset ChunkCoord) *Chunk {
	c := &Chunk{
		blocks:        make([]Block, ChunkVolume),
		offset:        offset,
		layers:        make([]Mesh, ChunkHeight),
		spans:         make([]LayerSpan, ChunkHeight),
		layoutChanged: true,
	}
	for y := 0; y < ChunkHeight; y++ {
		m := MaterialAir
		if y <= placeholderHeight {
			m = MaterialDebug
		}
		layer := c.blocks[y*layerSize : (y+1)*layerSize]
		for i := range layer {
			layer[i].Material = m
		}
	}
	c.layerDirty.setRange(0, ChunkHeight-1)
	c.rebuilt = allLayers()
	return c
}

func allLayers() []int {
	layers := make([]int, ChunkHeight)
	for i := range layers {
		layers[i] = i
	}
	return layers
}

func blockIndex(y, x, z int) int {
	return y*layerSize + x*ChunkAreaPadded + z
}

func paddedInBounds(y, x, z int) bool {
	return y >= 0 && y < ChunkHeight &&
		x >= 0 && x < ChunkAreaPadded &&
		z >= 0 && z < ChunkAreaPadded
}

// Block returns the material at padded indices (0..17 horizontally, padding
// included).
func (c *Chunk) Block(y, x, z int) (Material, bool) {
	if !paddedInBounds(y, x, z) {
		return MaterialAir, false
	}
	return c.blocks[blockIndex(y, x, z)].Material, true
}

// SetBlock overwrites the material at padded indices without touching any
// dirty state.
func (c *Chunk) SetBlock(y, x, z int, m Material) bool {
	if !paddedInBounds(y, x, z) {
		return false
	}
	c.blocks[blockIndex(y, x, z)].Material = m
	return true
}

// LocalMaterial returns the material at an interior-relative position where
// -1 and ChunkArea address the padding ring.
func (c *Chunk) LocalMaterial(local BlockCoord) (Material, bool) {
	if !InChunkBounds(local) {
		return MaterialAir, false
	}
	return c.Block(local.Y, local.X+1, local.Z+1)
}

func (c *Chunk) setLocalMaterial(local BlockCoord, m Material) bool {
	if !InChunkBounds(local) {
		return false
	}
	return c.SetBlock(local.Y, local.X+1, local.Z+1, m)
}

func (c *Chunk) Offset() ChunkCoord { return c.offset }

func (c *Chunk) SetOffset(offset ChunkCoord) { c.offset = offset }

// Dirty reports whether remesh work is pending.
func (c *Chunk) Dirty() bool { return c.dirty }

func (c *Chunk) MarkDirty() { c.dirty = true }

func (c *Chunk) ClearDirty() { c.dirty = false }

// NeedsSave reports whether the voxel content differs from what is on disk.
func (c *Chunk) NeedsSave() bool { return c.needsSave }

func (c *Chunk) SetNeedsSave(v bool) { c.needsSave = v }

// MarkDirtyY flags layers y-1 through y+1 for rebuild and widens the dirty
// range to include them.
func (c *Chunk) MarkDirtyY(y int) {
	c.MarkLayersDirty(LayerRange{Min: y - 1, Max: y + 1})
}

// MarkLayersDirty flags an inclusive layer range for rebuild. The range is
// clamped to the chunk height.
func (c *Chunk) MarkLayersDirty(r LayerRange) {
	r, ok := r.clamp()
	if !ok {
		return
	}
	if c.hasDirtyRange {
		c.dirtyRange.Min = min(c.dirtyRange.Min, r.Min)
		c.dirtyRange.Max = max(c.dirtyRange.Max, r.Max)
	} else {
		c.dirtyRange = r
		c.hasDirtyRange = true
	}
	c.layerDirty.setRange(r.Min, r.Max)
}

func (r LayerRange) clamp() (LayerRange, bool) {
	r.Min = max(r.Min, 0)
	r.Max = min(r.Max, ChunkHeight-1)
	return r, r.Min <= r.Max
}

// DirtyRange returns the layers touched since the last remesh.
func (c *Chunk) DirtyRange() (LayerRange, bool) {
	return c.dirtyRange, c.hasDirtyRange
}

// UpdateBlocks regenerates every voxel, padding included, for the chunk at
// offset. The padding ring samples the neighboring world columns, so
// adjacent generated chunks agree on their shared borders.
func (c *Chunk) UpdateBlocks(offset ChunkCoord, noise HeightSampler, biome terrain.Biome, landLevel int) {
	c.offset = offset

	maxHeight := truncHeight(biome.BaseHeight + biome.Amplitude)
	dirtBelow := truncHeight(biome.BaseHeight - 1)
	origin := offset.Origin()

	var surface [layerSize]int
	for x := 0; x < ChunkAreaPadded; x++ {
		for z := 0; z < ChunkAreaPadded; z++ {
			wx := float32(origin.X + x - 1)
			wz := float32(origin.Z + z - 1)
			variation := noise.Height(wx, wz, biome.Frequency, biome.Amplitude)
			surface[x*ChunkAreaPadded+z] = roundHeight(biome.BaseHeight + variation)
		}
	}

	for y := 0; y < ChunkHeight; y++ {
		for x := 0; x < ChunkAreaPadded; x++ {
			for z := 0; z < ChunkAreaPadded; z++ {
				c.blocks[blockIndex(y, x, z)].Material = generatedMaterial(y, surface[x*ChunkAreaPadded+z], maxHeight, dirtBelow, landLevel)
			}
		}
	}

	c.dirty = true
	c.needsSave = false
	c.dirtyRange = FullRange
	c.hasDirtyRange = true
	c.layerDirty.setRange(0, ChunkHeight-1)
	c.rebuilt = allLayers()
}

func generatedMaterial(y, surface, maxHeight, dirtBelow, landLevel int) Material {
	switch {
	case y > maxHeight:
		return MaterialAir
	case y < dirtBelow:
		return MaterialDirt
	case y > surface:
		if y <= landLevel {
			return MaterialWater
		}
		return MaterialAir
	case y == surface:
		return MaterialGrass
	case y == 0:
		return MaterialRock
	default:
		return MaterialDirt
	}
}

// truncHeight converts a height to a layer index, truncating toward zero and
// saturating at zero.
func truncHeight(h float32) int {
	if h <= 0 || math.IsNaN(float64(h)) {
		return 0
	}
	return int(h)
}

func roundHeight(h float32) int {
	return truncHeight(float32(math.Round(float64(h))))
}

// Surface returns the highest non-air layer of an interior column and its
// material. x and z are interior coordinates.
func (c *Chunk) Surface(x, z int) (int, Material, bool) {
	if x < 0 || x >= ChunkArea || z < 0 || z >= ChunkArea {
		return 0, MaterialAir, false
	}
	for y := ChunkHeight - 1; y >= 0; y-- {
		m := c.blocks[blockIndex(y, x+1, z+1)].Material
		if m != MaterialAir {
			return y, m, true
		}
	}
	return 0, MaterialAir, false
}
