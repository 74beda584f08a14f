package world

import (
	"fmt"
	"math"
)

const (
	// ChunkHeight is the number of Y layers in every chunk.
	ChunkHeight = 512
	// ChunkArea is the horizontal extent of a chunk's interior.
	ChunkArea = 16
	// ChunkAreaPadded adds the one-voxel mirror ring on each horizontal side.
	ChunkAreaPadded = ChunkArea + 2

	layerSize = ChunkAreaPadded * ChunkAreaPadded
	// ChunkVolume is the number of voxels stored per chunk, padding included.
	ChunkVolume = ChunkHeight * layerSize
)

// ChunkCoord identifies a chunk in the infinite chunk grid.
type ChunkCoord struct {
	X int
	Y int
	Z int
}

// UnmappedCoord marks a slot that is not bound to any chunk.
var UnmappedCoord = ChunkCoord{X: math.MinInt, Y: math.MinInt, Z: math.MinInt}

func (c ChunkCoord) String() string {
	if c == UnmappedCoord {
		return "(unmapped)"
	}
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Add offsets the coordinate by another one.
func (c ChunkCoord) Add(d ChunkCoord) ChunkCoord {
	return ChunkCoord{X: c.X + d.X, Y: c.Y + d.Y, Z: c.Z + d.Z}
}

// Origin returns the world position of the chunk's first interior voxel.
func (c ChunkCoord) Origin() BlockCoord {
	return BlockCoord{X: c.X * ChunkArea, Y: c.Y * ChunkHeight, Z: c.Z * ChunkArea}
}

// BlockCoord describes a voxel position in world space.
type BlockCoord struct {
	X int
	Y int
	Z int
}

func (b BlockCoord) String() string {
	return fmt.Sprintf("[%d,%d,%d]", b.X, b.Y, b.Z)
}

// Add offsets the position by another one.
func (b BlockCoord) Add(d BlockCoord) BlockCoord {
	return BlockCoord{X: b.X + d.X, Y: b.Y + d.Y, Z: b.Z + d.Z}
}

// SplitBlockCoord converts a world position into the owning chunk and the
// position inside it (interior coordinates, 0..ChunkArea-1 horizontally).
// Negative coordinates round toward negative infinity.
func SplitBlockCoord(pos BlockCoord) (ChunkCoord, BlockCoord) {
	chunk := ChunkCoord{
		X: floorDiv(pos.X, ChunkArea),
		Y: floorDiv(pos.Y, ChunkHeight),
		Z: floorDiv(pos.Z, ChunkArea),
	}
	local := BlockCoord{
		X: floorMod(pos.X, ChunkArea),
		Y: floorMod(pos.Y, ChunkHeight),
		Z: floorMod(pos.Z, ChunkArea),
	}
	return chunk, local
}

// ChunkOfWorld returns the horizontal chunk column containing a world-space
// point. Y is not windowed and is always zero.
func ChunkOfWorld(x, z float32) ChunkCoord {
	return ChunkCoord{
		X: int(math.Floor(float64(x) / ChunkArea)),
		Z: int(math.Floor(float64(z) / ChunkArea)),
	}
}

// InChunkBounds reports whether an interior-relative position is addressable
// in a padded chunk: -1..ChunkArea horizontally, 0..ChunkHeight-1 vertically.
func InChunkBounds(local BlockCoord) bool {
	return local.X >= -1 && local.X <= ChunkArea &&
		local.Z >= -1 && local.Z <= ChunkArea &&
		local.Y >= 0 && local.Y < ChunkHeight
}

func floorDiv(value, size int) int {
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}

func floorMod(value, size int) int {
	m := value % size
	if m < 0 {
		m += size
	}
	return m
}
