package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// BlockQuerier answers material lookups in world space.
type BlockQuerier interface {
	BlockMaterial(pos BlockCoord) (Material, bool)
}

// RayHit is the first solid voxel along a ray.
type RayHit struct {
	Block    BlockCoord
	Normal   BlockCoord
	Material Material
	Distance float32
}

// Adjacent returns the voxel the ray passed through just before the hit,
// which is where a placed block goes.
func (h RayHit) Adjacent() BlockCoord {
	return h.Block.Add(h.Normal)
}

// Raycast walks the voxel grid from origin along dir and returns the first
// solid voxel within maxDist. Non-resident voxels are treated as empty.
func Raycast(q BlockQuerier, origin, dir mgl32.Vec3, maxDist float32) (RayHit, bool) {
	if dir.Len() == 0 || maxDist <= 0 {
		return RayHit{}, false
	}
	dir = dir.Normalize()

	cell := [3]int{floorf(origin[0]), floorf(origin[1]), floorf(origin[2])}
	var step [3]int
	var tMax, tDelta [3]float32
	for axis := 0; axis < 3; axis++ {
		switch {
		case dir[axis] > 0:
			step[axis] = 1
			tDelta[axis] = 1 / dir[axis]
			tMax[axis] = (float32(cell[axis]+1) - origin[axis]) * tDelta[axis]
		case dir[axis] < 0:
			step[axis] = -1
			tDelta[axis] = -1 / dir[axis]
			tMax[axis] = (origin[axis] - float32(cell[axis])) * tDelta[axis]
		default:
			tDelta[axis] = float32(math.Inf(1))
			tMax[axis] = float32(math.Inf(1))
		}
	}

	var normal BlockCoord
	var t float32
	for t <= maxDist {
		pos := BlockCoord{X: cell[0], Y: cell[1], Z: cell[2]}
		if m, ok := q.BlockMaterial(pos); ok && m.IsSolid() {
			return RayHit{Block: pos, Normal: normal, Material: m, Distance: t}, true
		}

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		cell[axis] += step[axis]
		tMax[axis] += tDelta[axis]
		normal = BlockCoord{}
		switch axis {
		case 0:
			normal.X = -step[0]
		case 1:
			normal.Y = -step[1]
		default:
			normal.Z = -step[2]
		}
	}
	return RayHit{}, false
}

func floorf(v float32) int {
	return int(math.Floor(float64(v)))
}
