package world

import "github.com/go-gl/mathgl/mgl32"

// Direction names one of the six faces of a voxel.
type Direction uint8

const (
	DirTop Direction = iota
	DirBottom
	DirRight
	DirLeft
	DirFront
	DirBack
)

// Directions lists faces in emission order.
var Directions = [...]Direction{DirTop, DirBottom, DirRight, DirLeft, DirFront, DirBack}

var directionNames = [...]string{"top", "bottom", "right", "left", "front", "back"}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "unknown"
}

// Normal returns the unit step toward the neighbor sharing this face.
func (d Direction) Normal() BlockCoord {
	switch d {
	case DirTop:
		return BlockCoord{Y: 1}
	case DirBottom:
		return BlockCoord{Y: -1}
	case DirRight:
		return BlockCoord{X: 1}
	case DirLeft:
		return BlockCoord{X: -1}
	case DirFront:
		return BlockCoord{Z: 1}
	default:
		return BlockCoord{Z: -1}
	}
}

type quadCorner struct {
	pos [3]float32
	uv  [2]uint32
}

// Corners per face, counter-clockwise when viewed from outside the voxel.
var quadCorners = [6][4]quadCorner{
	DirTop: {
		{pos: [3]float32{0, 1, 0}, uv: [2]uint32{0, 0}},
		{pos: [3]float32{0, 1, 1}, uv: [2]uint32{0, 1}},
		{pos: [3]float32{1, 1, 1}, uv: [2]uint32{1, 1}},
		{pos: [3]float32{1, 1, 0}, uv: [2]uint32{1, 0}},
	},
	DirBottom: {
		{pos: [3]float32{0, 0, 1}, uv: [2]uint32{0, 0}},
		{pos: [3]float32{0, 0, 0}, uv: [2]uint32{0, 1}},
		{pos: [3]float32{1, 0, 0}, uv: [2]uint32{1, 1}},
		{pos: [3]float32{1, 0, 1}, uv: [2]uint32{1, 0}},
	},
	DirRight: {
		{pos: [3]float32{1, 1, 1}, uv: [2]uint32{0, 0}},
		{pos: [3]float32{1, 0, 1}, uv: [2]uint32{0, 1}},
		{pos: [3]float32{1, 0, 0}, uv: [2]uint32{1, 1}},
		{pos: [3]float32{1, 1, 0}, uv: [2]uint32{1, 0}},
	},
	DirLeft: {
		{pos: [3]float32{0, 1, 0}, uv: [2]uint32{0, 0}},
		{pos: [3]float32{0, 0, 0}, uv: [2]uint32{0, 1}},
		{pos: [3]float32{0, 0, 1}, uv: [2]uint32{1, 1}},
		{pos: [3]float32{0, 1, 1}, uv: [2]uint32{1, 0}},
	},
	DirFront: {
		{pos: [3]float32{0, 1, 1}, uv: [2]uint32{0, 0}},
		{pos: [3]float32{0, 0, 1}, uv: [2]uint32{0, 1}},
		{pos: [3]float32{1, 0, 1}, uv: [2]uint32{1, 1}},
		{pos: [3]float32{1, 1, 1}, uv: [2]uint32{1, 0}},
	},
	DirBack: {
		{pos: [3]float32{1, 1, 0}, uv: [2]uint32{0, 0}},
		{pos: [3]float32{1, 0, 0}, uv: [2]uint32{0, 1}},
		{pos: [3]float32{0, 0, 0}, uv: [2]uint32{1, 1}},
		{pos: [3]float32{0, 1, 0}, uv: [2]uint32{1, 0}},
	},
}

// quadIndices is the two-triangle pattern for one face.
var quadIndices = [6]uint32{0, 1, 2, 2, 3, 0}

// appendQuad emits the four corners of face d of the voxel whose minimum
// corner sits at world position origin.
func appendQuad(dst []Vertex, atlas Atlas, m Material, d Direction, origin mgl32.Vec3) []Vertex {
	for _, corner := range quadCorners[d] {
		dst = append(dst, Vertex{
			Position: origin.Add(mgl32.Vec3{corner.pos[0], corner.pos[1], corner.pos[2]}),
			UV:       atlas.TextureCoords(m, d, corner.uv),
		})
	}
	return dst
}
