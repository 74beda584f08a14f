package world

import "github.com/go-gl/mathgl/mgl32"

const (
	// DefaultAtlasSize is the edge length in pixels of the stock block atlas.
	DefaultAtlasSize = 256
	atlasTiles       = 16
)

// Atlas maps materials and faces to texture coordinates on a square atlas
// made of 16x16 tiles.
type Atlas struct {
	SizePx float32
}

// NewAtlas returns an atlas of the given pixel size. Non-positive sizes fall
// back to the default.
func NewAtlas(sizePx float32) Atlas {
	if sizePx <= 0 {
		sizePx = DefaultAtlasSize
	}
	return Atlas{SizePx: sizePx}
}

// Tile returns the tile column and row used for a material face. ok is false
// for materials that have no texture.
func (a Atlas) Tile(m Material, d Direction) (col, row float32, ok bool) {
	switch m {
	case MaterialGrass:
		switch d {
		case DirTop:
			return 0, 0, true
		case DirBottom:
			return 2, 0, true
		default:
			return 3, 0, true
		}
	case MaterialDirt:
		return 2, 0, true
	case MaterialRock:
		return 0, 1, true
	case MaterialWater:
		return 13, 0, true
	case MaterialDebug:
		return 5, 0, true
	}
	return 0, 0, false
}

// TextureCoords returns the normalized UV for one corner of a face. corner
// holds 0 or 1 on each axis.
func (a Atlas) TextureCoords(m Material, d Direction, corner [2]uint32) mgl32.Vec2 {
	col, row, ok := a.Tile(m, d)
	if !ok {
		return mgl32.Vec2{}
	}
	size := a.SizePx
	if size <= 0 {
		size = DefaultAtlasSize
	}
	tile := size / atlasTiles
	px := col * tile
	py := row * tile
	if corner[0] == 1 {
		px += tile - 1
	}
	if corner[1] == 1 {
		py += tile
	}
	return mgl32.Vec2{px / size, py / size}
}
