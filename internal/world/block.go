package world

import "fmt"

// Material is the tag stored for every voxel.
type Material uint8

// The numeric values double as the on-disk byte encoding.
const (
	MaterialDirt Material = iota
	MaterialGrass
	MaterialRock
	MaterialWater
	MaterialAir
	MaterialDebug
)

var materialNames = [...]string{
	MaterialDirt:  "dirt",
	MaterialGrass: "grass",
	MaterialRock:  "rock",
	MaterialWater: "water",
	MaterialAir:   "air",
	MaterialDebug: "debug",
}

func (m Material) String() string {
	if int(m) < len(materialNames) {
		return materialNames[m]
	}
	return fmt.Sprintf("material(%d)", uint8(m))
}

// IsTransparent reports whether light and vision pass through the material.
func (m Material) IsTransparent() bool {
	return m == MaterialAir || m == MaterialWater
}

// IsSolid reports whether the material blocks movement.
func (m Material) IsSolid() bool {
	return !m.IsTransparent()
}

// Byte returns the persisted encoding.
func (m Material) Byte() byte {
	return byte(m)
}

// MaterialFromByte decodes a persisted material. Unknown values decode as air.
func MaterialFromByte(b byte) Material {
	if int(b) < len(materialNames) {
		return Material(b)
	}
	return MaterialAir
}

// ParseMaterial resolves a material by name.
func ParseMaterial(name string) (Material, error) {
	for i, n := range materialNames {
		if n == name {
			return Material(i), nil
		}
	}
	return MaterialAir, fmt.Errorf("unknown material %q", name)
}

// Block is one voxel. It has no identity beyond its position in a chunk.
type Block struct {
	Material Material
}

func (b Block) IsTransparent() bool { return b.Material.IsTransparent() }

func (b Block) IsSolid() bool { return b.Material.IsSolid() }
