package terrain

import (
	"github.com/ojrac/opensimplex-go"
)

const (
	defaultOctaves     = 4
	defaultPersistence = 0.5
	defaultLacunarity  = 2.0
)

// NoiseGenerator samples a seeded, continuous 2D height field built from
// several octaves of OpenSimplex noise.
type NoiseGenerator struct {
	seed        int64
	noise       opensimplex.Noise32
	octaves     int
	persistence float32
	lacunarity  float32
}

// NoiseOption adjusts a NoiseGenerator at construction.
type NoiseOption func(*NoiseGenerator)

// WithOctaves overrides the fractal layering. Non-positive values keep the
// defaults.
func WithOctaves(octaves int, persistence, lacunarity float32) NoiseOption {
	return func(g *NoiseGenerator) {
		if octaves > 0 {
			g.octaves = octaves
		}
		if persistence > 0 {
			g.persistence = persistence
		}
		if lacunarity > 0 {
			g.lacunarity = lacunarity
		}
	}
}

func NewNoiseGenerator(seed int64, opts ...NoiseOption) *NoiseGenerator {
	g := &NoiseGenerator{
		seed:        seed,
		noise:       opensimplex.New32(seed),
		octaves:     defaultOctaves,
		persistence: defaultPersistence,
		lacunarity:  defaultLacunarity,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Seed returns the seed the generator was built with.
func (g *NoiseGenerator) Seed() int64 {
	return g.seed
}

// Height returns the surface offset at the world column (x, z). The result
// lies in [-amplitude, amplitude] and depends only on the seed and inputs.
func (g *NoiseGenerator) Height(x, z, frequency, amplitude float32) float32 {
	var sum, norm float32
	weight := float32(1)
	freq := frequency
	for i := 0; i < g.octaves; i++ {
		sum += g.noise.Eval2(x*freq, z*freq) * weight
		norm += weight
		weight *= g.persistence
		freq *= g.lacunarity
	}
	if norm == 0 {
		return 0
	}
	return sum / norm * amplitude
}
