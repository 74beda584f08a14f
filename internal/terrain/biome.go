package terrain

import "sort"

// Biome is the immutable parameter bundle of one named generation profile.
type Biome struct {
	Name       string
	BaseHeight float32
	Amplitude  float32
	Frequency  float32
}

// MaxHeight is the highest surface the biome can produce.
func (b Biome) MaxHeight() float32 {
	return b.BaseHeight + b.Amplitude
}

var (
	Prairie = Biome{Name: "prairie", BaseHeight: 10, Amplitude: 6, Frequency: 0.015}
	Hills   = Biome{Name: "hills", BaseHeight: 24, Amplitude: 20, Frequency: 0.008}
	Flats   = Biome{Name: "flats", BaseHeight: 8, Amplitude: 2, Frequency: 0.03}
)

// LookupBiome returns the profile registered under name.
func LookupBiome(name string) (Biome, bool) {
	switch name {
	case Prairie.Name:
		return Prairie, true
	case Hills.Name:
		return Hills, true
	case Flats.Name:
		return Flats, true
	}
	return Biome{}, false
}

// BiomeNames lists every registered profile name in sorted order.
func BiomeNames() []string {
	names := []string{Prairie.Name, Hills.Name, Flats.Name}
	sort.Strings(names)
	return names
}
