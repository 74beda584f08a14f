package streaming

import (
	"errors"

	"go.uber.org/zap"

	"voxelterrain/internal/terrain"
	"voxelterrain/internal/world"
)

// Config holds the scheduler's tuning values.
type Config struct {
	// RenderDistance is the window edge in chunks; values below 2 use 2.
	RenderDistance      int
	JobsInFlight        int
	DirtyChunksPerFrame int
	MinVertexCap        int
	MinIndexCap         int
	LandLevel           int
	// WorldDir holds the world's chunk files.
	WorldDir  string
	Biome     terrain.Biome
	AtlasSize float32
	// DispatchRate caps job submissions per second; zero disables the cap.
	DispatchRate  float64
	DispatchBurst int
}

// DefaultConfig returns the stock tuning for the default world.
func DefaultConfig() Config {
	return Config{
		RenderDistance:      32,
		JobsInFlight:        8,
		DirtyChunksPerFrame: 2,
		MinVertexCap:        4096,
		MinIndexCap:         8192,
		LandLevel:           9,
		WorldDir:            "saves/default",
		Biome:               terrain.Prairie,
		AtlasSize:           world.DefaultAtlasSize,
		DispatchBurst:       8,
	}
}

func (c Config) validate() error {
	switch {
	case c.RenderDistance <= 0:
		return errors.New("render distance must be positive")
	case c.JobsInFlight <= 0:
		return errors.New("jobs in flight must be positive")
	case c.DirtyChunksPerFrame <= 0:
		return errors.New("dirty chunks per frame must be positive")
	case c.MinVertexCap <= 0 || c.MinIndexCap <= 0:
		return errors.New("minimum buffer capacities must be positive")
	case c.LandLevel < 0 || c.LandLevel >= world.ChunkHeight:
		return errors.New("land level must lie inside the chunk height")
	case c.WorldDir == "":
		return errors.New("world directory must be set")
	case c.DispatchRate < 0:
		return errors.New("dispatch rate must not be negative")
	}
	return nil
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBufferFactory sets how slot buffers are created. The default is
// NewHostBuffer.
func WithBufferFactory(factory BufferFactory) Option {
	return func(s *Scheduler) {
		if factory != nil {
			s.newBuffer = factory
		}
	}
}

// WithSaveRecorder registers a recorder for completed chunk saves.
func WithSaveRecorder(recorder SaveRecorder) Option {
	return func(s *Scheduler) {
		s.recorder = recorder
	}
}
