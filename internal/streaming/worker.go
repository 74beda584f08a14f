package streaming

import (
	"errors"
	"fmt"
	"io/fs"

	"go.uber.org/zap"

	"voxelterrain/internal/terrain"
	"voxelterrain/internal/world"
)

type job struct {
	slot     int
	handle   *world.Handle
	offset   world.ChunkCoord
	snapshot []byte
}

type jobResult struct {
	slot   int
	offset world.ChunkCoord
	source string
	err    error
}

// generator is the single background worker that fills and meshes chunks.
// Both channels are buffered to the slot count, and a slot carries at most
// one job at a time, so sends never block.
type generator struct {
	worldDir  string
	noise     world.HeightSampler
	biome     terrain.Biome
	landLevel int
	atlas     world.Atlas
	logger    *zap.Logger

	jobs    chan job
	results chan jobResult
	done    chan struct{}
}

func newGenerator(capacity int, worldDir string, noise world.HeightSampler, biome terrain.Biome, landLevel int, atlas world.Atlas, logger *zap.Logger) *generator {
	return &generator{
		worldDir:  worldDir,
		noise:     noise,
		biome:     biome,
		landLevel: landLevel,
		atlas:     atlas,
		logger:    logger,
		jobs:      make(chan job, capacity),
		results:   make(chan jobResult, capacity),
		done:      make(chan struct{}),
	}
}

func (g *generator) run() {
	defer close(g.done)
	for j := range g.jobs {
		g.results <- g.process(j)
	}
}

// process loads or generates one chunk and rebuilds its whole mesh. A panic
// is turned into a failed result so the slot still comes back.
func (g *generator) process(j job) (res jobResult) {
	res.slot = j.slot
	res.offset = j.offset
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("generate chunk %v: panic: %v", j.offset, r)
			g.logger.Error("generation job failed",
				zap.Int("slot", j.slot), zap.Stringer("offset", j.offset),
				zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	j.handle.Write(func(c *world.Chunk) {
		res.source = g.fill(c, j)
		c.UpdateMesh(g.atlas, nil)
		c.ClearDirty()
	})
	return res
}

func (g *generator) fill(c *world.Chunk, j job) string {
	if j.snapshot != nil {
		if err := c.DecodeBlocks(j.snapshot, j.offset); err == nil {
			return "pending save"
		}
	}
	err := c.LoadFrom(world.ChunkPath(g.worldDir, j.offset), j.offset)
	if err == nil {
		return "disk"
	}
	if !errors.Is(err, fs.ErrNotExist) {
		g.logger.Warn("discarding unreadable chunk file",
			zap.Stringer("offset", j.offset), zap.Error(err))
	}
	c.UpdateBlocks(j.offset, g.noise, g.biome, g.landLevel)
	return "generated"
}

// stop closes the job queue and waits for the worker to finish what was
// already queued.
func (g *generator) stop() {
	close(g.jobs)
	<-g.done
}
