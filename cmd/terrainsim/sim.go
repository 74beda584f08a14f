package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"voxelterrain/internal/config"
	"voxelterrain/internal/persist"
	"voxelterrain/internal/streaming"
	"voxelterrain/internal/terrain"
	"voxelterrain/internal/world"
)

type simOptions struct {
	frames        int
	step          float32
	digEvery      int
	previewDir    string
	frameInterval time.Duration
}

type simSummary struct {
	Frames      int
	Digs        int
	Resident    int
	Draws       int
	Previews    []string
	WorldID     uuid.UUID
	MetaCreated bool
}

// countingPass stands in for a GPU render pass.
type countingPass struct {
	draws   int
	indices uint64
}

func (p *countingPass) DrawIndexed(_ streaming.MeshBuffer, n uint32) {
	p.draws++
	p.indices += uint64(n)
}

func schedulerConfig(cfg *config.Config, biome terrain.Biome) streaming.Config {
	return streaming.Config{
		RenderDistance:      cfg.Graphics.RenderDistanceChunks,
		JobsInFlight:        cfg.Terrain.JobsInFlight,
		DirtyChunksPerFrame: cfg.Terrain.DirtyChunksPerFrame,
		MinVertexCap:        cfg.Terrain.MinVertexCap,
		MinIndexCap:         cfg.Terrain.MinIndexCap,
		LandLevel:           cfg.Terrain.LandLevel,
		WorldDir:            cfg.WorldDir(),
		Biome:               biome,
		AtlasSize:           cfg.Terrain.AtlasSize,
		DispatchRate:        cfg.Terrain.DispatchRate,
		DispatchBurst:       cfg.Terrain.DispatchBurst,
	}
}

// run walks a viewer across the world for opts.frames frames, digging the
// surface below it at a fixed cadence, then persists every edit.
func run(ctx context.Context, cfg *config.Config, opts simOptions, logger *zap.Logger) (simSummary, error) {
	var summary simSummary
	worldDir := cfg.WorldDir()

	meta, created, err := persist.LoadOrCreateMeta(worldDir, cfg.World.Name, cfg.World.Seed, cfg.World.Biome)
	if err != nil {
		return summary, err
	}
	summary.WorldID = meta.ID
	summary.MetaCreated = created
	if !created && (meta.Seed != cfg.World.Seed || meta.Biome != cfg.World.Biome) {
		logger.Warn("world exists, keeping its stored seed and biome",
			zap.Int64("seed", meta.Seed), zap.String("biome", meta.Biome))
	}
	biome, ok := terrain.LookupBiome(meta.Biome)
	if !ok {
		return summary, fmt.Errorf("world %s uses unknown biome %q", meta.Name, meta.Biome)
	}

	catalog, err := persist.OpenCatalog(filepath.Join(worldDir, persist.CatalogFileName))
	if err != nil {
		return summary, err
	}
	defer catalog.Close()

	sched, err := streaming.New(schedulerConfig(cfg, biome), terrain.NewNoiseGenerator(meta.Seed),
		streaming.WithLogger(logger),
		streaming.WithSaveRecorder(catalog))
	if err != nil {
		return summary, err
	}

	var ticker *time.Ticker
	if opts.frameInterval > 0 {
		ticker = time.NewTicker(opts.frameInterval)
		defer ticker.Stop()
	}

	viewer := mgl32.Vec3{8, biome.MaxHeight() + 2, 8}
	pass := &countingPass{}
frames:
	for frame := 1; frame <= opts.frames; frame++ {
		if ctx.Err() != nil {
			break
		}
		sched.Update(viewer)
		pass.draws = 0
		sched.Draw(pass)

		if opts.digEvery > 0 && frame%opts.digEvery == 0 && dig(sched, viewer) {
			summary.Digs++
		}
		viewer[0] += opts.step
		summary.Frames = frame

		if ticker != nil {
			select {
			case <-ctx.Done():
				break frames
			case <-ticker.C:
			}
		}
	}

	stats := sched.Stats()
	summary.Resident = stats.Resident
	summary.Draws = pass.draws

	if opts.previewDir != "" {
		summary.Previews = writePreviews(sched, viewer, opts.previewDir, logger)
	}

	if err := sched.Close(); err != nil {
		return summary, err
	}
	if saved, err := catalog.Count(context.Background()); err == nil {
		logger.Info("save catalog", zap.Int("chunks", saved))
	}
	return summary, nil
}

// dig removes the first solid voxel straight below the viewer and remeshes
// the touched chunks in the same frame.
func dig(sched *streaming.Scheduler, viewer mgl32.Vec3) bool {
	origin := mgl32.Vec3{viewer.X(), world.ChunkHeight - 1, viewer.Z()}
	hit, ok := sched.Raycast(origin, mgl32.Vec3{0, -1, 0}, world.ChunkHeight)
	if !ok {
		return false
	}
	touched := sched.SetBlockMaterial(hit.Block, world.MaterialAir)
	if len(touched) == 0 {
		return false
	}
	sched.RemeshNow(touched)
	return true
}

func writePreviews(sched *streaming.Scheduler, viewer mgl32.Vec3, dir string, logger *zap.Logger) []string {
	chunks := sched.Chunks()
	slot, ok := chunks.Slot(world.ChunkOfWorld(viewer.X(), viewer.Z()))
	if !ok {
		logger.Warn("viewer chunk not resident, no preview written")
		return nil
	}
	h, _ := chunks.Handle(slot)
	var path string
	var err error
	h.Read(func(c *world.Chunk) {
		path, err = world.SaveHeightmapPreview(c, dir)
	})
	if err != nil {
		logger.Warn("heightmap preview failed", zap.Error(err))
		return nil
	}
	return []string{path}
}
