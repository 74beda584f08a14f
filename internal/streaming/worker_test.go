package streaming

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"voxelterrain/internal/terrain"
	"voxelterrain/internal/world"
)

type constSampler float32

func (s constSampler) Height(_, _, _, _ float32) float32 { return float32(s) }

type samplerFunc func(x, z, frequency, amplitude float32) float32

func (f samplerFunc) Height(x, z, frequency, amplitude float32) float32 {
	return f(x, z, frequency, amplitude)
}

var testBiome = terrain.Biome{Name: "test", BaseHeight: 10, Amplitude: 6, Frequency: 0.05}

type recordedSave struct {
	offset world.ChunkCoord
	size   int
}

type fakeRecorder struct {
	mu    sync.Mutex
	saves []recordedSave
}

func (r *fakeRecorder) RecordSave(_ context.Context, offset world.ChunkCoord, size int, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, recordedSave{offset: offset, size: size})
	return nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func newTestGenerator(t *testing.T, noise world.HeightSampler) (*generator, *observer.ObservedLogs) {
	t.Helper()
	logger, logs := newObservedLogger()
	g := newGenerator(4, t.TempDir(), noise, testBiome, 9, world.NewAtlas(world.DefaultAtlasSize), logger)
	return g, logs
}

func newHandle(t *testing.T) *world.Handle {
	t.Helper()
	m := world.NewManager(zap.NewNop())
	h, _ := m.Handle(m.AddChunk(world.NewChunk(world.UnmappedCoord)))
	return h
}

func TestGeneratorGeneratesMissingChunk(t *testing.T) {
	g, _ := newTestGenerator(t, constSampler(0))
	offset := world.ChunkCoord{X: 2, Z: -1}
	h := newHandle(t)

	res := g.process(job{slot: 3, handle: h, offset: offset})
	if res.err != nil || res.source != "generated" || res.slot != 3 || res.offset != offset {
		t.Fatalf("unexpected result %+v", res)
	}
	h.Read(func(c *world.Chunk) {
		if c.Dirty() {
			t.Fatal("expected chunk clean after the worker meshed it")
		}
		if c.Mesh().Empty() {
			t.Fatal("expected a mesh for generated terrain")
		}
		if y, m, ok := c.Surface(4, 4); !ok || y != 10 || m != world.MaterialGrass {
			t.Fatalf("unexpected surface %d %v %v", y, m, ok)
		}
	})
}

func TestGeneratorPrefersSnapshotOverDisk(t *testing.T) {
	g, _ := newTestGenerator(t, constSampler(0))
	offset := world.ChunkCoord{X: 1}

	edited := world.NewChunk(offset)
	edited.UpdateBlocks(offset, constSampler(0), testBiome, 9)
	edited.SetBlock(10, 3, 3, world.MaterialRock)
	snapshot := edited.EncodeBlocks()

	stale := world.NewChunk(offset)
	stale.UpdateBlocks(offset, constSampler(0), testBiome, 9)
	if err := stale.SaveTo(world.ChunkPath(g.worldDir, offset)); err != nil {
		t.Fatalf("save stale chunk: %v", err)
	}

	h := newHandle(t)
	res := g.process(job{slot: 0, handle: h, offset: offset, snapshot: snapshot})
	if res.source != "pending save" {
		t.Fatalf("expected snapshot source, got %q", res.source)
	}
	h.Read(func(c *world.Chunk) {
		if !bytes.Equal(c.EncodeBlocks(), snapshot) {
			t.Fatal("chunk content does not match the snapshot")
		}
	})
}

func TestGeneratorLoadsFromDisk(t *testing.T) {
	g, _ := newTestGenerator(t, constSampler(0))
	offset := world.ChunkCoord{Z: 5}
	saved := world.NewChunk(offset)
	saved.UpdateBlocks(offset, constSampler(0), testBiome, 9)
	saved.SetBlock(11, 8, 8, world.MaterialWater)
	if err := saved.SaveTo(world.ChunkPath(g.worldDir, offset)); err != nil {
		t.Fatalf("save chunk: %v", err)
	}

	h := newHandle(t)
	if res := g.process(job{handle: h, offset: offset}); res.source != "disk" {
		t.Fatalf("expected disk source, got %q", res.source)
	}
	h.Read(func(c *world.Chunk) {
		if m, _ := c.Block(11, 8, 8); m != world.MaterialWater {
			t.Fatalf("expected saved water voxel, got %v", m)
		}
	})
}

func TestGeneratorRegeneratesCorruptFile(t *testing.T) {
	g, logs := newTestGenerator(t, constSampler(0))
	offset := world.ChunkCoord{X: -4}
	path := world.ChunkPath(g.worldDir, offset)
	if err := world.WriteChunkFile(path, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	res := g.process(job{handle: newHandle(t), offset: offset})
	if res.err != nil || res.source != "generated" {
		t.Fatalf("expected regeneration, got %+v", res)
	}
	if logs.FilterMessage("discarding unreadable chunk file").Len() != 1 {
		t.Fatal("expected a warning about the corrupt file")
	}
}

func TestGeneratorRecoversPanic(t *testing.T) {
	g, logs := newTestGenerator(t, samplerFunc(func(_, _, _, _ float32) float32 {
		panic("sampler exploded")
	}))
	res := g.process(job{slot: 2, handle: newHandle(t), offset: world.ChunkCoord{}})
	if res.err == nil {
		t.Fatal("expected panic to surface as an error")
	}
	if res.slot != 2 {
		t.Fatalf("failed result lost its slot: %+v", res)
	}
	if logs.FilterMessage("generation job failed").Len() != 1 {
		t.Fatal("expected the panic to be logged")
	}
}

func TestSaverWritesAndRecords(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{}
	logger, _ := newObservedLogger()
	s := newSaver(dir, rec, logger)

	offset := world.ChunkCoord{X: 3, Z: 3}
	c := world.NewChunk(offset)
	c.UpdateBlocks(offset, constSampler(0), testBiome, 9)
	data := c.EncodeBlocks()
	s.submit(offset, data)

	if got, ok := s.inFlight(offset); !ok || !bytes.Equal(got, data) {
		t.Fatal("expected the submitted bytes to be visible as in flight")
	}
	s.close()

	onDisk, err := os.ReadFile(world.ChunkPath(dir, offset))
	if err != nil {
		t.Fatalf("read saved chunk: %v", err)
	}
	if !bytes.Equal(onDisk, data) {
		t.Fatal("saved bytes differ from the submitted snapshot")
	}
	if rec.count() != 1 || rec.saves[0].size != len(data) {
		t.Fatalf("unexpected recorded saves %+v", rec.saves)
	}
	if _, ok := s.inFlight(offset); ok {
		t.Fatal("expected no saves in flight after close")
	}
}

func TestSaverReapForgetsFinishedSaves(t *testing.T) {
	s := newSaver(t.TempDir(), nil, zap.NewNop())
	offset := world.ChunkCoord{Z: 1}
	s.submit(offset, make([]byte, world.ChunkVolume))
	s.pending[offset].task.Wait()
	s.reap()
	if _, ok := s.inFlight(offset); ok {
		t.Fatal("expected reap to drop the finished save")
	}
	s.close()
}
