package world

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"voxelterrain/internal/terrain"
)

func TestChunkSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	offset := ChunkCoord{X: -2, Z: 5}
	src := NewChunk(ChunkCoord{})
	src.UpdateBlocks(offset, terrain.NewNoiseGenerator(3), terrain.Prairie, 9)
	src.SetBlock(20, 4, 4, MaterialDebug)

	path := ChunkPath(dir, offset)
	if err := src.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != ChunkVolume {
		t.Fatalf("expected %d bytes on disk, got %d", ChunkVolume, info.Size())
	}

	dst := NewChunk(ChunkCoord{})
	dst.SetNeedsSave(true)
	dst.MarkDirty()
	if err := dst.LoadFrom(path, offset); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(src.EncodeBlocks(), dst.EncodeBlocks()) {
		t.Fatal("expected loaded materials to match saved materials")
	}
	if dst.Offset() != offset || dst.NeedsSave() || dst.Dirty() {
		t.Fatalf("unexpected state after load: offset=%v needsSave=%v dirty=%v", dst.Offset(), dst.NeedsSave(), dst.Dirty())
	}
}

func TestLoadTruncatedFileLeavesChunkUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ChunkFileName(ChunkCoord{X: 1}))
	if err := os.WriteFile(path, make([]byte, ChunkVolume-1), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := NewChunk(ChunkCoord{X: 7})
	before := c.EncodeBlocks()
	err := c.LoadFrom(path, ChunkCoord{X: 1})
	if !errors.Is(err, ErrChunkFileSize) {
		t.Fatalf("expected size error, got %v", err)
	}
	if !bytes.Equal(before, c.EncodeBlocks()) {
		t.Fatal("expected materials to be untouched")
	}
	if c.Offset() != (ChunkCoord{X: 7}) {
		t.Fatalf("expected offset to be untouched, got %v", c.Offset())
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := NewChunk(ChunkCoord{})
	err := c.LoadFrom(filepath.Join(t.TempDir(), "missing.bin"), ChunkCoord{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDecodeUnknownMaterialAsAir(t *testing.T) {
	data := make([]byte, ChunkVolume)
	data[0] = 200
	data[1] = MaterialRock.Byte()
	c := NewChunk(ChunkCoord{})
	if err := c.DecodeBlocks(data, ChunkCoord{}); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m, _ := c.Block(0, 0, 0); m != MaterialAir {
		t.Fatalf("expected unknown byte to decode as air, got %v", m)
	}
	if m, _ := c.Block(0, 0, 1); m != MaterialRock {
		t.Fatalf("expected rock, got %v", m)
	}
	if c.DirtyLayerCount() != ChunkHeight {
		t.Fatal("expected decoded chunk to need a full remesh")
	}
}

func TestChunkFileNames(t *testing.T) {
	offset := ChunkCoord{X: -4, Y: 0, Z: 12}
	name := ChunkFileName(offset)
	if name != "chunk_-4_0_12.bin" {
		t.Fatalf("unexpected name %q", name)
	}
	got, ok := ParseChunkFileName(name)
	if !ok || got != offset {
		t.Fatalf("parse %q: %v %v", name, got, ok)
	}
	for _, bad := range []string{"chunk_1_2.bin", "chunk_a_0_0.bin", "chunk_1_0_0.bin.tmp", "world.yaml"} {
		if _, ok := ParseChunkFileName(bad); ok {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestWriteChunkFileReplacesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "world")
	path := ChunkPath(dir, ChunkCoord{})
	if err := WriteChunkFile(path, []byte{1, 2, 3}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteChunkFile(path, []byte{4, 5}); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte{4, 5}) {
		t.Fatalf("unexpected content %v", data)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the chunk file, found %d entries", len(entries))
	}
}

func TestMaterialByteMapping(t *testing.T) {
	want := map[Material]byte{
		MaterialDirt:  0,
		MaterialGrass: 1,
		MaterialRock:  2,
		MaterialWater: 3,
		MaterialAir:   4,
		MaterialDebug: 5,
	}
	for m, b := range want {
		if m.Byte() != b || MaterialFromByte(b) != m {
			t.Fatalf("mapping mismatch for %v", m)
		}
	}
	if !MaterialWater.IsTransparent() || MaterialWater.IsSolid() {
		t.Fatal("expected water to be transparent")
	}
	if m, err := ParseMaterial("rock"); err != nil || m != MaterialRock {
		t.Fatalf("parse rock: %v %v", m, err)
	}
	if _, err := ParseMaterial("lava"); err == nil {
		t.Fatal("expected unknown material name to fail")
	}
}
