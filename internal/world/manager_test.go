package world

import (
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestManager(t *testing.T, offsets ...ChunkCoord) (*Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewManager(zap.New(core))
	for _, offset := range offsets {
		slot := m.AddChunk(flatChunk(offset))
		m.UpdateChunkOffset(slot, offset)
	}
	return m, logs
}

func slotOf(t *testing.T, m *Manager, offset ChunkCoord) int {
	t.Helper()
	slot, ok := m.Slot(offset)
	if !ok {
		t.Fatalf("offset %v is not mapped", offset)
	}
	return slot
}

func TestSplitBlockCoordNegative(t *testing.T) {
	tests := []struct {
		pos   BlockCoord
		chunk ChunkCoord
		local BlockCoord
	}{
		{BlockCoord{X: 0, Y: 0, Z: 0}, ChunkCoord{}, BlockCoord{}},
		{BlockCoord{X: -1, Y: 5, Z: -16}, ChunkCoord{X: -1, Z: -1}, BlockCoord{X: 15, Y: 5, Z: 0}},
		{BlockCoord{X: -17, Y: 511, Z: 31}, ChunkCoord{X: -2, Z: 1}, BlockCoord{X: 15, Y: 511, Z: 15}},
		{BlockCoord{X: 3, Y: -1, Z: 3}, ChunkCoord{Y: -1}, BlockCoord{X: 3, Y: 511, Z: 3}},
	}
	for _, tc := range tests {
		chunk, local := SplitBlockCoord(tc.pos)
		if chunk != tc.chunk || local != tc.local {
			t.Fatalf("%v: got %v %v, want %v %v", tc.pos, chunk, local, tc.chunk, tc.local)
		}
	}
}

func TestSetThenGetBeforeRemesh(t *testing.T) {
	m, _ := newTestManager(t, ChunkCoord{})
	pos := BlockCoord{X: 5, Y: 10, Z: 5}
	if got, ok := m.BlockMaterial(pos); !ok || got != MaterialGrass {
		t.Fatalf("expected grass before the edit, got %v %v", got, ok)
	}
	touched := m.SetBlockMaterial(pos, MaterialAir)
	if len(touched) != 1 {
		t.Fatalf("expected one touched slot, got %v", touched)
	}
	if got, ok := m.BlockMaterial(pos); !ok || got != MaterialAir {
		t.Fatalf("expected air after the edit, got %v %v", got, ok)
	}
}

func TestSetBlockMarksChunkState(t *testing.T) {
	m, _ := newTestManager(t, ChunkCoord{})
	slot := slotOf(t, m, ChunkCoord{})
	h, _ := m.Handle(slot)
	h.Write(func(c *Chunk) {
		c.UpdateMesh(NewAtlas(0), nil)
		c.ClearDirty()
	})

	m.SetBlockMaterial(BlockCoord{X: 7, Y: 20, Z: 7}, MaterialRock)
	h.Read(func(c *Chunk) {
		if !c.Dirty() || !c.NeedsSave() {
			t.Fatalf("expected dirty and needsSave, got %v %v", c.Dirty(), c.NeedsSave())
		}
		r, ok := c.DirtyRange()
		if !ok || r != (LayerRange{Min: 19, Max: 21}) {
			t.Fatalf("unexpected dirty range %+v", r)
		}
	})
}

func TestBorderEditPropagatesToNeighbor(t *testing.T) {
	m, _ := newTestManager(t, ChunkCoord{}, ChunkCoord{X: 1})
	pos := BlockCoord{X: 16, Y: 10, Z: 4}

	touched := m.SetBlockMaterial(pos, MaterialAir)
	origin := slotOf(t, m, ChunkCoord{})
	if !slices.Contains(touched, origin) {
		t.Fatalf("expected neighbor slot %d in %v", origin, touched)
	}

	h, _ := m.Handle(origin)
	h.Read(func(c *Chunk) {
		got, ok := c.LocalMaterial(BlockCoord{X: ChunkArea, Y: 10, Z: 4})
		want, _ := m.BlockMaterial(pos)
		if !ok || got != want {
			t.Fatalf("padding %v disagrees with owner %v", got, want)
		}
		if !c.Dirty() || !c.NeedsSave() {
			t.Fatal("expected neighbor to be dirty and flagged for save")
		}
	})
}

func TestCornerEditTouchesBothNeighbors(t *testing.T) {
	m, _ := newTestManager(t, ChunkCoord{}, ChunkCoord{X: -1}, ChunkCoord{Z: -1}, ChunkCoord{X: -1, Z: -1})
	touched := m.SetBlockMaterial(BlockCoord{X: 0, Y: 3, Z: 0}, MaterialWater)
	if len(touched) != 3 {
		t.Fatalf("expected owner plus two neighbors, got %v", touched)
	}
	if slices.Contains(touched, slotOf(t, m, ChunkCoord{X: -1, Z: -1})) {
		t.Fatal("diagonal neighbor should not be touched")
	}
}

func TestEditOutsideResidentChunks(t *testing.T) {
	m, logs := newTestManager(t, ChunkCoord{})
	if touched := m.SetBlockMaterial(BlockCoord{X: 100, Y: 3, Z: 0}, MaterialRock); touched != nil {
		t.Fatalf("expected no touched slots, got %v", touched)
	}
	if _, ok := m.BlockMaterial(BlockCoord{X: 100, Y: 3, Z: 0}); ok {
		t.Fatal("expected lookup in a missing chunk to fail")
	}
	if _, ok := m.BlockMaterial(BlockCoord{X: 1, Y: ChunkHeight, Z: 1}); ok {
		t.Fatal("expected lookup above the chunk to fail")
	}
	if logs.FilterMessage("block edit in non-resident chunk").Len() != 1 {
		t.Fatalf("expected a debug log, got %v", logs.All())
	}
}

func TestUpdateChunkOffsetKeepsMappingUnique(t *testing.T) {
	m, logs := newTestManager(t)
	a := m.AddChunk(NewChunk(ChunkCoord{}))
	b := m.AddChunk(NewChunk(ChunkCoord{}))
	if m.IsMapped(a) || m.OffsetOf(b) != UnmappedCoord {
		t.Fatal("expected new slots to be unmapped")
	}

	target := ChunkCoord{X: 3, Z: 3}
	m.UpdateChunkOffset(a, target)
	m.UpdateChunkOffset(b, target)
	if got := slotOf(t, m, target); got != b {
		t.Fatalf("expected latest slot %d, got %d", b, got)
	}
	if m.IsMapped(a) {
		t.Fatal("expected previous slot to be unbound")
	}
	if m.Mapped() != 1 {
		t.Fatalf("expected one mapping, got %d", m.Mapped())
	}
	if logs.FilterMessage("offset already mapped, unbinding previous slot").Len() != 1 {
		t.Fatal("expected duplicate binding warning")
	}

	m.UpdateChunkOffset(b, ChunkCoord{X: 4})
	if _, ok := m.Slot(target); ok {
		t.Fatal("expected old offset to be released on rebinding")
	}
	h, _ := m.Handle(b)
	h.Read(func(c *Chunk) {
		if c.Offset() != (ChunkCoord{X: 4}) {
			t.Fatalf("expected chunk offset to follow mapping, got %v", c.Offset())
		}
	})

	m.RemoveChunkFromMap(b)
	if m.Mapped() != 0 || m.IsMapped(b) {
		t.Fatal("expected slot to be unmapped")
	}
}

func TestStitchPaddingRepairsStaleBorder(t *testing.T) {
	m, _ := newTestManager(t, ChunkCoord{})
	pos := BlockCoord{X: 15, Y: 10, Z: 6}
	m.SetBlockMaterial(pos, MaterialAir)

	// The neighbor arrives after the edit and still carries generated padding.
	late := m.AddChunk(flatChunk(ChunkCoord{X: 1}))
	m.UpdateChunkOffset(late, ChunkCoord{X: 1})
	h, _ := m.Handle(late)
	h.Write(func(c *Chunk) {
		c.UpdateMesh(NewAtlas(0), nil)
		c.ClearDirty()
	})

	touched := m.StitchPadding(late)
	if !slices.Contains(touched, late) {
		t.Fatalf("expected late slot to be touched, got %v", touched)
	}
	h.Read(func(c *Chunk) {
		got, _ := c.LocalMaterial(BlockCoord{X: -1, Y: 10, Z: 6})
		if got != MaterialAir {
			t.Fatalf("expected stitched padding to be air, got %v", got)
		}
		if !c.Dirty() {
			t.Fatal("expected stitched chunk to be dirty")
		}
		r, ok := c.DirtyRange()
		if !ok || r != (LayerRange{Min: 10, Max: 10}) {
			t.Fatalf("unexpected dirty range %+v", r)
		}
	})
}

func TestStitchPaddingNoopForConsistentNeighbors(t *testing.T) {
	m, _ := newTestManager(t, ChunkCoord{}, ChunkCoord{X: 1}, ChunkCoord{Z: -1})
	if touched := m.StitchPadding(slotOf(t, m, ChunkCoord{})); len(touched) != 0 {
		t.Fatalf("expected no changes, got %v", touched)
	}
}
