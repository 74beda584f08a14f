package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"voxelterrain/internal/persist"
	"voxelterrain/internal/world"
)

func seedWorld(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "w")
	if _, _, err := persist.LoadOrCreateMeta(dir, "w", 5, "prairie"); err != nil {
		t.Fatalf("meta: %v", err)
	}
	offset := world.ChunkCoord{X: 1, Z: 1}
	if err := world.NewChunk(offset).SaveTo(world.ChunkPath(dir, offset)); err != nil {
		t.Fatalf("save chunk: %v", err)
	}
	catalog, err := persist.OpenCatalog(filepath.Join(dir, persist.CatalogFileName))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if err := catalog.RecordSave(context.Background(), offset, world.ChunkVolume, time.Now()); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := catalog.Close(); err != nil {
		t.Fatalf("close catalog: %v", err)
	}
	return dir
}

func TestArchiveAndRestore(t *testing.T) {
	logger := zaptest.NewLogger(t)
	src := seedWorld(t)
	out := filepath.Join(t.TempDir(), "backups", "w.tar.zst")
	if err := runCommand("archive", []string{"-dir", src, "-out", out}, nil, logger); err != nil {
		t.Fatalf("archive: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "restored")
	if err := runCommand("restore", []string{"-in", out, "-dir", dst}, nil, logger); err != nil {
		t.Fatalf("restore: %v", err)
	}

	var stdout bytes.Buffer
	if err := runCommand("stats", []string{"-dir", dst}, &stdout, logger); err != nil {
		t.Fatalf("stats: %v", err)
	}
	report := stdout.String()
	if !strings.Contains(report, "saved chunks: 1") || !strings.Contains(report, "seed=5") {
		t.Fatalf("unexpected stats report:\n%s", report)
	}
}

func TestStatsRejectsNonWorldDir(t *testing.T) {
	var stdout bytes.Buffer
	if err := runCommand("stats", []string{"-dir", t.TempDir()}, &stdout, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected an error for a directory without world metadata")
	}
}

func TestUnknownCommand(t *testing.T) {
	if err := runCommand("explode", nil, nil, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}

func TestArchiveRequiresOutput(t *testing.T) {
	if err := runCommand("archive", []string{"-dir", t.TempDir()}, nil, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected an error without -out")
	}
}
