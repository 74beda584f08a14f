package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"voxelterrain/internal/config"
	"voxelterrain/internal/persist"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.World.SaveRoot = t.TempDir()
	cfg.World.Name = "sim"
	cfg.Graphics.RenderDistanceChunks = 2
	return cfg
}

func TestRunCreatesWorldAndReusesIt(t *testing.T) {
	cfg := testConfig(t)
	opts := simOptions{frames: 40, step: 0.25, digEvery: 10, frameInterval: 2 * time.Millisecond}

	first, err := run(context.Background(), cfg, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first.MetaCreated || first.Frames != 40 {
		t.Fatalf("unexpected first summary %+v", first)
	}

	cfg.World.Seed = 999
	second, err := run(context.Background(), cfg, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.MetaCreated || second.WorldID != first.WorldID {
		t.Fatalf("expected the stored world to be reused, got %+v", second)
	}
}

func TestRunRecordsDigsInCatalog(t *testing.T) {
	cfg := testConfig(t)
	opts := simOptions{frames: 300, digEvery: 20, frameInterval: 2 * time.Millisecond}

	summary, err := run(context.Background(), cfg, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Digs == 0 {
		t.Skip("terrain never became resident within the frame budget")
	}

	catalog, err := persist.OpenCatalog(filepath.Join(cfg.WorldDir(), persist.CatalogFileName))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	defer catalog.Close()
	n, err := catalog.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the dug chunk in the catalog, got %d entries", n)
	}
}

func TestRunWritesPreview(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Join(t.TempDir(), "previews")
	opts := simOptions{frames: 200, frameInterval: 2 * time.Millisecond, previewDir: dir}

	summary, err := run(context.Background(), cfg, opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.Previews) == 0 {
		t.Skip("viewer chunk never became resident within the frame budget")
	}
	if _, err := os.Stat(summary.Previews[0]); err != nil {
		t.Fatalf("expected preview file: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := run(ctx, testConfig(t), simOptions{frames: 100}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Frames != 0 {
		t.Fatalf("expected no frames after cancel, got %d", summary.Frames)
	}
}
