package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"voxelterrain/internal/config"
	"voxelterrain/internal/logging"
)

func main() {
	var (
		cfgPath       = flag.String("config", "", "path to terrain configuration file (YAML or JSON)")
		frames        = flag.Int("frames", 600, "number of frames to simulate")
		step          = flag.Float64("step", 0.5, "viewer movement along +x per frame, in blocks")
		digEvery      = flag.Int("dig", 30, "dig the voxel below the viewer every N frames (0 disables)")
		previewDir    = flag.String("preview", "", "write heightmap previews of the viewer's chunk to this directory")
		frameInterval = flag.Duration("interval", 16*time.Millisecond, "wall time per frame")
	)
	flag.Parse()

	if _, err := writeConfigFromEnv(*cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "sync config from environment: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *frames <= 0 {
		logger.Fatal("frames must be positive", zap.Int("frames", *frames))
	}

	ctx, cancel := signalContext(logger)
	defer cancel()

	summary, err := run(ctx, cfg, simOptions{
		frames:        *frames,
		step:          float32(*step),
		digEvery:      *digEvery,
		previewDir:    *previewDir,
		frameInterval: *frameInterval,
	}, logger)
	if err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}
	logger.Info("simulation finished",
		zap.Int("frames", summary.Frames),
		zap.Int("digs", summary.Digs),
		zap.Int("resident", summary.Resident),
		zap.Int("draws", summary.Draws),
		zap.Strings("previews", summary.Previews),
		zap.Stringer("worldID", summary.WorldID))
}

func signalContext(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Saving every edited chunk can take a while; give up eventually.
		time.AfterFunc(30*time.Second, func() {
			logger.Error("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
