package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"voxelterrain/internal/config"
	"voxelterrain/internal/logging"
	"voxelterrain/internal/persist"
)

const usage = `usage: worldarchive <command> [flags]

commands:
  archive  -config FILE | -dir DIR  -out FILE    write a zstd tar of a world directory
  restore  -in FILE -dir DIR                     unpack an archive into a world directory
  stats    -config FILE | -dir DIR  [-limit N]   print the save catalog of a world
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	logger, err := logging.New(config.LoggingConfig{Level: "info"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := runCommand(os.Args[1], os.Args[2:], os.Stdout, logger); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Fatal("worldarchive failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func runCommand(name string, args []string, stdout io.Writer, logger *zap.Logger) error {
	switch name {
	case "archive":
		return archiveCommand(args, logger)
	case "restore":
		return restoreCommand(args, logger)
	case "stats":
		return statsCommand(args, stdout)
	default:
		return fmt.Errorf("unknown command %q\n%s", name, usage)
	}
}

// worldDirFlags resolves the world directory from -dir, or from the world
// named in -config when -dir is empty.
type worldDirFlags struct {
	dir     string
	cfgPath string
}

func (w *worldDirFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&w.dir, "dir", "", "world directory")
	fs.StringVar(&w.cfgPath, "config", "", "terrain configuration naming the world")
}

func (w *worldDirFlags) resolve() (string, error) {
	if w.dir != "" {
		return w.dir, nil
	}
	cfg, err := config.Load(w.cfgPath)
	if err != nil {
		return "", err
	}
	return cfg.WorldDir(), nil
}

func archiveCommand(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	var wd worldDirFlags
	wd.register(fs)
	out := fs.String("out", "", "archive file to write")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("-out must be set")
	}
	dir, err := wd.resolve()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	stats, err := persist.WriteArchive(dir, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close archive: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(*out)
		return err
	}
	logger.Info("world archived",
		zap.String("world", dir), zap.String("archive", *out),
		zap.Int("files", stats.Files), zap.Int64("bytes", stats.Bytes))
	return nil
}

func restoreCommand(args []string, logger *zap.Logger) error {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	in := fs.String("in", "", "archive file to read")
	dir := fs.String("dir", "", "world directory to restore into")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *dir == "" {
		return errors.New("-in and -dir must be set")
	}
	f, err := os.Open(*in)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	stats, err := persist.RestoreArchive(f, *dir)
	if err != nil {
		return err
	}
	logger.Info("world restored",
		zap.String("archive", *in), zap.String("world", *dir),
		zap.Int("files", stats.Files), zap.Int64("bytes", stats.Bytes))
	return nil
}

func statsCommand(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	var wd worldDirFlags
	wd.register(fs)
	limit := fs.Int("limit", 10, "number of most recent saves to list (0 lists all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir, err := wd.resolve()
	if err != nil {
		return err
	}

	ctx := context.Background()
	meta, _, err := loadMeta(dir)
	if err != nil {
		return err
	}
	catalog, err := persist.OpenCatalog(filepath.Join(dir, persist.CatalogFileName))
	if err != nil {
		return err
	}
	defer catalog.Close()

	total, err := catalog.Count(ctx)
	if err != nil {
		return err
	}
	entries, err := catalog.List(ctx, *limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "world %s (%s) seed=%d biome=%s created=%s\n",
		meta.Name, meta.ID, meta.Seed, meta.Biome, meta.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(stdout, "saved chunks: %d\n", total)
	for _, e := range entries {
		fmt.Fprintf(stdout, "  %-16s %8d bytes  saves=%-4d %s\n",
			e.Offset, e.Bytes, e.SaveCount, e.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// loadMeta reads the world metadata without creating it.
func loadMeta(dir string) (persist.WorldMeta, bool, error) {
	if _, err := os.Stat(filepath.Join(dir, persist.MetaFileName)); err != nil {
		return persist.WorldMeta{}, false, fmt.Errorf("%s is not a world directory: %w", dir, err)
	}
	return persist.LoadOrCreateMeta(dir, "", 0, "")
}
