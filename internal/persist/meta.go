package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"voxelterrain/internal/world"
)

// MetaFileName is the metadata file inside a world directory.
const MetaFileName = "world.yaml"

// WorldMeta identifies a world directory and pins the parameters its chunk
// files were written with.
type WorldMeta struct {
	ID          uuid.UUID `yaml:"id"`
	Name        string    `yaml:"name"`
	Seed        int64     `yaml:"seed"`
	Biome       string    `yaml:"biome"`
	ChunkHeight int       `yaml:"chunkHeight"`
	ChunkArea   int       `yaml:"chunkArea"`
	CreatedAt   time.Time `yaml:"createdAt"`
}

// ErrChunkDimensions reports a world written with a different chunk layout.
var ErrChunkDimensions = errors.New("world chunk dimensions do not match")

// LoadOrCreateMeta reads dir/world.yaml, or writes a fresh one from the given
// name, seed and biome when none exists. A stored world keeps its own seed
// and biome; created reports whether the file was new.
func LoadOrCreateMeta(dir, name string, seed int64, biome string) (meta WorldMeta, created bool, err error) {
	path := filepath.Join(dir, MetaFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &meta); err != nil {
			return WorldMeta{}, false, fmt.Errorf("parse %s: %w", path, err)
		}
		if meta.ChunkHeight != world.ChunkHeight || meta.ChunkArea != world.ChunkArea {
			return WorldMeta{}, false, fmt.Errorf("%w: %s has %dx%d, want %dx%d", ErrChunkDimensions,
				path, meta.ChunkArea, meta.ChunkHeight, world.ChunkArea, world.ChunkHeight)
		}
		return meta, false, nil
	case errors.Is(err, fs.ErrNotExist):
	default:
		return WorldMeta{}, false, fmt.Errorf("read %s: %w", path, err)
	}

	meta = WorldMeta{
		ID:          uuid.New(),
		Name:        name,
		Seed:        seed,
		Biome:       biome,
		ChunkHeight: world.ChunkHeight,
		ChunkArea:   world.ChunkArea,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := SaveMeta(dir, meta); err != nil {
		return WorldMeta{}, false, err
	}
	return meta, true, nil
}

// SaveMeta writes meta to dir/world.yaml.
func SaveMeta(dir string, meta WorldMeta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode world meta: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create world dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetaFileName), data, 0o644); err != nil {
		return fmt.Errorf("write world meta: %w", err)
	}
	return nil
}
