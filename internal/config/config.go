package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"voxelterrain/internal/terrain"
	"voxelterrain/internal/world"
)

//go:embed config.schema.json
var schemaSource string

var schema = jsonschema.MustCompileString("config.schema.json", schemaSource)

// Config captures everything needed to run the terrain core for one world.
type Config struct {
	World    WorldConfig    `yaml:"world" json:"world"`
	Graphics GraphicsConfig `yaml:"graphics" json:"graphics"`
	Terrain  TerrainConfig  `yaml:"terrain" json:"terrain"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

type WorldConfig struct {
	Name     string `yaml:"name" json:"name"`
	Seed     int64  `yaml:"seed" json:"seed"`
	Biome    string `yaml:"biome" json:"biome"`
	SaveRoot string `yaml:"saveRoot" json:"saveRoot"` // parent of every world directory
}

type GraphicsConfig struct {
	RenderDistanceChunks int `yaml:"renderDistanceChunks" json:"renderDistanceChunks"`
}

// TerrainConfig tunes streaming. Capacities are element counts, not bytes.
type TerrainConfig struct {
	JobsInFlight        int     `yaml:"jobsInFlight" json:"jobsInFlight"`
	DirtyChunksPerFrame int     `yaml:"dirtyChunksPerFrame" json:"dirtyChunksPerFrame"`
	MinVertexCap        int     `yaml:"minVertexCap" json:"minVertexCap"`
	MinIndexCap         int     `yaml:"minIndexCap" json:"minIndexCap"`
	LandLevel           int     `yaml:"landLevel" json:"landLevel"`
	AtlasSize           float32 `yaml:"atlasSize" json:"atlasSize"`
	DispatchRate        float64 `yaml:"dispatchRate" json:"dispatchRate"` // jobs per second, 0 = unlimited
	DispatchBurst       int     `yaml:"dispatchBurst" json:"dispatchBurst"`
}

type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
}

// Load reads configuration from a YAML (or JSON) file. An empty path returns
// defaults. Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// validateSchema checks the raw document against the embedded schema. YAML
// is converted to its JSON form first so numbers and maps have the shapes
// the validator expects.
func validateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert to json: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("convert to json: %w", err)
	}
	return schema.Validate(v)
}

func Default() *Config {
	return &Config{
		World: WorldConfig{
			Name:     "default",
			Seed:     10,
			Biome:    terrain.Prairie.Name,
			SaveRoot: "saves",
		},
		Graphics: GraphicsConfig{
			RenderDistanceChunks: 32,
		},
		Terrain: TerrainConfig{
			JobsInFlight:        8,
			DirtyChunksPerFrame: 2,
			MinVertexCap:        4096,
			MinIndexCap:         8192,
			LandLevel:           9,
			AtlasSize:           world.DefaultAtlasSize,
			DispatchRate:        0,
			DispatchBurst:       8,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func (c *Config) Validate() error {
	if c.World.Name == "" {
		return errors.New("world.name must be set")
	}
	if strings.ContainsAny(c.World.Name, `/\`) || c.World.Name == "." || c.World.Name == ".." {
		return errors.New("world.name must be a plain directory name")
	}
	if c.World.SaveRoot == "" {
		return errors.New("world.saveRoot must be set")
	}
	if _, ok := terrain.LookupBiome(c.World.Biome); !ok {
		return fmt.Errorf("world.biome %q is unknown (known: %s)", c.World.Biome, strings.Join(terrain.BiomeNames(), ", "))
	}
	if c.Graphics.RenderDistanceChunks < 1 {
		return errors.New("graphics.renderDistanceChunks must be positive")
	}
	if c.Terrain.JobsInFlight < 1 || c.Terrain.DirtyChunksPerFrame < 1 {
		return errors.New("terrain budgets must be positive")
	}
	if c.Terrain.MinVertexCap < 1 || c.Terrain.MinIndexCap < 1 {
		return errors.New("terrain buffer capacities must be positive")
	}
	if c.Terrain.LandLevel < 0 || c.Terrain.LandLevel >= world.ChunkHeight {
		return fmt.Errorf("terrain.landLevel must be within [0, %d]", world.ChunkHeight-1)
	}
	if c.Terrain.AtlasSize <= 0 {
		return errors.New("terrain.atlasSize must be positive")
	}
	if c.Terrain.DispatchRate < 0 {
		return errors.New("terrain.dispatchRate cannot be negative")
	}
	return nil
}

// WorldDir is the directory holding the configured world's files.
func (c *Config) WorldDir() string {
	return filepath.Join(c.World.SaveRoot, c.World.Name)
}
