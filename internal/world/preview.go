package world

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	previewScale        = 8
	previewAmbientLight = 0.35
)

var materialColors = map[Material]string{
	MaterialDirt:  "#7a5230",
	MaterialGrass: "#4f9a3a",
	MaterialRock:  "#7d7d7d",
	MaterialWater: "#2f6fd0",
	MaterialDebug: "#ff00ff",
}

// RenderHeightmap draws a top-down image of the chunk interior. Each column
// is colored by its surface material and shaded by its height relative to
// the rest of the chunk.
func RenderHeightmap(c *Chunk, scale int) *image.NRGBA {
	if scale <= 0 {
		scale = 1
	}
	img := image.NewNRGBA(image.Rect(0, 0, ChunkArea*scale, ChunkArea*scale))

	var heights [ChunkArea][ChunkArea]int
	var mats [ChunkArea][ChunkArea]Material
	lo, hi := ChunkHeight, 0
	for x := 0; x < ChunkArea; x++ {
		for z := 0; z < ChunkArea; z++ {
			y, m, ok := c.Surface(x, z)
			if !ok {
				m = MaterialAir
			}
			heights[x][z] = y
			mats[x][z] = m
			lo = min(lo, y)
			hi = max(hi, y)
		}
	}

	for x := 0; x < ChunkArea; x++ {
		for z := 0; z < ChunkArea; z++ {
			col := color.NRGBA{A: 255}
			if mats[x][z] != MaterialAir {
				factor := 1.0
				if hi > lo {
					factor = previewAmbientLight + (1-previewAmbientLight)*float64(heights[x][z]-lo)/float64(hi-lo)
				}
				col = applyLighting(resolveMaterialColor(mats[x][z]), factor)
			}
			for px := 0; px < scale; px++ {
				for pz := 0; pz < scale; pz++ {
					img.SetNRGBA(x*scale+px, z*scale+pz, col)
				}
			}
		}
	}
	return img
}

// SaveHeightmapPreview writes RenderHeightmap output for c into outputDir
// and returns the file path.
func SaveHeightmapPreview(c *Chunk, outputDir string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chunk is nil")
	}
	if err := ensurePreviewDir(outputDir); err != nil {
		return "", err
	}
	offset := c.Offset()
	path := filepath.Join(outputDir, fmt.Sprintf("chunk_%d_%d.png", offset.X, offset.Z))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, RenderHeightmap(c, previewScale)); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return path, nil
}

func resolveMaterialColor(m Material) color.NRGBA {
	if col, ok := parseHexColor(materialColors[m]); ok {
		return col
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	factor = math.Max(0, math.Min(1, factor))
	return color.NRGBA{
		R: uint8(math.Round(float64(base.R) * factor)),
		G: uint8(math.Round(float64(base.G) * factor)),
		B: uint8(math.Round(float64(base.B) * factor)),
		A: 255,
	}
}

func ensurePreviewDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory is empty")
	}
	return os.MkdirAll(dir, 0o755)
}
