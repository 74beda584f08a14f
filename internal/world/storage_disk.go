package world

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrChunkFileSize is returned when a chunk file does not hold exactly
// ChunkVolume bytes.
var ErrChunkFileSize = errors.New("chunk file has wrong size")

// ChunkFileName names the file holding the chunk at offset.
func ChunkFileName(offset ChunkCoord) string {
	return fmt.Sprintf("chunk_%d_%d_%d.bin", offset.X, offset.Y, offset.Z)
}

// ParseChunkFileName extracts the offset from a name built by ChunkFileName.
func ParseChunkFileName(name string) (ChunkCoord, bool) {
	trimmed, ok := strings.CutPrefix(name, "chunk_")
	if !ok {
		return ChunkCoord{}, false
	}
	trimmed, ok = strings.CutSuffix(trimmed, ".bin")
	if !ok {
		return ChunkCoord{}, false
	}
	parts := strings.Split(trimmed, "_")
	if len(parts) != 3 {
		return ChunkCoord{}, false
	}
	var values [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return ChunkCoord{}, false
		}
		values[i] = v
	}
	return ChunkCoord{X: values[0], Y: values[1], Z: values[2]}, true
}

// ChunkPath joins a world directory with the chunk's file name.
func ChunkPath(dir string, offset ChunkCoord) string {
	return filepath.Join(dir, ChunkFileName(offset))
}

// EncodeBlocks serializes the padded voxel array, one material byte per
// voxel in storage order.
func (c *Chunk) EncodeBlocks() []byte {
	buf := make([]byte, len(c.blocks))
	for i, b := range c.blocks {
		buf[i] = b.Material.Byte()
	}
	return buf
}

// DecodeBlocks replaces the voxel array with data and rebinds the chunk to
// offset. The chunk is left untouched unless data has the exact size.
func (c *Chunk) DecodeBlocks(data []byte, offset ChunkCoord) error {
	if len(data) != len(c.blocks) {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrChunkFileSize, len(data), len(c.blocks))
	}
	for i, v := range data {
		c.blocks[i].Material = MaterialFromByte(v)
	}
	c.offset = offset
	c.dirty = false
	c.needsSave = false
	c.dirtyRange = LayerRange{}
	c.hasDirtyRange = false
	c.layerDirty.setRange(0, ChunkHeight-1)
	return nil
}

// SaveTo writes the chunk's voxels to path, creating parent directories.
func (c *Chunk) SaveTo(path string) error {
	return WriteChunkFile(path, c.EncodeBlocks())
}

// LoadFrom reads a chunk file into c. A missing, unreadable or wrongly sized
// file leaves c untouched.
func (c *Chunk) LoadFrom(path string, offset ChunkCoord) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read chunk file: %w", err)
	}
	if err := c.DecodeBlocks(data, offset); err != nil {
		return fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteChunkFile stores data at path through a temporary file and a rename,
// so readers never observe a partially written chunk.
func WriteChunkFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chunk directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write chunk file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close chunk file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename chunk file: %w", err)
	}
	return nil
}
