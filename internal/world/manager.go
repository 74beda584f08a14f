package world

import (
	"sync"

	"go.uber.org/zap"
)

// Handle guards one chunk slot with its own reader/writer lock.
type Handle struct {
	mu    sync.RWMutex
	chunk *Chunk
}

// Read runs fn while holding the slot's read lock.
func (h *Handle) Read(fn func(c *Chunk)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(h.chunk)
}

// Write runs fn while holding the slot's write lock.
func (h *Handle) Write(fn func(c *Chunk)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.chunk)
}

// Manager owns a fixed arena of chunk slots and the mapping between chunk
// offsets and slot indices. Chunk contents are locked per slot; the mapping
// has its own lock.
type Manager struct {
	logger  *zap.Logger
	handles []*Handle

	mu      sync.RWMutex
	offsets []ChunkCoord
	slots   map[ChunkCoord]int
}

func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger: logger.Named("chunks"),
		slots:  make(map[ChunkCoord]int),
	}
}

// AddChunk appends c as a new, unmapped slot and returns its index.
func (m *Manager) AddChunk(c *Chunk) int {
	c.SetOffset(UnmappedCoord)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = append(m.handles, &Handle{chunk: c})
	m.offsets = append(m.offsets, UnmappedCoord)
	return len(m.handles) - 1
}

// Len returns the number of slots.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handles)
}

// Handle returns the lockable cell of a slot.
func (m *Manager) Handle(slot int) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if slot < 0 || slot >= len(m.handles) {
		return nil, false
	}
	return m.handles[slot], true
}

// Slot returns the slot currently mapped to offset.
func (m *Manager) Slot(offset ChunkCoord) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.slots[offset]
	return slot, ok
}

// OffsetOf returns the offset mapped to slot, or UnmappedCoord.
func (m *Manager) OffsetOf(slot int) ChunkCoord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if slot < 0 || slot >= len(m.offsets) {
		return UnmappedCoord
	}
	return m.offsets[slot]
}

// IsMapped reports whether slot is bound to an offset.
func (m *Manager) IsMapped(slot int) bool {
	return m.OffsetOf(slot) != UnmappedCoord
}

// Mapped returns the number of slots bound to an offset.
func (m *Manager) Mapped() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// MappedOffsets returns a copy of the offset to slot mapping.
func (m *Manager) MappedOffsets() map[ChunkCoord]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[ChunkCoord]int, len(m.slots))
	for offset, slot := range m.slots {
		out[offset] = slot
	}
	return out
}

// UpdateChunkOffset binds slot to offset, dropping any previous binding of
// either. The chunk's own offset is updated to match.
func (m *Manager) UpdateChunkOffset(slot int, offset ChunkCoord) {
	m.mu.Lock()
	if slot < 0 || slot >= len(m.handles) {
		m.mu.Unlock()
		return
	}
	if old := m.offsets[slot]; old != UnmappedCoord {
		delete(m.slots, old)
	}
	if other, ok := m.slots[offset]; ok && other != slot {
		m.logger.Warn("offset already mapped, unbinding previous slot",
			zap.Stringer("offset", offset), zap.Int("slot", slot), zap.Int("previous", other))
		m.offsets[other] = UnmappedCoord
	}
	m.offsets[slot] = offset
	m.slots[offset] = slot
	h := m.handles[slot]
	m.mu.Unlock()

	h.Write(func(c *Chunk) { c.SetOffset(offset) })
}

// RemoveChunkFromMap unbinds slot. The chunk keeps its content and offset
// until it is reused.
func (m *Manager) RemoveChunkFromMap(slot int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot < 0 || slot >= len(m.offsets) {
		return
	}
	if old := m.offsets[slot]; old != UnmappedCoord {
		if m.slots[old] == slot {
			delete(m.slots, old)
		}
	}
	m.offsets[slot] = UnmappedCoord
}

// BlockMaterial returns the material at a world position, if its chunk is
// resident.
func (m *Manager) BlockMaterial(pos BlockCoord) (Material, bool) {
	offset, local := SplitBlockCoord(pos)
	if !InChunkBounds(local) {
		m.logger.Debug("block query out of bounds", zap.Stringer("pos", pos))
		return MaterialAir, false
	}
	slot, ok := m.Slot(offset)
	if !ok {
		return MaterialAir, false
	}
	h, _ := m.Handle(slot)
	var mat Material
	h.Read(func(c *Chunk) {
		mat, ok = c.LocalMaterial(local)
	})
	return mat, ok
}

// SetBlockMaterial writes a voxel and mirrors it into the padding of
// resident neighbors when it sits on a chunk border. It returns every slot
// whose content changed. Positions in non-resident chunks are ignored.
func (m *Manager) SetBlockMaterial(pos BlockCoord, mat Material) []int {
	offset, local := SplitBlockCoord(pos)
	if !InChunkBounds(local) {
		m.logger.Debug("block edit out of bounds", zap.Stringer("pos", pos))
		return nil
	}
	slot, ok := m.Slot(offset)
	if !ok {
		m.logger.Debug("block edit in non-resident chunk",
			zap.Stringer("pos", pos), zap.Stringer("offset", offset))
		return nil
	}
	h, _ := m.Handle(slot)
	h.Write(func(c *Chunk) {
		c.setLocalMaterial(local, mat)
		c.MarkDirty()
		c.SetNeedsSave(true)
		c.MarkDirtyY(local.Y)
	})

	touched := []int{slot}
	for _, edge := range borderMirrors(local) {
		neighbor, ok := m.Slot(offset.Add(edge.delta))
		if !ok {
			continue
		}
		nh, _ := m.Handle(neighbor)
		nh.Write(func(c *Chunk) {
			if c.setLocalMaterial(edge.local, mat) {
				c.MarkDirtyY(edge.local.Y)
				c.SetNeedsSave(true)
			}
			c.MarkDirty()
		})
		touched = append(touched, neighbor)
	}
	return touched
}

type borderMirror struct {
	delta ChunkCoord
	local BlockCoord
}

// borderMirrors lists the neighbor chunks whose padding mirrors the interior
// voxel at local, with the voxel's position in each neighbor's frame.
func borderMirrors(local BlockCoord) []borderMirror {
	var out []borderMirror
	if local.X == 0 {
		out = append(out, borderMirror{delta: ChunkCoord{X: -1}, local: BlockCoord{X: ChunkArea, Y: local.Y, Z: local.Z}})
	}
	if local.X == ChunkArea-1 {
		out = append(out, borderMirror{delta: ChunkCoord{X: 1}, local: BlockCoord{X: -1, Y: local.Y, Z: local.Z}})
	}
	if local.Z == 0 {
		out = append(out, borderMirror{delta: ChunkCoord{Z: -1}, local: BlockCoord{X: local.X, Y: local.Y, Z: ChunkArea}})
	}
	if local.Z == ChunkArea-1 {
		out = append(out, borderMirror{delta: ChunkCoord{Z: 1}, local: BlockCoord{X: local.X, Y: local.Y, Z: -1}})
	}
	return out
}
