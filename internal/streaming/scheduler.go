package streaming

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"voxelterrain/internal/world"
)

const noSlot = -1

// Scheduler streams a square window of chunks around a moving viewer. It
// owns a fixed set of slots (chunk plus buffer); slots move between Free,
// Generating and Resident and are reused instead of reallocated.
//
// Update, the edit methods and Draw must be called from one goroutine.
// Generation and saving run on their own workers.
type Scheduler struct {
	cfg       Config
	logger    *zap.Logger
	atlas     world.Atlas
	newBuffer BufferFactory
	recorder  SaveRecorder

	chunks  *world.Manager
	buffers []MeshBuffer

	viewSize   int
	origin     world.ChunkCoord
	center     world.ChunkCoord
	window     []int
	slotWindow []int
	free       []int
	pending    map[int]struct{}
	dirtyQueue []int
	dirtySet   map[int]struct{}

	gen     *generator
	saver   *saver
	limiter *rate.Limiter
	closed  bool
}

// New allocates every slot, starts the generation worker and the save
// worker. noise drives terrain for chunks that have no file on disk.
func New(cfg Config, noise world.HeightSampler, opts ...Option) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("scheduler config: %w", err)
	}
	if noise == nil {
		return nil, errors.New("scheduler config: noise sampler is nil")
	}

	s := &Scheduler{
		cfg:       cfg,
		logger:    zap.NewNop(),
		atlas:     world.NewAtlas(cfg.AtlasSize),
		newBuffer: func(v, i int) MeshBuffer { return NewHostBuffer(v, i) },
		viewSize:  max(cfg.RenderDistance, 2),
		pending:   make(map[int]struct{}),
		dirtySet:  make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("terrain")
	s.chunks = world.NewManager(s.logger)

	capacity := s.viewSize * s.viewSize
	s.buffers = make([]MeshBuffer, 0, capacity)
	s.window = make([]int, capacity)
	s.slotWindow = make([]int, capacity)
	s.free = make([]int, 0, capacity)
	for i := 0; i < capacity; i++ {
		slot := s.chunks.AddChunk(world.NewChunk(world.UnmappedCoord))
		s.buffers = append(s.buffers, s.newBuffer(cfg.MinVertexCap, cfg.MinIndexCap))
		s.window[i] = noSlot
		s.slotWindow[slot] = noSlot
		s.free = append(s.free, slot)
	}
	s.origin = s.originFor(s.center)

	if cfg.DispatchRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.DispatchRate), max(cfg.DispatchBurst, 1))
	}

	s.gen = newGenerator(capacity, cfg.WorldDir, noise, cfg.Biome, cfg.LandLevel, s.atlas, s.logger.Named("generator"))
	s.saver = newSaver(cfg.WorldDir, s.recorder, s.logger.Named("saver"))
	go s.gen.run()

	s.logger.Info("terrain scheduler started",
		zap.Int("slots", capacity), zap.Int("viewSize", s.viewSize),
		zap.String("worldDir", cfg.WorldDir), zap.String("biome", cfg.Biome.Name))
	return s, nil
}

func (s *Scheduler) originFor(center world.ChunkCoord) world.ChunkCoord {
	return world.ChunkCoord{X: center.X - s.viewSize/2, Z: center.Z - s.viewSize/2}
}

func (s *Scheduler) windowIndex(origin, offset world.ChunkCoord) (int, bool) {
	dx, dz := offset.X-origin.X, offset.Z-origin.Z
	if offset.Y != 0 || dx < 0 || dz < 0 || dx >= s.viewSize || dz >= s.viewSize {
		return 0, false
	}
	return dz*s.viewSize + dx, true
}

func (s *Scheduler) windowOffset(origin world.ChunkCoord, index int) world.ChunkCoord {
	return world.ChunkCoord{X: origin.X + index%s.viewSize, Z: origin.Z + index/s.viewSize}
}

// Update advances streaming by one frame. It never blocks on the workers.
func (s *Scheduler) Update(viewer mgl32.Vec3) {
	if s.closed {
		return
	}
	s.center = world.ChunkOfWorld(viewer.X(), viewer.Z())
	origin := s.originFor(s.center)
	moved := origin != s.origin
	if moved {
		s.shiftWindow(origin)
	}

	s.saver.reap()
	s.processReady()
	s.processDirty()
	if moved || s.hasMissing() {
		s.loadMissing()
	}
}

// shiftWindow re-indexes resident slots for a new origin and evicts the ones
// that fell out. Slots with a job in flight are left alone until it lands.
func (s *Scheduler) shiftWindow(origin world.ChunkCoord) {
	previous := s.origin
	next := make([]int, len(s.window))
	for i := range next {
		next[i] = noSlot
	}
	s.origin = origin

	for i, slot := range s.window {
		if slot == noSlot {
			continue
		}
		s.slotWindow[slot] = noSlot
		if j, ok := s.windowIndex(origin, s.windowOffset(previous, i)); ok {
			next[j] = slot
			s.slotWindow[slot] = j
			continue
		}
		if _, busy := s.pending[slot]; busy {
			continue
		}
		s.evict(slot)
	}
	s.window = next
}

func (s *Scheduler) processReady() {
	for {
		select {
		case res := <-s.gen.results:
			s.finishJob(res)
		default:
			return
		}
	}
}

func (s *Scheduler) finishJob(res jobResult) {
	slot := res.slot
	delete(s.pending, slot)

	if res.err != nil {
		s.logger.Warn("dropping failed chunk, it will be retried",
			zap.Int("slot", slot), zap.Stringer("offset", res.offset), zap.Error(res.err))
		s.release(slot)
		return
	}

	w := s.slotWindow[slot]
	if w == noSlot || s.windowOffset(s.origin, w) != res.offset {
		s.logger.Debug("discarding chunk that left the window",
			zap.Int("slot", slot), zap.Stringer("offset", res.offset))
		s.evict(slot)
		return
	}

	h, _ := s.chunks.Handle(slot)
	h.Write(func(c *world.Chunk) {
		c.TakeRebuiltLayers()
		s.buffers[slot].Update(c.Mesh())
	})
	s.chunks.UpdateChunkOffset(slot, res.offset)
	s.MarkChunksDirty(s.chunks.StitchPadding(slot))
	s.logger.Debug("chunk resident",
		zap.Int("slot", slot), zap.Stringer("offset", res.offset), zap.String("source", res.source))
}

func (s *Scheduler) processDirty() {
	budget := s.cfg.DirtyChunksPerFrame
	for budget > 0 && len(s.dirtyQueue) > 0 {
		slot := s.dirtyQueue[0]
		s.dirtyQueue = s.dirtyQueue[1:]
		delete(s.dirtySet, slot)
		if s.remesh(slot) {
			budget--
		}
	}
}

// remesh rebuilds the dirty layers of a resident slot and uploads the
// result. It reports whether any work was done.
func (s *Scheduler) remesh(slot int) bool {
	if _, busy := s.pending[slot]; busy || !s.chunks.IsMapped(slot) {
		s.logger.Debug("skipping remesh of non-resident slot", zap.Int("slot", slot))
		return false
	}
	h, ok := s.chunks.Handle(slot)
	if !ok {
		return false
	}
	done := false
	h.Write(func(c *world.Chunk) {
		if !c.Dirty() {
			return
		}
		if r, ok := c.DirtyRange(); ok {
			c.UpdateMesh(s.atlas, &r)
		} else {
			c.UpdateMesh(s.atlas, nil)
		}
		c.ClearDirty()
		s.upload(slot, c)
		done = true
	})
	return done
}

// upload pushes a freshly remeshed chunk to its buffer, rewriting only the
// rebuilt layers when their spans did not move.
func (s *Scheduler) upload(slot int, c *world.Chunk) {
	buf := s.buffers[slot]
	rebuilt := c.TakeRebuiltLayers()
	if lw, ok := buf.(LayerWriter); ok && !c.LayoutChanged() {
		lw.WriteLayers(c.Mesh(), c.LayerSpans(), rebuilt)
		return
	}
	buf.Update(c.Mesh())
}

func (s *Scheduler) hasMissing() bool {
	return slices.Contains(s.window, noSlot)
}

type loadCandidate struct {
	index int
	dist  int
}

// loadMissing dispatches jobs for empty window positions, nearest first,
// bounded by the in-flight cap, the free slots and the dispatch limiter.
func (s *Scheduler) loadMissing() {
	var candidates []loadCandidate
	for i, slot := range s.window {
		if slot != noSlot {
			continue
		}
		offset := s.windowOffset(s.origin, i)
		dx, dz := offset.X-s.center.X, offset.Z-s.center.Z
		candidates = append(candidates, loadCandidate{index: i, dist: dx*dx + dz*dz})
	}
	slices.SortStableFunc(candidates, func(a, b loadCandidate) int {
		return cmp.Compare(a.dist, b.dist)
	})

	for _, cand := range candidates {
		if len(s.pending) >= s.cfg.JobsInFlight || len(s.free) == 0 {
			return
		}
		if s.limiter != nil && !s.limiter.Allow() {
			return
		}
		slot := s.free[0]
		s.free = s.free[1:]
		s.window[cand.index] = slot
		s.slotWindow[slot] = cand.index
		s.pending[slot] = struct{}{}

		offset := s.windowOffset(s.origin, cand.index)
		snapshot, _ := s.saver.inFlight(offset)
		h, _ := s.chunks.Handle(slot)
		s.gen.jobs <- job{slot: slot, handle: h, offset: offset, snapshot: snapshot}
	}
}

// evict queues a save when the chunk holds unsaved edits, then releases the
// slot. The save runs on the save worker.
func (s *Scheduler) evict(slot int) {
	h, ok := s.chunks.Handle(slot)
	if !ok {
		return
	}
	var data []byte
	var offset world.ChunkCoord
	h.Write(func(c *world.Chunk) {
		if !c.NeedsSave() || c.Offset() == world.UnmappedCoord {
			return
		}
		data = c.EncodeBlocks()
		offset = c.Offset()
		c.SetNeedsSave(false)
	})
	if data != nil {
		s.saver.submit(offset, data)
	}
	s.release(slot)
}

// release returns a slot to the free queue with its buffer shrunk back to
// the floor capacities.
func (s *Scheduler) release(slot int) {
	s.buffers[slot].ShrinkTo(s.cfg.MinVertexCap, s.cfg.MinIndexCap)
	s.chunks.RemoveChunkFromMap(slot)
	if w := s.slotWindow[slot]; w != noSlot {
		s.window[w] = noSlot
		s.slotWindow[slot] = noSlot
	}
	s.free = append(s.free, slot)
}

// MarkChunksDirty queues slots for the per-frame remesh pass. A slot already
// queued is not queued twice.
func (s *Scheduler) MarkChunksDirty(slots []int) {
	for _, slot := range slots {
		if _, queued := s.dirtySet[slot]; queued {
			continue
		}
		s.dirtySet[slot] = struct{}{}
		s.dirtyQueue = append(s.dirtyQueue, slot)
	}
}

// RemeshNow remeshes and uploads slots immediately, outside the per-frame
// budget, and drops them from the dirty queue. It returns how many slots
// were rebuilt.
func (s *Scheduler) RemeshNow(slots []int) int {
	drop := make(map[int]struct{}, len(slots))
	for _, slot := range slots {
		drop[slot] = struct{}{}
		delete(s.dirtySet, slot)
	}
	s.dirtyQueue = slices.DeleteFunc(s.dirtyQueue, func(slot int) bool {
		_, ok := drop[slot]
		return ok
	})

	n := 0
	for slot := range drop {
		if s.remesh(slot) {
			n++
		}
	}
	return n
}

// SetBlockMaterial edits a voxel and queues every touched slot for remesh.
// After Close it rejects edits and returns nil.
func (s *Scheduler) SetBlockMaterial(pos world.BlockCoord, m world.Material) []int {
	if s.closed {
		return nil
	}
	touched := s.chunks.SetBlockMaterial(pos, m)
	s.MarkChunksDirty(touched)
	return touched
}

// BlockMaterial reads a voxel from the resident chunks.
func (s *Scheduler) BlockMaterial(pos world.BlockCoord) (world.Material, bool) {
	return s.chunks.BlockMaterial(pos)
}

// Raycast finds the first solid voxel along a ray through resident chunks.
func (s *Scheduler) Raycast(origin, dir mgl32.Vec3, maxDist float32) (world.RayHit, bool) {
	return world.Raycast(s.chunks, origin, dir, maxDist)
}

// WorldPosInBounds reports whether pos lies in a resident chunk.
func (s *Scheduler) WorldPosInBounds(pos world.BlockCoord) bool {
	offset, local := world.SplitBlockCoord(pos)
	if !world.InChunkBounds(local) {
		return false
	}
	_, ok := s.chunks.Slot(offset)
	return ok
}

// Draw issues one indexed draw per resident slot with geometry, in slot
// order.
func (s *Scheduler) Draw(pass RenderPass) {
	for slot, buf := range s.buffers {
		if !s.chunks.IsMapped(slot) {
			continue
		}
		if n := buf.IndexCount(); n > 0 {
			pass.DrawIndexed(buf, n)
		}
	}
}

// Chunks exposes the chunk manager for read access and tooling.
func (s *Scheduler) Chunks() *world.Manager { return s.chunks }

// Origin returns the chunk offset of the window's first position.
func (s *Scheduler) Origin() world.ChunkCoord { return s.origin }

// ViewSize returns the window edge in chunks.
func (s *Scheduler) ViewSize() int { return s.viewSize }

// LoadedChunks counts window positions that have a slot assigned, resident
// or still generating.
func (s *Scheduler) LoadedChunks() int {
	n := 0
	for _, slot := range s.window {
		if slot != noSlot {
			n++
		}
	}
	return n
}

// Stats is a snapshot of scheduler occupancy.
type Stats struct {
	Loaded        int
	Resident      int
	Pending       int
	Free          int
	DirtyQueued   int
	SavesInFlight int
}

func (s *Scheduler) Stats() Stats {
	return Stats{
		Loaded:        s.LoadedChunks(),
		Resident:      s.chunks.Mapped(),
		Pending:       len(s.pending),
		Free:          len(s.free),
		DirtyQueued:   len(s.dirtyQueue),
		SavesInFlight: len(s.saver.pending),
	}
}

// Close stops the generation worker, saves every resident chunk with unsaved
// edits and waits for the save worker to drain.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.gen.stop()
	for len(s.gen.results) > 0 {
		res := <-s.gen.results
		delete(s.pending, res.slot)
	}

	saved := 0
	for offset, slot := range s.chunks.MappedOffsets() {
		h, _ := s.chunks.Handle(slot)
		var data []byte
		h.Write(func(c *world.Chunk) {
			if c.NeedsSave() {
				data = c.EncodeBlocks()
				c.SetNeedsSave(false)
			}
		})
		if data != nil {
			s.saver.submit(offset, data)
			saved++
		}
	}
	s.saver.close()
	s.logger.Info("terrain scheduler stopped", zap.Int("savedOnClose", saved))
	return nil
}
