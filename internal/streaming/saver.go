package streaming

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"voxelterrain/internal/world"
)

// SaveRecorder is told about every chunk file the save worker writes.
type SaveRecorder interface {
	RecordSave(ctx context.Context, offset world.ChunkCoord, size int, savedAt time.Time) error
}

type pendingSave struct {
	data []byte
	task pond.Task
}

// saver writes chunk files on a single-worker pool. submit never blocks; the
// pool queue is unbounded and runs tasks in order.
type saver struct {
	worldDir string
	pool     pond.Pool
	recorder SaveRecorder
	logger   *zap.Logger

	// pending is touched only by the scheduler goroutine.
	pending map[world.ChunkCoord]pendingSave
}

func newSaver(worldDir string, recorder SaveRecorder, logger *zap.Logger) *saver {
	return &saver{
		worldDir: worldDir,
		pool:     pond.NewPool(1),
		recorder: recorder,
		logger:   logger,
		pending:  make(map[world.ChunkCoord]pendingSave),
	}
}

func (s *saver) submit(offset world.ChunkCoord, data []byte) {
	task := s.pool.Submit(func() {
		s.write(offset, data)
	})
	s.pending[offset] = pendingSave{data: data, task: task}
}

func (s *saver) write(offset world.ChunkCoord, data []byte) {
	path := world.ChunkPath(s.worldDir, offset)
	if err := world.WriteChunkFile(path, data); err != nil {
		s.logger.Warn("chunk save failed", zap.Stringer("offset", offset), zap.Error(err))
		return
	}
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordSave(context.Background(), offset, len(data), time.Now()); err != nil {
		s.logger.Warn("recording chunk save failed", zap.Stringer("offset", offset), zap.Error(err))
	}
}

// reap forgets saves that have reached the disk.
func (s *saver) reap() {
	for offset, p := range s.pending {
		select {
		case <-p.task.Done():
			delete(s.pending, offset)
		default:
		}
	}
}

// inFlight returns the bytes of a save for offset that may not be on disk
// yet.
func (s *saver) inFlight(offset world.ChunkCoord) ([]byte, bool) {
	p, ok := s.pending[offset]
	if !ok {
		return nil, false
	}
	return p.data, true
}

func (s *saver) close() {
	s.pool.StopAndWait()
	clear(s.pending)
}
