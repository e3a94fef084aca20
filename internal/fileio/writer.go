package fileio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jend-sync/jend/internal/wire"
)

// Writer accepts out-of-order chunks for one file, reorders them by
// offset, and writes the sequential prefix to disk as it becomes
// available. Chunks are expected to be non-overlapping and to tile
// [0, size) exactly; a duplicate offset is a protocol error.
type Writer struct {
	id   uint32
	size uint64
	f    *os.File

	mu      sync.Mutex
	pending []wire.Chunk // sorted by Offset
	written uint64

	finish chan<- uint32 // id is sent here exactly once, on completion
	once   sync.Once
}

// NewWriter ensures path's parent directories exist, truncates/creates
// path, and returns a Writer ready to accept chunks. finish receives id
// exactly once when the file is complete.
func NewWriter(id uint32, size uint64, path string, finish chan<- uint32) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("fileio: mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("fileio: create %s: %w", path, err)
	}
	return &Writer{
		id:     id,
		size:   size,
		f:      f,
		finish: finish,
	}, nil
}

// PushChunk inserts c into the reorder buffer and flushes as much of
// the sequential prefix to disk as is now available. It is safe to
// call concurrently from multiple sub-stream goroutines.
func (w *Writer) PushChunk(c wire.Chunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c.Offset < w.written {
		return fmt.Errorf("fileio: state-error: duplicate/overlapping offset %d (already written to %d)", c.Offset, w.written)
	}
	for _, existing := range w.pending {
		if existing.Offset == c.Offset {
			return fmt.Errorf("fileio: state-error: duplicate offset %d", c.Offset)
		}
	}

	idx := sort.Search(len(w.pending), func(i int) bool { return w.pending[i].Offset >= c.Offset })
	w.pending = append(w.pending, wire.Chunk{})
	copy(w.pending[idx+1:], w.pending[idx:])
	w.pending[idx] = c

	for len(w.pending) > 0 && w.pending[0].Offset <= w.written {
		head := w.pending[0]
		if head.Offset != w.written {
			return fmt.Errorf("fileio: state-error: chunk at %d overlaps already-written prefix ending at %d", head.Offset, w.written)
		}
		if _, err := w.f.Write(head.Data); err != nil {
			return fmt.Errorf("fileio: write: %w", err)
		}
		w.written += head.Size
		w.pending = w.pending[1:]
	}

	if w.written == w.size {
		w.once.Do(func() {
			w.f.Close()
			w.finish <- w.id
		})
	}
	return nil
}

// Done reports whether the file has been fully written.
func (w *Writer) Done() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written == w.size
}
