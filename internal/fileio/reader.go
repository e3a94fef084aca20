// Package fileio implements the per-file reader, the reader manager
// that amortizes one producer across many consumers, and the per-file
// writer that reassembles out-of-order chunks. The chunk loop follows
// a plain per-connection read-into-fixed-buffer shape, along with
// gofrs/flock best-effort file locking while reading.
package fileio

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"

	"github.com/jend-sync/jend/internal/sync0"
	"github.com/jend-sync/jend/internal/wire"
)

// Reader produces an ordered sequence of chunks for one file, shared
// among any number of competing consumers: each chunk is delivered to
// exactly one consumer. When any consumer observes EOF, the EOF
// sentinel is re-posted so every other consumer also observes it.
type Reader struct {
	chunks chan *wire.Chunk // nil value on this channel is the EOF sentinel
	slots  chan struct{}
	done   chan struct{}

	onFinished func()
}

// NewReader opens path, and starts a goroutine that streams it into a
// bounded, slot-throttled channel of chunks. onFinished is called
// exactly once, when the whole file has been read, so the caller (the
// ReaderManager) can learn of EOF and mark the file Closed.
func NewReader(path string, size uint64, onFinished func()) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("fileio: open %s: %w", path, err)
	}

	fileLock := flock.New(path)
	locked, lockErr := fileLock.TryLock()

	r := &Reader{
		chunks:     make(chan *wire.Chunk, sync0.MaxInflightChunks),
		slots:      make(chan struct{}, sync0.MaxInflightChunks),
		done:       make(chan struct{}),
		onFinished: onFinished,
	}
	for i := 0; i < sync0.MaxInflightChunks; i++ {
		r.slots <- struct{}{}
	}

	go r.produce(f, size, fileLock, lockErr == nil && locked)
	return r, nil
}

func (r *Reader) produce(f *os.File, size uint64, lock *flock.Flock, locked bool) {
	defer f.Close()
	defer func() {
		if locked {
			lock.Unlock()
		}
	}()

	buf := make([]byte, sync0.ChunkPayloadMax)
	var produced uint64

	for produced < size {
		select {
		case <-r.slots:
		case <-r.done:
			return
		}

		n, err := f.Read(buf)
		if n > 0 {
			c := &wire.Chunk{
				Offset: produced,
				Size:   uint64(n),
				Data:   append([]byte(nil), buf[:n]...),
			}
			produced += uint64(n)
			select {
			case r.chunks <- c:
			case <-r.done:
				return
			}
		}
		if err != nil {
			break
		}
	}

	r.postEOF()
	if r.onFinished != nil {
		r.onFinished()
	}
}

// postEOF pushes the terminal sentinel so the next consumer to call
// GetChunk observes EOF, and re-posts it after each observation so
// every remaining consumer also sees it.
func (r *Reader) postEOF() {
	select {
	case r.chunks <- nil:
	case <-r.done:
	}
}

// GetChunk returns the next chunk in file order, or nil at EOF. Safe to
// call concurrently from multiple consumers; each chunk goes to exactly
// one caller.
func (r *Reader) GetChunk() *wire.Chunk {
	select {
	case c := <-r.chunks:
		if c == nil {
			// Re-post so sibling consumers also observe EOF.
			r.postEOF()
			return nil
		}
		r.slots <- struct{}{}
		return c
	case <-r.done:
		return nil
	}
}

// Close releases the reader's internal goroutine. Normally the reader
// exits on its own once size bytes have been produced; Close is for
// early, abnormal teardown.
func (r *Reader) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}
