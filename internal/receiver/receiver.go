// Package receiver implements the receiving side of a sync session:
// request the sender's file list, schedule downloads under
// FILE_PARALLELISM with FAN_OUT parallel sub-streams per file, and
// dispatch received chunks to per-file writers while a control loop
// tracks Working/Finished state. The per-file accept loop follows a
// plain handleReceiveSession shape, generalized from a single
// sha256-then-unzip flow to many concurrently in-flight files with no
// post-transfer verification.
package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/jend-sync/jend/internal/fileio"
	"github.com/jend-sync/jend/internal/netx"
	"github.com/jend-sync/jend/internal/progress"
	"github.com/jend-sync/jend/internal/sync0"
	"github.com/jend-sync/jend/internal/wire"
	"github.com/jend-sync/jend/internal/workerpool"
)

type eventKind int

const (
	evStart eventKind = iota
	evFinish
)

type event struct {
	kind eventKind
	id   uint32
}

type streamState int

const (
	notStarted streamState = iota
	working
	finished
)

type streamEntry struct {
	state streamState
}

// Run drives one receiver session over ep, materializing the sender's
// file list under root. It blocks until every non-empty file has been
// fully written, or until a fatal error occurs.
func Run(ep netx.Endpoint, root string, reporter progress.Reporter) error {
	control := ep.Control()
	frames := wire.NewFrameReader(control)

	if err := writeFrame(control, wire.NewGetFileListMsg()); err != nil {
		return fmt.Errorf("receiver: sending GetFileList: %w", err)
	}

	var list wire.MessageFiles
	if err := frames.ReadFrame(&list); err != nil {
		return fmt.Errorf("receiver: reading file list: %w", err)
	}
	files := list.Files

	streams := make([]streamEntry, len(files))
	pending := 0
	for i, f := range files {
		if f.Size == 0 {
			streams[i].state = finished
			continue
		}
		pending++
	}
	if pending == 0 {
		for id, f := range files {
			if err := createEmptyFile(root, f.PartialPath); err != nil {
				return fmt.Errorf("receiver: materializing empty file %d: %w", id, err)
			}
		}
		return nil
	}

	slots := workerpool.NewFileSlots(sync0.FileParallelism)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := workerpool.New(ctx)

	events := make(chan event, 64)
	done := make(chan struct{})

	pool.Go(func() error {
		return controlLoop(pool.Context(), streams, pending, events, reporter, slots, done)
	})
	pool.Go(func() error {
		return dispatch(ep, pool, root, files, slots, events, reporter, done)
	})

	err := pool.Wait()
	ep.Close()
	if err != nil {
		return err
	}
	return nil
}

func dispatch(ep netx.Endpoint, pool *workerpool.Pool, root string, files []wire.FileEntry, slots *workerpool.FileSlots, events chan<- event, reporter progress.Reporter, done <-chan struct{}) error {
	finish := make(chan uint32)

	for id := range files {
		id := uint32(id)
		entry := files[id]
		if entry.Size == 0 {
			if err := createEmptyFile(root, entry.PartialPath); err != nil {
				return fmt.Errorf("receiver: materializing empty file %d: %w", id, err)
			}
			continue
		}

		if err := slots.Acquire(pool.Context()); err != nil {
			return fmt.Errorf("receiver: acquiring file slot: %w", err)
		}

		events <- event{kind: evStart, id: id}
		reporter.Report(progress.Event{
			Kind: progress.StartFile,
			ID:   id,
			Name: fileio.JoinedPath(entry.PartialPath),
			Size: entry.Size,
		})

		path := filepath.Join(append([]string{root}, entry.PartialPath...)...)
		writer, err := fileio.NewWriter(id, entry.Size, path, finish)
		if err != nil {
			return fmt.Errorf("receiver: creating writer for file %d: %w", id, err)
		}

		for k := 0; k < sync0.FanOut; k++ {
			conn, err := ep.GetConnection()
			if err != nil {
				return fmt.Errorf("receiver: opening data connection for file %d: %w", id, err)
			}
			pool.Go(func() error {
				return pullFile(conn, id, writer, reporter)
			})
		}

		pool.Go(func() error {
			select {
			case fid := <-finish:
				events <- event{kind: evFinish, id: fid}
				return nil
			case <-done:
				return nil
			}
		})
	}
	return nil
}

// createEmptyFile materializes a size-0 FileEntry directly: no chunks
// are ever exchanged for it, so dispatch must create it itself rather
// than relying on a writer to do so.
func createEmptyFile(root string, partial []string) error {
	path := filepath.Join(append([]string{root}, partial...)...)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return f.Close()
}

func pullFile(conn net.Conn, id uint32, writer *fileio.Writer, reporter progress.Reporter) error {
	defer conn.Close()

	if err := writeFrame(conn, wire.DownloadFileMsg{ID: id}); err != nil {
		return fmt.Errorf("receiver: requesting file %d: %w", id, err)
	}

	for {
		chunk, err := wire.DecodeChunk(conn)
		if err != nil {
			if err == wire.ErrCleanEOF {
				return nil
			}
			return fmt.Errorf("receiver: decoding chunk for file %d: %w", id, err)
		}
		if err := writer.PushChunk(chunk); err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
		reporter.Report(progress.Event{Kind: progress.AddData, ID: id, Delta: chunk.Size})
	}
}

func controlLoop(ctx context.Context, streams []streamEntry, pending int, events <-chan event, reporter progress.Reporter, slots *workerpool.FileSlots, done chan<- struct{}) error {
	for {
		var e event
		select {
		case e = <-events:
		case <-ctx.Done():
			// Another task failed: release the finish waiters and stop.
			close(done)
			return nil
		}
		switch e.kind {
		case evStart:
			switch streams[e.id].state {
			case notStarted:
				streams[e.id].state = working
			case finished:
				return fmt.Errorf("receiver: state-error: Start for already-finished file %d", e.id)
			}

		case evFinish:
			switch streams[e.id].state {
			case working:
				streams[e.id].state = finished
				slots.Release()
				pending--
				reporter.Report(progress.Event{Kind: progress.FinishFile, ID: e.id})
				if pending == 0 {
					close(done)
					return nil
				}
			case notStarted:
				return fmt.Errorf("receiver: state-error: Finish for file %d that never started", e.id)
			case finished:
				return fmt.Errorf("receiver: state-error: duplicate Finish for file %d", e.id)
			}
		}
	}
}

func writeFrame(conn net.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}
