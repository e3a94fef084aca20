// Package sender implements the sender orchestrator (spec.md §4.H):
// serve the file-list request, accept per-file pull requests on
// on-demand data connections, and pump chunks to the receiver while a
// single control loop tracks each file's Working/Finished state.
// Grounded on darkprince558-JEND's internal/core/sender.go
// (handleConnection's per-connection read loop and its shutdown-on-error
// shape), generalized from one fixed transfer to many concurrently
// in-flight files served by a shared reader manager.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/jend-sync/jend/internal/fileio"
	"github.com/jend-sync/jend/internal/logx"
	"github.com/jend-sync/jend/internal/netx"
	"github.com/jend-sync/jend/internal/progress"
	"github.com/jend-sync/jend/internal/scan"
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
	state            streamState
	activeSubstreams int
}

// Run drives one sender session over ep, serving files under root. It
// blocks until the receiver has pulled every non-empty file, or until a
// fatal error occurs.
func Run(ep netx.Endpoint, root string, reporter progress.Reporter) error {
	control := ep.Control()
	frames := wire.NewFrameReader(control)

	var req wire.GetFileListMsg
	if err := frames.ReadFrame(&req); err != nil {
		return fmt.Errorf("sender: reading GetFileList: %w", err)
	}

	files, err := scan.Scan(root)
	if err != nil {
		return fmt.Errorf("sender: scanning %s: %w", root, err)
	}
	if err := writeFrame(control, wire.MessageFiles{Files: files}); err != nil {
		return fmt.Errorf("sender: replying with file list: %w", err)
	}

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
		logx.WithField("root", root).Debug("sender: nothing to send, empty or all-zero-size directory")
		return nil
	}

	manager := fileio.NewReaderManager(root, files)
	slots := workerpool.NewFileSlots(sync0.FileParallelism)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := workerpool.New(ctx)

	events := make(chan event, 64)
	done := make(chan struct{})

	pool.Go(func() error {
		return controlLoop(pool.Context(), files, streams, pending, events, reporter, slots, ep, done)
	})
	pool.Go(func() error {
		return accept(ep, pool, manager, slots, events, reporter, done)
	})

	err = pool.Wait()
	ep.Close()
	if err != nil {
		return err
	}
	return nil
}

func accept(ep netx.Endpoint, pool *workerpool.Pool, manager *fileio.ReaderManager, slots *workerpool.FileSlots, events chan<- event, reporter progress.Reporter, done <-chan struct{}) error {
	for {
		conn, err := ep.WaitForConnection()
		if err != nil {
			select {
			case <-done:
				return nil
			default:
				return fmt.Errorf("sender: accepting data connection: %w", err)
			}
		}
		pool.Go(func() error {
			return handleDataConn(conn, manager, slots, events, reporter, pool.Context())
		})
	}
}

func handleDataConn(conn net.Conn, manager *fileio.ReaderManager, slots *workerpool.FileSlots, events chan<- event, reporter progress.Reporter, ctx context.Context) error {
	defer conn.Close()

	freader := wire.NewFrameReader(conn)
	var req wire.DownloadFileMsg
	if err := freader.ReadFrame(&req); err != nil {
		return fmt.Errorf("sender: reading DownloadFile request: %w", err)
	}

	result, reader, err := manager.GetReader(req.ID)
	if err != nil {
		return fmt.Errorf("sender: %w", err)
	}
	if result == fileio.NoReader {
		return nil
	}
	if result == fileio.FirstInstance {
		if err := slots.Acquire(ctx); err != nil {
			return fmt.Errorf("sender: acquiring file slot: %w", err)
		}
	}

	events <- event{kind: evStart, id: req.ID}

	for {
		chunk := reader.GetChunk()
		if chunk == nil {
			break
		}
		if err := wire.EncodeChunk(conn, *chunk); err != nil {
			return fmt.Errorf("sender: writing chunk for file %d: %w", req.ID, err)
		}
		reporter.Report(progress.Event{Kind: progress.AddData, ID: req.ID, Delta: chunk.Size})
	}

	events <- event{kind: evFinish, id: req.ID}
	return nil
}

func controlLoop(ctx context.Context, files []wire.FileEntry, streams []streamEntry, pending int, events <-chan event, reporter progress.Reporter, slots *workerpool.FileSlots, ep netx.Endpoint, done chan<- struct{}) error {
	for {
		var e event
		select {
		case e = <-events:
		case <-ctx.Done():
			// Another task failed: stop, and unblock the accept loop.
			close(done)
			ep.Close()
			return nil
		}
		switch e.kind {
		case evStart:
			switch streams[e.id].state {
			case notStarted:
				streams[e.id].state = working
				streams[e.id].activeSubstreams = 1
				reporter.Report(progress.Event{
					Kind: progress.StartFile,
					ID:   e.id,
					Name: fileio.JoinedPath(files[e.id].PartialPath),
					Size: files[e.id].Size,
				})
			case working:
				streams[e.id].activeSubstreams++
			case finished:
				// A late sub-stream request for an already-drained file; ignore.
			}

		case evFinish:
			switch streams[e.id].state {
			case working:
				if streams[e.id].activeSubstreams <= 1 {
					streams[e.id].state = finished
					slots.Release()
					pending--
					reporter.Report(progress.Event{Kind: progress.FinishFile, ID: e.id})
					if pending == 0 {
						close(done)
						ep.Close()
						return nil
					}
				} else {
					streams[e.id].activeSubstreams--
				}
			case notStarted:
				return fmt.Errorf("sender: state-error: Finish for file %d that never started", e.id)
			case finished:
				return fmt.Errorf("sender: state-error: duplicate Finish for file %d", e.id)
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
