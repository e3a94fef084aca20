package fileio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jend-sync/jend/internal/wire"
)

// readerState is the per-file reader lifecycle state.
type readerState int

const (
	stateDef readerState = iota
	stateReader
	stateClosed
)

// ReaderResult is the tagged result of GetReader.
type ReaderResult int

const (
	// FirstInstance is returned exactly once per id: the caller just
	// instantiated the reader and should acquire a file-parallelism slot.
	FirstInstance ReaderResult = iota
	// Instance is returned for every GetReader after the first; no slot
	// is acquired.
	Instance
	// NoReader is returned once the reader has signalled EOF: the
	// client has already been told all data for this id.
	NoReader
)

type readerSlot struct {
	state  readerState
	entry  wire.FileEntry
	reader *Reader
}

// reqGetReader is sent to the manager's custodian goroutine.
type reqGetReader struct {
	id    uint32
	reply chan getReaderReply
}

type getReaderReply struct {
	result ReaderResult
	reader *Reader
	err    error
}

// ReaderManager is the single custodian of the reader-state vector:
// all state transitions happen inside one goroutine that owns the
// slice; callers communicate by request/reply, never by touching the
// slice directly.
type ReaderManager struct {
	root     string
	requests chan reqGetReader
	finished chan uint32
}

// NewReaderManager starts the custodian goroutine for files rooted at
// root, described by entries (index == file id).
func NewReaderManager(root string, entries []wire.FileEntry) *ReaderManager {
	m := &ReaderManager{
		root:     root,
		requests: make(chan reqGetReader),
		finished: make(chan uint32),
	}
	go m.run(entries)
	return m
}

func (m *ReaderManager) run(entries []wire.FileEntry) {
	slots := make([]readerSlot, len(entries))
	for i, e := range entries {
		slots[i] = readerSlot{state: stateDef, entry: e}
	}

	for {
		select {
		case req := <-m.requests:
			if int(req.id) >= len(slots) {
				req.reply <- getReaderReply{err: fmt.Errorf("fileio: unknown file id %d", req.id)}
				continue
			}
			slot := &slots[req.id]
			switch slot.state {
			case stateDef:
				id := req.id
				reader, err := NewReader(localPath(m.root, slot.entry.PartialPath), slot.entry.Size, func() {
					m.finished <- id
				})
				if err != nil {
					req.reply <- getReaderReply{err: err}
					continue
				}
				slot.state = stateReader
				slot.reader = reader
				req.reply <- getReaderReply{result: FirstInstance, reader: reader}
			case stateReader:
				req.reply <- getReaderReply{result: Instance, reader: slot.reader}
			case stateClosed:
				req.reply <- getReaderReply{result: NoReader}
			}

		case id := <-m.finished:
			slots[id].state = stateClosed
		}
	}
}

// GetReader requests the shared reader handle for file id, applying
// the reader-state transition table.
func (m *ReaderManager) GetReader(id uint32) (ReaderResult, *Reader, error) {
	reply := make(chan getReaderReply, 1)
	m.requests <- reqGetReader{id: id, reply: reply}
	r := <-reply
	return r.result, r.reader, r.err
}

func localPath(root string, partial []string) string {
	return filepath.Join(append([]string{root}, partial...)...)
}

// JoinedPath renders partial-path components with '/' for display and
// logging purposes, independent of the host OS path separator.
func JoinedPath(partial []string) string {
	return strings.Join(partial, "/")
}
