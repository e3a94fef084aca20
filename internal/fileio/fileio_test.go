package fileio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jend-sync/jend/internal/wire"
)

func TestReaderProducesChunksInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	content := bytes.Repeat([]byte{0xAA}, 3*1024*1024)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	finished := make(chan struct{})
	r, err := NewReader(path, uint64(len(content)), func() { close(finished) })
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	var got []byte
	var lastOffset uint64
	first := true
	for {
		c := r.GetChunk()
		if c == nil {
			break
		}
		if !first && c.Offset <= lastOffset {
			t.Fatalf("offsets not increasing: %d after %d", c.Offset, lastOffset)
		}
		lastOffset = c.Offset
		first = false
		got = append(got, c.Data...)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(got), len(content))
	}
	<-finished
}

func TestReaderSharedAcrossConsumersPartitionsChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	content := bytes.Repeat([]byte{0x01}, 1024*1024)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(path, uint64(len(content)), func() {})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	type result struct {
		data []byte
	}
	results := make(chan result, 2)
	consume := func() {
		var buf []byte
		for {
			c := r.GetChunk()
			if c == nil {
				break
			}
			buf = append(buf, c.Data...)
		}
		results <- result{data: buf}
	}
	go consume()
	go consume()

	r1 := <-results
	r2 := <-results
	total := len(r1.data) + len(r2.data)
	if total != len(content) {
		t.Fatalf("expected chunks to partition the file exactly once: got %d total bytes, want %d", total, len(content))
	}
}

func TestWriterReassemblesOutOfOrderChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	finish := make(chan uint32, 1)

	w, err := NewWriter(7, 11, path, finish)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	// "hello world" split and delivered out of order.
	if err := w.PushChunk(wire.Chunk{Offset: 6, Size: 5, Data: []byte("world")}); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}
	if err := w.PushChunk(wire.Chunk{Offset: 0, Size: 6, Data: []byte("hello ")}); err != nil {
		t.Fatalf("PushChunk: %v", err)
	}

	select {
	case id := <-finish:
		if id != 7 {
			t.Fatalf("finished id = %d, want 7", id)
		}
	default:
		t.Fatal("expected Finish to have fired once size reached")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestWriterRejectsDuplicateOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")
	finish := make(chan uint32, 1)

	w, err := NewWriter(1, 10, path, finish)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.PushChunk(wire.Chunk{Offset: 0, Size: 5, Data: []byte("hello")}); err != nil {
		t.Fatal(err)
	}
	if err := w.PushChunk(wire.Chunk{Offset: 0, Size: 5, Data: []byte("HELLO")}); err == nil {
		t.Fatal("expected state-error on duplicate offset")
	}
}

func TestWriterCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "nested", "x.txt")
	finish := make(chan uint32, 1)

	w, err := NewWriter(0, 3, path, finish)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.PushChunk(wire.Chunk{Offset: 0, Size: 3, Data: []byte("abc")}); err != nil {
		t.Fatal(err)
	}
	if !w.Done() {
		t.Fatal("expected writer to be done")
	}
}

func TestReaderManagerFirstInstanceOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	entries := []wire.FileEntry{{PartialPath: []string{"a.bin"}, Size: 5}}
	m := NewReaderManager(dir, entries)

	res1, r1, err := m.GetReader(0)
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	if res1 != FirstInstance || r1 == nil {
		t.Fatalf("expected FirstInstance, got %v", res1)
	}

	res2, r2, err := m.GetReader(0)
	if err != nil {
		t.Fatalf("GetReader: %v", err)
	}
	if res2 != Instance || r2 != r1 {
		t.Fatalf("expected Instance with same reader, got %v", res2)
	}

	// Drain the reader to trigger onFinished -> Closed transition.
	for r1.GetChunk() != nil {
	}

	// The finished notification races the test goroutine's next
	// GetReader call; poll until the custodian has processed it.
	deadline := time.Now().Add(2 * time.Second)
	var res3 ReaderResult
	for {
		res3, _, err = m.GetReader(0)
		if err != nil {
			t.Fatalf("GetReader: %v", err)
		}
		if res3 == NoReader || time.Now().After(deadline) {
			break
		}
	}
	if res3 != NoReader {
		t.Fatalf("expected NoReader after EOF, got %v", res3)
	}
}
