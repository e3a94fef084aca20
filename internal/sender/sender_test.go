package sender

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/jend-sync/jend/internal/netx"
	"github.com/jend-sync/jend/internal/progress"
	"github.com/jend-sync/jend/internal/wire"
)

func connected(t *testing.T) (netx.Endpoint, netx.Endpoint) {
	t.Helper()
	srv, listener, err := netx.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	type res struct {
		ep  *netx.ClientEndpoint
		err error
	}
	ch := make(chan res, 1)
	go func() {
		ep, err := netx.DialClient(listener.Addr().String())
		ch <- res{ep, err}
	}()
	if _, err := srv.AcceptControl(); err != nil {
		t.Fatalf("accept control: %v", err)
	}
	r := <-ch
	if r.err != nil {
		t.Fatalf("dial: %v", r.err)
	}
	return srv, r.ep
}

// TestSenderSharesReaderAcrossFanOut drives two data connections
// against the same file id and checks the sender's shared reader
// partitions the file's bytes across both (competing consumers), never
// duplicating or dropping bytes, and emits exactly one StartFile/
// FinishFile pair despite two sub-streams.
func TestSenderSharesReaderAcrossFanOut(t *testing.T) {
	root := t.TempDir()
	content := make([]byte, 200_000)
	for i := range content {
		content[i] = byte(i)
	}
	if err := os.WriteFile(filepath.Join(root, "f.bin"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	srv, cli := connected(t)

	reporter, events := progress.NewChan(64)
	var starts, finishes int
	var addDataCount int
	var addDataTotal uint64
	done := make(chan struct{})
	go func() {
		for e := range events {
			switch e.Kind {
			case progress.StartFile:
				starts++
			case progress.AddData:
				addDataCount++
				addDataTotal += e.Delta
			case progress.FinishFile:
				finishes++
			}
		}
		close(done)
	}()

	senderErr := make(chan error, 1)
	go func() { senderErr <- Run(srv, root, reporter) }()

	clientFrames := wire.NewFrameReader(cli.Control())
	if err := writeFrame(cli.Control(), wire.NewGetFileListMsg()); err != nil {
		t.Fatal(err)
	}
	var list wire.MessageFiles
	if err := clientFrames.ReadFrame(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(list.Files))
	}

	// Open both sub-streams before draining either, as the receiver
	// does: the sender closes its endpoint once the file is finished.
	conns := make([]net.Conn, 0, 2)
	for k := 0; k < 2; k++ {
		conn, err := cli.GetConnection()
		if err != nil {
			t.Fatal(err)
		}
		if err := writeFrame(conn, wire.DownloadFileMsg{ID: 0}); err != nil {
			t.Fatal(err)
		}
		conns = append(conns, conn)
	}

	received := make([]byte, 0, len(content))
	for _, conn := range conns {
		for {
			chunk, err := wire.DecodeChunk(conn)
			if err == wire.ErrCleanEOF {
				break
			}
			if err != nil {
				t.Fatal(err)
			}
			received = append(received, chunk.Data...)
		}
		conn.Close()
	}

	if err := <-senderErr; err != nil {
		t.Fatalf("sender: %v", err)
	}
	// Run has returned, so no task reports any more: end the consumer.
	close(reporter.(progress.Chan))
	<-done

	if len(received) != len(content) {
		t.Fatalf("expected %d bytes total across both sub-streams, got %d", len(content), len(received))
	}
	if starts != 1 || finishes != 1 {
		t.Fatalf("expected exactly 1 StartFile/1 FinishFile, got %d/%d", starts, finishes)
	}
	if addDataCount == 0 {
		t.Fatal("expected at least one AddData event, per spec §4.J (sender reports after write)")
	}
	if addDataTotal != uint64(len(content)) {
		t.Fatalf("expected AddData deltas to sum to %d bytes, got %d", len(content), addDataTotal)
	}
}
