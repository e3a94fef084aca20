// Replaces darkprince558-JEND's e2e package, which built and exec'd the
// jend binary against QUIC/PAKE-authenticated real peers
// (e2e_test.go) and a lossy-UDP QUIC harness (resilience_test.go).
// Neither applies once encryption, authentication, and QUIC transport
// are out of scope; these tests instead drive sender.Run/receiver.Run
// in-process over real loopback TCP connections via internal/netx,
// covering the concrete scenarios from spec.md §8.
package e2e

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jend-sync/jend/internal/netx"
	"github.com/jend-sync/jend/internal/progress"
	"github.com/jend-sync/jend/internal/receiver"
	"github.com/jend-sync/jend/internal/sender"
)

// connectedEndpoints starts a real TCP server/client pair over
// loopback and returns both endpoints with their control connections
// already established.
func connectedEndpoints(t *testing.T) (netx.Endpoint, netx.Endpoint) {
	t.Helper()

	srv, listener, err := netx.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	type dialResult struct {
		ep  *netx.ClientEndpoint
		err error
	}
	dialed := make(chan dialResult, 1)
	go func() {
		ep, err := netx.DialClient(listener.Addr().String())
		dialed <- dialResult{ep, err}
	}()

	if _, err := srv.AcceptControl(); err != nil {
		t.Fatalf("accept control: %v", err)
	}
	res := <-dialed
	if res.err != nil {
		t.Fatalf("dial: %v", res.err)
	}

	return srv, res.ep
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, root, rel string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading %s: %v", rel, err)
	}
	return data
}

// runSync drives one sender/receiver session to completion and fails
// the test on any error from either side.
func runSync(t *testing.T, srcRoot, dstRoot string) {
	t.Helper()
	srv, cli := connectedEndpoints(t)

	senderReporter, senderEvents := progress.NewChan(256)
	receiverReporter, receiverEvents := progress.NewChan(256)
	go drain(senderEvents)
	go drain(receiverEvents)

	senderErr := make(chan error, 1)
	go func() { senderErr <- sender.Run(srv, srcRoot, senderReporter) }()

	if err := receiver.Run(cli, dstRoot, receiverReporter); err != nil {
		t.Fatalf("receiver: %v", err)
	}
	if err := <-senderErr; err != nil {
		t.Fatalf("sender: %v", err)
	}
}

func drain(ch <-chan progress.Event) {
	for range ch {
	}
}

func TestSingleSmallFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, src, "hello.txt", []byte("hello world"))

	runSync(t, src, dst)

	got := readFile(t, dst, "hello.txt")
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestNestedDirectories(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, src, "sub/x.txt", []byte("abc"))

	runSync(t, src, dst)

	got := readFile(t, dst, "sub/x.txt")
	if string(got) != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestEmptyAndNonEmptyMix(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, src, "empty.bin", nil)
	writeFile(t, src, "data.bin", []byte("hello"))

	runSync(t, src, dst)

	if got := readFile(t, dst, "data.bin"); string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
	info, err := os.Stat(filepath.Join(dst, "empty.bin"))
	if err != nil {
		t.Fatalf("stat empty.bin: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected empty file, got size %d", info.Size())
	}
}

func TestTwoFilesFanOut(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	a := bytes.Repeat([]byte{0xAA}, 600_000)
	b := bytes.Repeat([]byte{0xBB}, 150_000)
	writeFile(t, src, "a.bin", a)
	writeFile(t, src, "b.bin", b)

	runSync(t, src, dst)

	if got := readFile(t, dst, "a.bin"); !bytes.Equal(got, a) {
		t.Fatalf("a.bin mismatch: got %d bytes", len(got))
	}
	if got := readFile(t, dst, "b.bin"); !bytes.Equal(got, b) {
		t.Fatalf("b.bin mismatch: got %d bytes", len(got))
	}
}

func TestEmptyDirectoryWritesNoFiles(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	runSync(t, src, dst)

	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files written, got %d entries", len(entries))
	}
}
