// Package wire implements the two low-level framings the protocol runs
// over a TCP connection: fixed-layout binary chunk frames on data
// connections, and brace-counted JSON objects on the control connection.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jend-sync/jend/internal/sync0"
)

// Chunk is one contiguous range of a file's bytes, as carried on a data
// connection. Offset is the absolute byte position within the file.
type Chunk struct {
	Offset uint64
	Size   uint64
	Data   []byte
}

// EncodeChunk writes a chunk frame: 8 bytes offset, 8 bytes size, then
// Size bytes of payload, all big-endian, no padding.
func EncodeChunk(w io.Writer, c Chunk) error {
	if c.Size == 0 {
		return fmt.Errorf("wire: zero-size chunk is a protocol error")
	}
	if c.Size > sync0.ChunkPayloadMax {
		return fmt.Errorf("wire: chunk size %d exceeds max %d", c.Size, sync0.ChunkPayloadMax)
	}
	if uint64(len(c.Data)) != c.Size {
		return fmt.Errorf("wire: chunk size %d does not match payload length %d", c.Size, len(c.Data))
	}
	var hdr [16]byte
	binary.BigEndian.PutUint64(hdr[0:8], c.Offset)
	binary.BigEndian.PutUint64(hdr[8:16], c.Size)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(c.Data)
	return err
}

// ErrCleanEOF signals that the stream ended exactly at a frame boundary:
// the normal terminator for a sub-stream, not an error.
var ErrCleanEOF = fmt.Errorf("wire: clean end of chunk stream")

// DecodeChunk reads one chunk frame from r. If the stream ends before any
// byte of the 16-byte header arrives, it returns ErrCleanEOF. Any other
// short read, or a size exceeding ChunkPayloadMax, is a framing error.
func DecodeChunk(r io.Reader) (Chunk, error) {
	var hdr [16]byte
	n, err := io.ReadFull(r, hdr[:])
	if n == 0 && err == io.EOF {
		return Chunk{}, ErrCleanEOF
	}
	if err != nil {
		return Chunk{}, fmt.Errorf("wire: framing error reading chunk header: %w", err)
	}

	offset := binary.BigEndian.Uint64(hdr[0:8])
	size := binary.BigEndian.Uint64(hdr[8:16])
	if size == 0 {
		return Chunk{}, fmt.Errorf("wire: framing error: zero-size chunk mid-stream")
	}
	if size > sync0.ChunkPayloadMax {
		return Chunk{}, fmt.Errorf("wire: framing error: chunk size %d exceeds max %d", size, sync0.ChunkPayloadMax)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return Chunk{}, fmt.Errorf("wire: framing error reading chunk payload: %w", err)
	}

	return Chunk{Offset: offset, Size: size, Data: data}, nil
}
