// Package sync0 holds the small set of tunables shared by the sender and
// receiver orchestrators. It is named sync0 (not sync) so files that need
// both this package and the standard library's sync package don't collide.
package sync0

const (
	// FileParallelism bounds how many distinct files may be in flight
	// (Working) at once, on either side of a session.
	FileParallelism = 4

	// FanOut is the number of data connections the receiver opens per
	// file. It is a tuning constant, not a protocol constant: a sender
	// accepts any number of sub-stream connections for a given file id.
	FanOut = 2

	// ChunkPayloadMax is the largest payload a single chunk frame may
	// carry on the wire.
	ChunkPayloadMax = 8 * 1024 * 1024

	// MaxInflightChunks bounds how many chunks a single file reader may
	// have produced but not yet had collected by a consumer.
	MaxInflightChunks = 10
)
