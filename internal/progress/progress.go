// Package progress defines the event contract the core emits to a
// passive, external UI consumer, in the shape of bubbletea
// StatusMsg/ErrorMsg/ProgressMsg messages, generalized from one file
// to file-id-keyed events for a whole directory tree.
package progress

// Event is one of StartFile, AddData, or FinishFile, tagged by Kind.
type Event struct {
	Kind  Kind
	ID    uint32
	Name  string // set on StartFile
	Size  uint64 // set on StartFile
	Delta uint64 // set on AddData: bytes observed in this chunk
}

type Kind int

const (
	StartFile Kind = iota
	AddData
	FinishFile
)

// Reporter is the single-consumer sink the core emits events to. It is
// lossy/best-effort from the core's perspective: if the reporter
// stalls, events queue up behind Report's channel send, but the core
// never blocks beyond normal channel semantics.
type Reporter interface {
	Report(Event)
}

// Chan adapts a buffered channel into a Reporter. Report is a plain
// channel send: events queue in the buffer while the consumer is
// behind, and once the buffer is full Report blocks until the consumer
// takes one. Consumers should size the channel generously and drain it
// promptly.
type Chan chan Event

func (c Chan) Report(e Event) {
	c <- e
}

// NewChan returns a Reporter backed by a channel of the given buffer
// size, along with the channel itself for the consumer side to range
// over.
func NewChan(buffer int) (Reporter, <-chan Event) {
	ch := make(Chan, buffer)
	return ch, ch
}
