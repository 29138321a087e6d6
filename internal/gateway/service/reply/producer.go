// Package reply produces the chunk streams sent back for user messages.
package reply

import (
	"context"
	"errors"

	"chunkchat/internal/chunk"
)

// ErrBusy is returned when a connection already has a reply in flight.
var ErrBusy = errors.New("a reply is already streaming")

type Request struct {
	ReplyID string
	Sender  string
	Text    string
}

// Emit delivers one chunk to the client. A non-nil error stops the stream.
type Emit func(chunk.Chunk) error

// Producer streams one reply. Implementations emit chunks in order and flag
// exactly the last one IsComplete, unless ctx ends or emit fails first.
type Producer interface {
	Name() string
	Stream(ctx context.Context, req Request, emit Emit) error
}

// FailureChunk closes a reply whose producer failed part way.
func FailureChunk() chunk.Chunk {
	c := chunk.Text("Sorry, something went wrong while replying.")
	c.Metadata.Formatting = "italic"
	return c.Complete()
}
