package reassembly

import (
	"time"

	"chunkchat/internal/chunk"
	"chunkchat/internal/ui"
)

// Envelope is one chunk as delivered by the transport, tagged with the
// producer's reply id when the producer sends one.
type Envelope struct {
	ReplyID string
	Chunk   chunk.Chunk
}

// InFlightMessage accumulates the chunks of one reply. It is owned by a
// Session until its completing chunk arrives.
type InFlightMessage struct {
	ID        string
	ReplyID   string
	StartedAt time.Time

	chunks []chunk.Chunk
	sealed bool
}

func (m *InFlightMessage) Sealed() bool { return m != nil && m.sealed }

// Chunks returns a copy of the accumulated chunks in arrival order.
func (m *InFlightMessage) Chunks() []chunk.Chunk {
	if m == nil {
		return nil
	}
	return append([]chunk.Chunk(nil), m.chunks...)
}

func (m *InFlightMessage) render() RenderedMessage {
	res := ui.Render(m.chunks)
	return RenderedMessage{
		ID:          m.ID,
		ReplyID:     m.ReplyID,
		StartedAt:   m.StartedAt,
		Fragments:   res.Fragments,
		Diagnostics: res.Diagnostics,
		ChunkCount:  len(m.chunks),
		IsComplete:  m.sealed,
	}
}

// RenderedMessage is the current display state of a message. It is a value:
// later appends never modify a RenderedMessage already handed out.
type RenderedMessage struct {
	ID          string
	ReplyID     string
	StartedAt   time.Time
	Fragments   []ui.Fragment
	Diagnostics []ui.Diagnostic
	ChunkCount  int
	IsComplete  bool
}

func (m RenderedMessage) HTML() string { return ui.HTML(m.Fragments) }

func (m RenderedMessage) Markdown() string { return ui.Markdown(m.Fragments) }

// StableFragments returns the fragments that no later chunk can change.
// Only the last fragment of an unsealed message may still grow.
func (m RenderedMessage) StableFragments() []ui.Fragment {
	if m.IsComplete || len(m.Fragments) == 0 {
		return m.Fragments
	}
	return m.Fragments[:len(m.Fragments)-1]
}

// DiagnosticsFor returns the diagnostics raised by the chunk at index.
func (m RenderedMessage) DiagnosticsFor(index int) []ui.Diagnostic {
	return ui.Result{Diagnostics: m.Diagnostics}.DiagnosticsFor(index)
}
