// Package transcript holds the ordered list of entries shown in a chat view.
package transcript

import (
	"context"
	"strings"
	"sync"
	"time"

	"chunkchat/internal/reassembly"
)

type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSystem    Kind = "system"
)

// Entry is one row of the transcript. Message is set for assistant entries
// only.
type Entry struct {
	Kind      Kind
	ID        string
	Sender    string
	Text      string
	Timestamp time.Time
	Message   *reassembly.RenderedMessage
}

// Sealed reports whether the entry can no longer change.
func (e Entry) Sealed() bool {
	return e.Kind != KindAssistant || (e.Message != nil && e.Message.IsComplete)
}

// Store is append-only except for the newest assistant entry, which is
// replaced in place while its message is still arriving. It is safe for
// concurrent use.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	changed chan struct{}
	now     func() time.Time
}

func New() *Store {
	return &Store{
		changed: make(chan struct{}),
		now:     time.Now,
	}
}

// AppendUser records a message typed by the local user.
func (s *Store) AppendUser(sender, text string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := Entry{Kind: KindUser, Sender: strings.TrimSpace(sender), Text: text, Timestamp: s.now()}
	s.entries = append(s.entries, e)
	s.notifyLocked()
	return e
}

// AppendNotice records a system line such as a join or leave notice. A zero
// at uses the store clock.
func (s *Store) AppendNotice(text string, at time.Time) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.IsZero() {
		at = s.now()
	}
	e := Entry{Kind: KindSystem, Text: text, Timestamp: at}
	s.entries = append(s.entries, e)
	s.notifyLocked()
	return e
}

// UpsertAssistant replaces the last entry when it is the unsealed assistant
// entry for the same message, and appends otherwise. It reports whether an
// entry was replaced.
func (s *Store) UpsertAssistant(msg reassembly.RenderedMessage) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{Kind: KindAssistant, ID: msg.ID, Timestamp: msg.StartedAt, Message: &msg}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	replaced := false
	if n := len(s.entries); n > 0 {
		last := s.entries[n-1]
		if last.Kind == KindAssistant && last.ID == msg.ID && !last.Sealed() {
			s.entries[n-1] = e
			replaced = true
		}
	}
	if !replaced {
		s.entries = append(s.entries, e)
	}
	s.notifyLocked()
	return e, replaced
}

// Entries returns a snapshot of the transcript.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Changed returns a channel that is closed on the next mutation.
func (s *Store) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// Watch emits a snapshot now and after every change until ctx is done.
// Snapshots are coalesced: a slow reader only sees the newest one.
func (s *Store) Watch(ctx context.Context) <-chan []Entry {
	out := make(chan []Entry, 1)
	go func() {
		defer close(out)
		for {
			s.mu.Lock()
			snap := append([]Entry(nil), s.entries...)
			ch := s.changed
			s.mu.Unlock()

			pushSnapshot(out, snap)

			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}
	}()
	return out
}

func (s *Store) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func pushSnapshot(out chan []Entry, snap []Entry) {
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- snap:
	default:
	}
}
