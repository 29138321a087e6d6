// Package reassembly groups a connection's chunk stream into messages and
// keeps a fresh render of the message that is still arriving.
package reassembly

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chunkchat/internal/logging"
)

// Session tracks the in-flight message of one connection. Chunks of a
// connection arrive sequentially, so a Session is not safe for concurrent
// use and needs no lock.
type Session struct {
	log   *zap.Logger
	now   func() time.Time
	newID func(time.Time) string

	current *InFlightMessage
	issued  map[string]struct{}
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = logging.OrNop(l) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces the message id generator. Ids that were already
// issued by this session are regenerated.
func WithIDGenerator(gen func(time.Time) string) Option {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func NewSession(opts ...Option) *Session {
	s := &Session{
		log:    zap.NewNop(),
		now:    time.Now,
		newID:  NewMessageID,
		issued: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMessageID returns "<unix millis>-<random suffix>".
func NewMessageID(at time.Time) string {
	return fmt.Sprintf("%d-%s", at.UnixMilli(), uuid.NewString()[:8])
}

// Append adds one chunk to the open message, opening a new message when none
// is open, and returns the message's full render. A chunk with
// IsComplete seals the message; the next Append opens a fresh one.
func (s *Session) Append(env Envelope) RenderedMessage {
	if s.current != nil && env.ReplyID != "" && s.current.ReplyID != "" && env.ReplyID != s.current.ReplyID {
		s.log.Warn("reply changed before completion; abandoning partial message",
			zap.String("message_id", s.current.ID),
			zap.String("reply_id", s.current.ReplyID),
			zap.String("next_reply_id", env.ReplyID),
			zap.Int("chunks", len(s.current.chunks)),
		)
		s.current = nil
	}
	if s.current == nil {
		s.current = s.open(env.ReplyID)
	}
	msg := s.current
	if msg.ReplyID == "" {
		msg.ReplyID = env.ReplyID
	}

	msg.chunks = append(msg.chunks, env.Chunk.Clone())
	if env.Chunk.IsComplete {
		msg.sealed = true
		s.current = nil
	}

	out := msg.render()
	for _, d := range out.DiagnosticsFor(len(msg.chunks) - 1) {
		s.log.Warn("chunk rendered as empty",
			zap.String("message_id", msg.ID),
			zap.Int("index", d.Index),
			zap.String("type", d.Type),
			zap.String("reason", d.Reason),
		)
	}
	return out
}

// Current returns the render of the open message, if any.
func (s *Session) Current() (RenderedMessage, bool) {
	if s.current == nil {
		return RenderedMessage{}, false
	}
	return s.current.render(), true
}

// Disconnect discards the open message and returns its id. The caller keeps
// whatever it already displayed; no further chunks join that message.
func (s *Session) Disconnect() (string, bool) {
	if s.current == nil {
		return "", false
	}
	id := s.current.ID
	s.log.Info("discarding unfinished message on disconnect",
		zap.String("message_id", id),
		zap.Int("chunks", len(s.current.chunks)),
	)
	s.current = nil
	return id, true
}

func (s *Session) open(replyID string) *InFlightMessage {
	at := s.now()
	id := s.newID(at)
	for attempts := 0; ; attempts++ {
		if _, dup := s.issued[id]; !dup {
			break
		}
		if attempts >= 8 {
			id = NewMessageID(at)
			continue
		}
		id = s.newID(at)
	}
	s.issued[id] = struct{}{}
	return &InFlightMessage{ID: id, ReplyID: replyID, StartedAt: at}
}
