package presence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"chunkchat/internal/chatwire"
)

// Notice is a system line broadcast to every connection.
type Notice struct {
	Text string
	At   time.Time
}

// Service tracks the display name of each connection and broadcasts join and
// leave notices.
type Service struct {
	mu    sync.Mutex
	names map[string]string
	subs  map[string]chan Notice
	now   func() time.Time
}

func New() *Service {
	return &Service{
		names: make(map[string]string),
		subs:  make(map[string]chan Notice),
		now:   time.Now,
	}
}

// Subscribe registers connID for notices until ctx is done. A slow reader
// loses its oldest notice rather than blocking the broadcaster.
func (s *Service) Subscribe(ctx context.Context, connID string) (<-chan Notice, error) {
	connID = strings.TrimSpace(connID)
	if connID == "" {
		return nil, fmt.Errorf("connection id is required")
	}
	ch := make(chan Notice, 16)

	s.mu.Lock()
	if _, dup := s.subs[connID]; dup {
		s.mu.Unlock()
		return nil, fmt.Errorf("connection %q already subscribed", connID)
	}
	s.subs[connID] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, connID)
		s.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// Join names a connection and announces it. Renaming an already named
// connection announces the new name.
func (s *Service) Join(connID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[connID] = name
	s.broadcastLocked(Notice{Text: chatwire.JoinedNotice(name), At: s.now()})
	return nil
}

// Leave forgets a connection and announces its departure if it had a name.
func (s *Service) Leave(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[connID]
	if !ok {
		return
	}
	delete(s.names, connID)
	s.broadcastLocked(Notice{Text: chatwire.LeftNotice(name), At: s.now()})
}

func (s *Service) Name(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.names[connID]
	return name, ok
}

func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.names)
}

func (s *Service) broadcastLocked(n Notice) {
	for _, ch := range s.subs {
		pushNotice(ch, n)
	}
}

func pushNotice(out chan Notice, n Notice) {
	select {
	case out <- n:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- n:
	default:
	}
}
