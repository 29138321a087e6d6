package script

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	scripts map[string]Script
}

// NewMemoryStore returns a store seeded with the built-in scripts.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{scripts: builtinScripts()}
}

func (s *MemoryStore) Get(_ context.Context, name string) (Script, error) {
	key := normalizeName(name)
	s.mu.RLock()
	sc, ok := s.scripts[key]
	s.mu.RUnlock()
	if !ok {
		return Script{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return Script{Name: sc.Name, Chunks: cloneChunks(sc.Chunks)}, nil
}

func (s *MemoryStore) Put(_ context.Context, sc Script) error {
	n, err := validate(sc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.scripts[n.Name] = n
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.scripts))
	for name := range s.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
