package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tidwall/gjson"

	"chunkchat/internal/chunk"
)

// FileStore keeps scripts in one JSON document mapping script names to chunk
// arrays. Built-in scripts are served when the file does not define them.
type FileStore struct {
	path string

	loadOnce sync.Once
	loadErr  error
	mu       sync.RWMutex
	byName   map[string]Script
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		byName: builtinScripts(),
	}
}

func (s *FileStore) ensureLoaded() error {
	s.loadOnce.Do(func() {
		b, err := os.ReadFile(s.path)
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil {
			s.loadErr = fmt.Errorf("read scripts %s: %w", s.path, err)
			return
		}
		if !gjson.ValidBytes(b) {
			s.loadErr = fmt.Errorf("read scripts %s: %w: invalid json", s.path, chunk.ErrParse)
			return
		}
		loaded := map[string]Script{}
		gjson.ParseBytes(b).ForEach(func(key, value gjson.Result) bool {
			name := normalizeName(key.String())
			if name == "" {
				return true
			}
			chunks, err := ParseChunks([]byte(value.Raw))
			if err != nil {
				s.loadErr = fmt.Errorf("script %q: %w", name, err)
				return false
			}
			loaded[name] = Script{Name: name, Chunks: chunks}
			return true
		})
		if s.loadErr != nil {
			return
		}
		s.mu.Lock()
		for name, sc := range loaded {
			s.byName[name] = sc
		}
		s.mu.Unlock()
	})
	return s.loadErr
}

func (s *FileStore) Get(_ context.Context, name string) (Script, error) {
	if err := s.ensureLoaded(); err != nil {
		return Script{}, err
	}
	key := normalizeName(name)
	s.mu.RLock()
	sc, ok := s.byName[key]
	s.mu.RUnlock()
	if !ok {
		return Script{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return Script{Name: sc.Name, Chunks: cloneChunks(sc.Chunks)}, nil
}

func (s *FileStore) Put(_ context.Context, sc Script) error {
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	n, err := validate(sc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.byName[n.Name] = n
	doc := make(map[string][]chunk.Chunk, len(s.byName))
	for name, v := range s.byName {
		doc[name] = v.Chunks
	}
	s.mu.Unlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scripts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("write scripts %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write scripts %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
