package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"chunkchat/internal/logging"
)

// FallbackStore serves from primary and falls back to the built-in scripts
// for names primary does not know.
type FallbackStore struct {
	primary  Store
	builtins *MemoryStore
}

func (s *FallbackStore) Get(ctx context.Context, name string) (Script, error) {
	sc, err := s.primary.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return s.builtins.Get(ctx, name)
	}
	return sc, err
}

func (s *FallbackStore) Put(ctx context.Context, sc Script) error {
	return s.primary.Put(ctx, sc)
}

func (s *FallbackStore) List(ctx context.Context) ([]string, error) {
	names, err := s.primary.List(ctx)
	if err != nil {
		return nil, err
	}
	builtin, _ := s.builtins.List(ctx)
	seen := map[string]struct{}{}
	out := make([]string, 0, len(names)+len(builtin))
	for _, n := range append(names, builtin...) {
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func (s *FallbackStore) Close() error {
	if c, ok := s.primary.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NewFromEnv picks the Postgres store when dsn is set, else the file store
// when path is set, else the built-in scripts. A Postgres store that cannot
// be reached falls back to the next option.
func NewFromEnv(ctx context.Context, dsn, path string, log *zap.Logger) Store {
	log = logging.OrNop(log)
	if dsn = strings.TrimSpace(dsn); dsn != "" {
		pg, err := NewPostgresStore(ctx, dsn)
		if err == nil {
			log.Info("script store: postgres")
			return &FallbackStore{primary: pg, builtins: NewMemoryStore()}
		}
		log.Warn("script store: postgres unavailable, falling back", zap.Error(err))
	}
	if path = strings.TrimSpace(path); path != "" {
		log.Info("script store: file", zap.String("path", path))
		return NewFileStore(path)
	}
	log.Info("script store: built-in")
	return NewMemoryStore()
}

// Describe is a short human-readable name for the backend.
func Describe(s Store) string {
	switch v := s.(type) {
	case *FallbackStore:
		return fmt.Sprintf("%s+builtin", Describe(v.primary))
	case *PostgresStore:
		return "postgres"
	case *FileStore:
		return "file"
	case *MemoryStore:
		return "memory"
	default:
		return fmt.Sprintf("%T", s)
	}
}
