package script

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultCacheSize = 256

// PostgresStore keeps scripts in the reply_scripts table. Parsed scripts are
// cached by name; Put invalidates the entry.
type PostgresStore struct {
	db    *sql.DB
	cache *lru.Cache[string, Script]

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open script db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping script db: %w", err)
	}
	s, err := newPostgresStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newPostgresStore(db *sql.DB) (*PostgresStore, error) {
	cache, err := lru.New[string, Script](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, cache: cache}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// ensureSchema creates the table once. The DDL does not inherit the
// caller's cancellation, and a failed attempt is retried on the next call.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	_, err := s.db.ExecContext(context.WithoutCancel(ctx), `
CREATE TABLE IF NOT EXISTS reply_scripts (
  name TEXT PRIMARY KEY,
  chunks JSONB NOT NULL,
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`)
	if err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) (Script, error) {
	key := normalizeName(name)
	if cached, ok := s.cache.Get(key); ok {
		return Script{Name: cached.Name, Chunks: cloneChunks(cached.Chunks)}, nil
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Script{}, fmt.Errorf("ensure script schema: %w", err)
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT chunks FROM reply_scripts WHERE name = $1`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Script{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return Script{}, fmt.Errorf("load script %q: %w", key, err)
	}
	chunks, err := ParseChunks(raw)
	if err != nil {
		return Script{}, fmt.Errorf("script %q: %w", key, err)
	}
	sc := Script{Name: key, Chunks: chunks}
	s.cache.Add(key, sc)
	return Script{Name: key, Chunks: cloneChunks(chunks)}, nil
}

func (s *PostgresStore) Put(ctx context.Context, sc Script) error {
	n, err := validate(sc)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure script schema: %w", err)
	}
	raw, err := json.Marshal(n.Chunks)
	if err != nil {
		return fmt.Errorf("encode script %q: %w", n.Name, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO reply_scripts (name, chunks, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (name)
DO UPDATE SET chunks = EXCLUDED.chunks, updated_at = NOW()`, n.Name, string(raw))
	if err != nil {
		return fmt.Errorf("save script %q: %w", n.Name, err)
	}
	s.cache.Remove(n.Name)
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure script schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM reply_scripts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list scripts: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
