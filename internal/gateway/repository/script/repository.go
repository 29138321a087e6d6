package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"chunkchat/internal/chunk"
)

// ErrNotFound is returned when no script has the requested name.
var ErrNotFound = errors.New("script not found")

// Script is a named, ordered chunk sequence replayed as a reply.
type Script struct {
	Name   string
	Chunks []chunk.Chunk
}

// Store resolves reply scripts by name.
type Store interface {
	Get(ctx context.Context, name string) (Script, error)
	Put(ctx context.Context, s Script) error
	List(ctx context.Context) ([]string, error)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ParseChunks decodes a JSON array of wire chunks. Any element that is not a
// chunk fails the whole script.
func ParseChunks(raw []byte) ([]chunk.Chunk, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("%w: invalid json", chunk.ErrParse)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: script must be an array of chunks", chunk.ErrParse)
	}
	items := root.Array()
	out := make([]chunk.Chunk, 0, len(items))
	for i, item := range items {
		c, err := chunk.FromResult(item)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func cloneChunks(in []chunk.Chunk) []chunk.Chunk {
	out := make([]chunk.Chunk, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func validate(s Script) (Script, error) {
	name := normalizeName(s.Name)
	if name == "" {
		return Script{}, errors.New("script name is required")
	}
	if len(s.Chunks) == 0 {
		return Script{}, fmt.Errorf("script %q has no chunks", name)
	}
	return Script{Name: name, Chunks: cloneChunks(s.Chunks)}, nil
}
