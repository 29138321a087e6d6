// Package aggregate folds consecutive list and table chunks into one merged,
// deduplicated structure.
//
// A run starts at a list/table chunk and takes its metadata as authoritative.
// It extends over following chunks of the same kind until one that marks the
// run complete (that chunk is included) or a chunk of another kind (excluded).
package aggregate

import (
	"strings"

	"chunkchat/internal/chunk"
)

type ListRun struct {
	Metadata chunk.Metadata
	Items    []string
	// Chunks is the number of chunks consumed by the run.
	Chunks int
	// Closed is true when the run ended on an explicit completion marker.
	Closed bool
}

func (r ListRun) Empty() bool { return len(r.Items) == 0 }

type TableRun struct {
	Metadata chunk.Metadata
	Headers  []string
	Rows     [][]string
	Chunks   int
	Closed   bool
}

func (r TableRun) Empty() bool { return len(r.Rows) == 0 }

// FoldList folds the list run starting at chunks[start]. It returns the run
// and the index of the first chunk after it. If chunks[start] is not a list
// chunk the run is empty and next == start.
func FoldList(chunks []chunk.Chunk, start int) (ListRun, int) {
	if start < 0 || start >= len(chunks) || chunks[start].Type != chunk.KindList {
		return ListRun{}, start
	}
	run := ListRun{Metadata: chunks[start].Metadata}
	seen := map[string]struct{}{}
	i := start
	for ; i < len(chunks); i++ {
		c := chunks[i]
		if c.Type != chunk.KindList {
			break
		}
		run.Chunks++
		if c.Invalid == "" {
			for _, item := range c.Items {
				if _, dup := seen[item]; dup {
					continue
				}
				seen[item] = struct{}{}
				run.Items = append(run.Items, item)
			}
		}
		if c.RunCompleted() {
			run.Closed = true
			i++
			break
		}
	}
	return run, i
}

// FoldTable is FoldList for table chunks. Headers come from the first chunk
// of the run that carries any; rows are deduplicated by cell-wise equality.
func FoldTable(chunks []chunk.Chunk, start int) (TableRun, int) {
	if start < 0 || start >= len(chunks) || chunks[start].Type != chunk.KindTable {
		return TableRun{}, start
	}
	run := TableRun{Metadata: chunks[start].Metadata}
	seen := map[string]struct{}{}
	i := start
	for ; i < len(chunks); i++ {
		c := chunks[i]
		if c.Type != chunk.KindTable {
			break
		}
		run.Chunks++
		if c.Invalid == "" && c.Table != nil {
			if len(run.Headers) == 0 && len(c.Table.Headers) > 0 {
				run.Headers = append([]string(nil), c.Table.Headers...)
			}
			for _, row := range c.Table.Rows {
				key := rowKey(row)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				run.Rows = append(run.Rows, append([]string(nil), row...))
			}
		}
		if c.RunCompleted() {
			run.Closed = true
			i++
			break
		}
	}
	return run, i
}

// rowKey encodes a row so that two rows share a key iff they have the same
// length and equal cells in order.
func rowKey(row []string) string {
	var b strings.Builder
	for _, cell := range row {
		b.WriteString(strings.ReplaceAll(cell, "\x00", "\x00\x00"))
		b.WriteString("\x00|")
	}
	return b.String()
}
