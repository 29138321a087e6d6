package ui

import (
	"fmt"

	"chunkchat/internal/aggregate"
	"chunkchat/internal/chunk"
)

// Result is the render of a whole chunk sequence.
type Result struct {
	Fragments   []Fragment
	Diagnostics []Diagnostic
}

// Render maps an ordered chunk sequence to display fragments. It is a pure
// function of its input: list and table chunks are folded into merged runs,
// every other chunk maps to at most one fragment, and chunks that cannot be
// shown yield a Diagnostic instead of an error.
func Render(chunks []chunk.Chunk) Result {
	var out Result
	for i := 0; i < len(chunks); {
		c := chunks[i]
		switch c.Type {
		case chunk.KindList:
			run, next := aggregate.FoldList(chunks, i)
			if !run.Empty() {
				out.Fragments = append(out.Fragments, buildListFragment(i, run))
			}
			out.diagnoseRun(chunks, i, next)
			i = next
			continue
		case chunk.KindTable:
			run, next := aggregate.FoldTable(chunks, i)
			if !run.Empty() {
				out.Fragments = append(out.Fragments, buildTableFragment(i, run))
			}
			out.diagnoseRun(chunks, i, next)
			i = next
			continue
		case chunk.KindText:
			if err := c.Validate(); err != nil {
				out.diagnose(i, c, err.Error())
				break
			}
			if f, ok := buildTextFragment(i, c); ok {
				out.Fragments = append(out.Fragments, f)
			}
		case chunk.KindImage:
			if err := c.Validate(); err != nil {
				out.diagnose(i, c, err.Error())
				break
			}
			out.Fragments = append(out.Fragments, buildImageFragment(i, c))
		case chunk.KindButton:
			if err := c.Validate(); err != nil {
				out.diagnose(i, c, err.Error())
				break
			}
			f, ok := buildButtonFragment(i, c)
			if !ok {
				out.diagnose(i, c, "button has no target")
				break
			}
			out.Fragments = append(out.Fragments, f)
		case chunk.KindUnknown:
			out.diagnose(i, c, "unhandled chunk type")
		default:
			out.diagnose(i, c, fmt.Sprintf("unsupported kind %q", c.Type))
		}
		i++
	}
	return out
}

func (r *Result) diagnose(index int, c chunk.Chunk, reason string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Index:  index,
		Type:   c.TypeName(),
		Reason: reason,
	})
}

func (r *Result) diagnoseRun(chunks []chunk.Chunk, from, to int) {
	for j := from; j < to; j++ {
		if err := chunks[j].Validate(); err != nil {
			r.diagnose(j, chunks[j], err.Error())
		}
	}
}

// DiagnosticsFor returns the diagnostics raised by the chunk at index.
func (r Result) DiagnosticsFor(index int) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Index == index {
			out = append(out, d)
		}
	}
	return out
}
