package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"chunkchat/internal/transcript"
	"chunkchat/internal/ui"
)

// printer writes a transcript to a terminal as it grows. Lines already
// written cannot be taken back, so an assistant message is printed one
// fragment at a time as each fragment stops changing.
type printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer

	// cursor is the first entry not yet fully printed.
	cursor int
	// printed counts fragments already written per message id.
	printed map[string]int
}

func newPrinter(out io.Writer, renderer *glamour.TermRenderer) *printer {
	return &printer{out: out, renderer: renderer, printed: map[string]int{}}
}

func newRenderer(plain bool, width int) (*glamour.TermRenderer, error) {
	if plain {
		return nil, nil
	}
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

// Follow prints every snapshot until the channel closes.
func (p *printer) Follow(ctx context.Context, snapshots <-chan []transcript.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			p.Print(snap)
		}
	}
}

// Print writes whatever part of entries has settled since the last call.
func (p *printer) Print(entries []transcript.Entry) {
	for p.cursor < len(entries) {
		e := entries[p.cursor]
		switch e.Kind {
		case transcript.KindUser:
			// readline already echoed the line.
		case transcript.KindSystem:
			fmt.Fprintf(p.out, "* %s\n", e.Text)
		case transcript.KindAssistant:
			// A later entry means this message was abandoned and will not grow.
			settled := e.Sealed() || p.cursor < len(entries)-1
			p.printMessage(e, settled)
			if !settled {
				return
			}
			delete(p.printed, e.ID)
		}
		p.cursor++
	}
}

func (p *printer) printMessage(e transcript.Entry, settled bool) {
	if e.Message == nil {
		return
	}
	frags := e.Message.StableFragments()
	if settled {
		frags = e.Message.Fragments
	}
	done := p.printed[e.ID]
	if done >= len(frags) {
		return
	}
	if done == 0 {
		fmt.Fprintf(p.out, "[%s]\n", e.Timestamp.Format("15:04:05"))
	}
	p.write(ui.Markdown(frags[done:]))
	p.printed[e.ID] = len(frags)
}

func (p *printer) write(md string) {
	if strings.TrimSpace(md) == "" {
		return
	}
	if p.renderer != nil {
		if styled, err := p.renderer.Render(md); err == nil {
			fmt.Fprint(p.out, styled)
			return
		}
	}
	fmt.Fprintln(p.out, md)
}
