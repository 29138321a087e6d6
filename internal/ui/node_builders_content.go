package ui

import (
	"strings"

	"chunkchat/internal/aggregate"
	"chunkchat/internal/chunk"
)

const (
	defaultImageAlt     = "Image"
	defaultButtonTarget = "_self"
)

func buildTextFragment(index int, c chunk.Chunk) (Fragment, bool) {
	if c.Text == "" {
		return Fragment{}, false
	}
	state := &TextState{
		Text:  c.Text,
		Style: c.Metadata.Style,
	}
	switch c.Metadata.Formatting {
	case "bold", "strong":
		state.Bold = true
	case "italic", "emphasis", "em":
		state.Italic = true
	case "bold-italic", "bold_italic":
		state.Bold, state.Italic = true, true
	}
	if strings.EqualFold(c.Metadata.Style["fontWeight"], "bold") {
		state.Bold = true
	}
	if strings.EqualFold(c.Metadata.Style["fontStyle"], "italic") {
		state.Italic = true
	}
	return Fragment{Type: FragmentText, Index: index, Text: state}, true
}

func buildImageFragment(index int, c chunk.Chunk) Fragment {
	alt := strings.TrimSpace(c.Metadata.Alt)
	if alt == "" {
		alt = defaultImageAlt
	}
	return Fragment{
		Type:  FragmentImage,
		Index: index,
		Image: &ImageState{
			Src:     strings.TrimSpace(c.Text),
			Alt:     alt,
			Caption: strings.TrimSpace(c.Metadata.Caption),
			Style:   c.Metadata.Style,
		},
	}
}

// buildButtonFragment returns false when the button has nowhere to go.
func buildButtonFragment(index int, c chunk.Chunk) (Fragment, bool) {
	url := strings.TrimSpace(c.Metadata.URL)
	if url == "" && c.Metadata.Action != nil && c.Metadata.Action.Type == chunk.ActionNavigate {
		url = strings.TrimSpace(c.Metadata.Action.Target)
	}
	if url == "" {
		return Fragment{}, false
	}
	target := strings.TrimSpace(c.Metadata.Target)
	if target == "" {
		target = defaultButtonTarget
	}
	state := &ButtonState{
		Label:  strings.TrimSpace(c.Text),
		URL:    url,
		Target: target,
		Style:  c.Metadata.Style,
	}
	if icon := c.Metadata.Icon; icon != nil && strings.TrimSpace(icon.URL) != "" {
		pos := icon.Position
		if pos != chunk.IconRight {
			pos = chunk.IconLeft
		}
		alt := strings.TrimSpace(icon.Alt)
		if alt == "" {
			alt = "Icon"
		}
		state.Icon = &IconState{URL: strings.TrimSpace(icon.URL), Alt: alt, Position: pos}
	}
	return Fragment{Type: FragmentButton, Index: index, Button: state}, true
}

func buildListFragment(index int, run aggregate.ListRun) Fragment {
	return Fragment{
		Type:  FragmentList,
		Index: index,
		List: &ListState{
			Items:   append([]string(nil), run.Items...),
			Ordered: isOrdered(run.Metadata),
			Caption: strings.TrimSpace(run.Metadata.Caption),
		},
	}
}

func buildTableFragment(index int, run aggregate.TableRun) Fragment {
	return Fragment{
		Type:  FragmentTable,
		Index: index,
		Table: &TableState{
			Caption: strings.TrimSpace(run.Metadata.Caption),
			Columns: append([]string(nil), run.Headers...),
			Rows:    append([][]string(nil), run.Rows...),
		},
	}
}

func isOrdered(meta chunk.Metadata) bool {
	if meta.Ordered {
		return true
	}
	switch meta.ListStyle {
	case "numeric", "number", "decimal", "ordered":
		return true
	default:
		return false
	}
}
