package ui

import (
	"fmt"
	"strings"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
)

// markdownEscape makes s literal: inline markup is escaped everywhere and
// block markers are escaped at the start of each line.
func markdownEscape(s string) string {
	lines := strings.Split(markdownEscaper.Replace(s), "\n")
	for i, line := range lines {
		rest := strings.TrimLeft(line, " \t")
		lines[i] = line[:len(line)-len(rest)] + escapeBlockMarker(rest)
	}
	return strings.Join(lines, "\n")
}

func escapeBlockMarker(line string) string {
	if line == "" {
		return line
	}
	switch line[0] {
	case '#', '+', '-', '=':
		return `\` + line
	}
	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits > 0 && digits < len(line) && (line[digits] == '.' || line[digits] == ')') {
		return line[:digits] + `\` + line[digits:]
	}
	return line
}

// Markdown renders fragments as CommonMark for terminal display. Fragments
// are separated by blank lines.
func Markdown(fragments []Fragment) string {
	blocks := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if block := markdownFragment(f); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func markdownFragment(f Fragment) string {
	switch f.Type {
	case FragmentText:
		if f.Text == nil {
			return ""
		}
		text := markdownEscape(f.Text.Text)
		if f.Text.Italic {
			text = "_" + text + "_"
		}
		if f.Text.Bold {
			text = "**" + text + "**"
		}
		return text
	case FragmentImage:
		if f.Image == nil {
			return ""
		}
		out := fmt.Sprintf("![%s](%s)", markdownEscape(f.Image.Alt), safeURL(f.Image.Src))
		if f.Image.Caption != "" {
			out += "\n_" + markdownEscape(f.Image.Caption) + "_"
		}
		return out
	case FragmentButton:
		if f.Button == nil {
			return ""
		}
		return fmt.Sprintf("[%s](%s)", markdownEscape(f.Button.Label), safeURL(f.Button.URL))
	case FragmentList:
		if f.List == nil {
			return ""
		}
		var b strings.Builder
		if f.List.Caption != "" {
			b.WriteString(markdownEscape(f.List.Caption) + "\n\n")
		}
		for i, item := range f.List.Items {
			if i > 0 {
				b.WriteByte('\n')
			}
			if f.List.Ordered {
				fmt.Fprintf(&b, "%d. %s", i+1, markdownEscape(item))
			} else {
				b.WriteString("- " + markdownEscape(item))
			}
		}
		return b.String()
	case FragmentTable:
		if f.Table == nil {
			return ""
		}
		return markdownTable(f.Table)
	default:
		return ""
	}
}

func markdownTable(t *TableState) string {
	width := len(t.Columns)
	for _, row := range t.Rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return ""
	}
	var b strings.Builder
	if t.Caption != "" {
		b.WriteString(markdownEscape(t.Caption) + "\n\n")
	}
	// GFM tables need a header row; a headerless table gets an empty one.
	b.WriteString(tableRow(t.Columns, width) + "\n")
	b.WriteString("|" + strings.Repeat(" --- |", width))
	for _, row := range t.Rows {
		b.WriteString("\n" + tableRow(row, width))
	}
	return b.String()
}

func tableRow(cells []string, width int) string {
	var b strings.Builder
	b.WriteString("|")
	for i := 0; i < width; i++ {
		cell := ""
		if i < len(cells) {
			cell = strings.ReplaceAll(markdownEscape(cells[i]), "|", `\|`)
		}
		b.WriteString(" " + cell + " |")
	}
	return b.String()
}
