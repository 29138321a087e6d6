package ui

import (
	"html"
	"net/url"
	"sort"
	"strings"
)

// HTML renders fragments as an HTML snippet. All text and attribute values
// are escaped; links with a scheme other than http, https or mailto are
// replaced by "#".
func HTML(fragments []Fragment) string {
	var b strings.Builder
	for _, f := range fragments {
		writeHTMLFragment(&b, f)
	}
	return b.String()
}

func writeHTMLFragment(b *strings.Builder, f Fragment) {
	switch f.Type {
	case FragmentText:
		if f.Text == nil {
			return
		}
		text := html.EscapeString(f.Text.Text)
		if f.Text.Italic {
			text = "<em>" + text + "</em>"
		}
		if f.Text.Bold {
			text = "<strong>" + text + "</strong>"
		}
		b.WriteString("<span" + styleAttr(f.Text.Style) + ">" + text + "</span>")
	case FragmentImage:
		if f.Image == nil {
			return
		}
		b.WriteString("<figure><img src=\"" + attr(safeURL(f.Image.Src)) + "\" alt=\"" + attr(f.Image.Alt) + "\"" + styleAttr(f.Image.Style) + "/>")
		if f.Image.Caption != "" {
			b.WriteString("<figcaption>" + html.EscapeString(f.Image.Caption) + "</figcaption>")
		}
		b.WriteString("</figure>")
	case FragmentButton:
		if f.Button == nil {
			return
		}
		b.WriteString("<a class=\"chunk-button\" href=\"" + attr(safeURL(f.Button.URL)) + "\" target=\"" + attr(f.Button.Target) + "\" rel=\"noopener noreferrer\"" + styleAttr(f.Button.Style) + ">")
		icon := ""
		if f.Button.Icon != nil {
			icon = "<img class=\"chunk-icon\" src=\"" + attr(safeURL(f.Button.Icon.URL)) + "\" alt=\"" + attr(f.Button.Icon.Alt) + "\"/>"
		}
		if icon != "" && f.Button.Icon.Position != "right" {
			b.WriteString(icon)
		}
		b.WriteString(html.EscapeString(f.Button.Label))
		if icon != "" && f.Button.Icon.Position == "right" {
			b.WriteString(icon)
		}
		b.WriteString("</a>")
	case FragmentList:
		if f.List == nil {
			return
		}
		tag := "ul"
		if f.List.Ordered {
			tag = "ol"
		}
		if f.List.Caption != "" {
			b.WriteString("<p class=\"chunk-caption\">" + html.EscapeString(f.List.Caption) + "</p>")
		}
		b.WriteString("<" + tag + ">")
		for _, item := range f.List.Items {
			b.WriteString("<li>" + html.EscapeString(item) + "</li>")
		}
		b.WriteString("</" + tag + ">")
	case FragmentTable:
		if f.Table == nil {
			return
		}
		b.WriteString("<table>")
		if f.Table.Caption != "" {
			b.WriteString("<caption>" + html.EscapeString(f.Table.Caption) + "</caption>")
		}
		if len(f.Table.Columns) > 0 {
			b.WriteString("<thead><tr>")
			for _, col := range f.Table.Columns {
				b.WriteString("<th>" + html.EscapeString(col) + "</th>")
			}
			b.WriteString("</tr></thead>")
		}
		b.WriteString("<tbody>")
		for _, row := range f.Table.Rows {
			b.WriteString("<tr>")
			for _, cell := range row {
				b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody></table>")
	}
}

func attr(s string) string {
	return html.EscapeString(s)
}

func styleAttr(style map[string]string) string {
	if len(style) == 0 {
		return ""
	}
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, cssProperty(k)+": "+style[k])
	}
	return " style=\"" + attr(strings.Join(parts, "; ")) + "\""
}

// cssProperty converts camelCase keys (fontWeight) to CSS names (font-weight).
func cssProperty(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func safeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return raw
	default:
		return "#"
	}
}
