package chunk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrParse marks an inbound unit that is not a chunk at all.
var ErrParse = errors.New("chunk: parse failure")

// Parse normalizes one wire chunk into the canonical Chunk. It accepts both
// `is_complete` and `isComplete`, and folds the legacy top-level `alt`,
// `style` and `action` fields into Metadata.
//
// Only units that are not chunk-shaped fail with ErrParse. A recognized type
// with a missing or mistyped payload parses successfully with Invalid set,
// so its completion flag still takes effect.
func Parse(raw []byte) (Chunk, error) {
	if !gjson.ValidBytes(raw) {
		return Chunk{}, fmt.Errorf("%w: invalid json", ErrParse)
	}
	root := gjson.ParseBytes(raw)
	return FromResult(root)
}

// FromResult is Parse for an already-parsed gjson value.
func FromResult(root gjson.Result) (Chunk, error) {
	if !root.IsObject() {
		return Chunk{}, fmt.Errorf("%w: chunk must be an object", ErrParse)
	}
	tag := strings.TrimSpace(root.Get("type").String())
	if root.Get("type").Type != gjson.String || tag == "" {
		return Chunk{}, fmt.Errorf("%w: type is required", ErrParse)
	}

	c := Chunk{
		Type:       KindOf(tag),
		IsComplete: firstBool(root, "is_complete", "isComplete"),
	}
	if c.Type == KindUnknown {
		c.RawType = tag
	}

	meta := root.Get("metadata")
	c.Metadata = parseMetadata(meta)
	applyLegacyFields(root, &c.Metadata)

	data := root.Get("data")
	switch c.Type {
	case KindText, KindImage, KindButton:
		text, ok := scalarString(data)
		if !ok {
			c.Invalid = fmt.Sprintf("%s data must be a string", c.Type)
			break
		}
		c.Text = text
	case KindList:
		if !data.IsArray() {
			c.Invalid = "list data must be an array"
			break
		}
		items := make([]string, 0, len(data.Array()))
		for _, item := range data.Array() {
			if item.Type == gjson.Null {
				continue
			}
			items = append(items, item.String())
		}
		c.Items = items
	case KindTable:
		table, reason := parseTable(data, meta)
		if reason != "" {
			c.Invalid = reason
			break
		}
		c.Table = table
	default:
	}
	return c, nil
}

// UnmarshalJSON decodes through Parse so every entry point normalizes the
// same way.
func (c *Chunk) UnmarshalJSON(raw []byte) error {
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func parseTable(data, meta gjson.Result) (*TableData, string) {
	var headers, rows gjson.Result
	switch {
	case data.IsObject():
		headers = data.Get("headers")
		rows = data.Get("rows")
	case data.IsArray():
		rows = data
	default:
		return nil, "table data must be an object with headers and rows"
	}
	if !headers.Exists() {
		headers = meta.Get("headers")
	}
	if !headers.Exists() && !rows.Exists() {
		return nil, "table data has neither headers nor rows"
	}
	if rows.Exists() && !rows.IsArray() {
		return nil, "table rows must be an array"
	}

	out := &TableData{}
	if headers.IsArray() {
		for _, h := range headers.Array() {
			out.Headers = append(out.Headers, h.String())
		}
	}
	for _, row := range rows.Array() {
		if !row.IsArray() {
			continue
		}
		cells := make([]string, 0, len(row.Array()))
		for _, cell := range row.Array() {
			cells = append(cells, cell.String())
		}
		out.Rows = append(out.Rows, cells)
	}
	return out, ""
}

func parseMetadata(meta gjson.Result) Metadata {
	if !meta.IsObject() {
		return Metadata{}
	}
	m := Metadata{
		Formatting:     strings.ToLower(strings.TrimSpace(meta.Get("formatting").String())),
		Caption:        meta.Get("caption").String(),
		Alt:            meta.Get("alt").String(),
		URL:            strings.TrimSpace(meta.Get("url").String()),
		Target:         strings.TrimSpace(meta.Get("target").String()),
		ListCompleted:  firstBool(meta, "is_list_completed", "isListCompleted"),
		TableCompleted: firstBool(meta, "is_table_completed", "isTableCompleted"),
	}
	if icon := meta.Get("icon"); icon.IsObject() {
		m.Icon = &Icon{
			URL:      strings.TrimSpace(icon.Get("url").String()),
			Alt:      icon.Get("alt").String(),
			Position: IconPosition(strings.ToLower(strings.TrimSpace(icon.Get("position").String()))),
		}
	}
	if action := meta.Get("action"); action.IsObject() {
		m.Action = parseAction(action)
	}

	switch ordered := meta.Get("ordered"); ordered.Type {
	case gjson.True, gjson.False:
		m.Ordered = ordered.Bool()
	}
	if ordering := strings.ToLower(meta.Get("ordering").String()); ordering == "ordered" || ordering == "numeric" {
		m.Ordered = true
	}

	style := meta.Get("style")
	switch {
	case style.IsObject():
		m.Style = styleMap(style)
	case style.Type == gjson.String:
		m.ListStyle = strings.ToLower(strings.TrimSpace(style.String()))
	}
	if ls := firstString(meta, "list_style", "listStyle"); ls != "" {
		m.ListStyle = strings.ToLower(ls)
	}
	return m
}

func applyLegacyFields(root gjson.Result, m *Metadata) {
	if m.Alt == "" {
		if alt := root.Get("alt"); alt.Type == gjson.String {
			m.Alt = alt.String()
		}
	}
	if m.Style == nil {
		if style := root.Get("style"); style.IsObject() {
			m.Style = styleMap(style)
		}
	}
	if m.Action == nil {
		if action := root.Get("action"); action.IsObject() {
			m.Action = parseAction(action)
		}
	}
}

func parseAction(action gjson.Result) *Action {
	a := &Action{
		Type:   strings.ToLower(strings.TrimSpace(action.Get("type").String())),
		Target: strings.TrimSpace(action.Get("target").String()),
	}
	if a.Type == "" && a.Target == "" {
		return nil
	}
	return a
}

func styleMap(style gjson.Result) map[string]string {
	out := map[string]string{}
	style.ForEach(func(key, value gjson.Result) bool {
		k := strings.TrimSpace(key.String())
		if k != "" && !value.IsObject() && !value.IsArray() {
			out[k] = value.String()
		}
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

func scalarString(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String, gjson.Number:
		return v.String(), true
	default:
		return "", false
	}
}

func firstBool(obj gjson.Result, keys ...string) bool {
	for _, key := range keys {
		v := obj.Get(key)
		switch v.Type {
		case gjson.True:
			return true
		case gjson.False:
			return false
		case gjson.String:
			return strings.EqualFold(strings.TrimSpace(v.String()), "true")
		}
	}
	return false
}

func firstString(obj gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(obj.Get(key).String()); v != "" {
			return v
		}
	}
	return ""
}
