package chunk

import "encoding/json"

type wireIcon struct {
	URL      string `json:"url,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Position string `json:"position,omitempty"`
}

type wireAction struct {
	Type   string `json:"type,omitempty"`
	Target string `json:"target,omitempty"`
}

type wireMetadata struct {
	Formatting       string            `json:"formatting,omitempty"`
	Caption          string            `json:"caption,omitempty"`
	Alt              string            `json:"alt,omitempty"`
	Icon             *wireIcon         `json:"icon,omitempty"`
	URL              string            `json:"url,omitempty"`
	Target           string            `json:"target,omitempty"`
	Action           *wireAction       `json:"action,omitempty"`
	Ordered          bool              `json:"ordered,omitempty"`
	ListStyle        string            `json:"list_style,omitempty"`
	Style            map[string]string `json:"style,omitempty"`
	IsListCompleted  bool              `json:"is_list_completed,omitempty"`
	IsTableCompleted bool              `json:"is_table_completed,omitempty"`
}

type wireTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

type wireChunk struct {
	Type       string        `json:"type"`
	Data       any           `json:"data,omitempty"`
	Metadata   *wireMetadata `json:"metadata,omitempty"`
	IsComplete bool          `json:"is_complete"`
}

// MarshalJSON emits the canonical wire shape (`is_complete`, metadata only,
// no legacy top-level fields).
func (c Chunk) MarshalJSON() ([]byte, error) {
	out := wireChunk{
		Type:       c.TypeName(),
		IsComplete: c.IsComplete,
		Metadata:   c.Metadata.wire(),
	}
	switch c.Type {
	case KindText, KindImage, KindButton:
		out.Data = c.Text
	case KindList:
		if c.Items != nil {
			out.Data = c.Items
		}
	case KindTable:
		if c.Table != nil {
			out.Data = wireTable{Headers: nonNil(c.Table.Headers), Rows: nonNilRows(c.Table.Rows)}
		}
	default:
		if c.Text != "" {
			out.Data = c.Text
		}
	}
	return json.Marshal(out)
}

func (m Metadata) wire() *wireMetadata {
	out := &wireMetadata{
		Formatting:       m.Formatting,
		Caption:          m.Caption,
		Alt:              m.Alt,
		URL:              m.URL,
		Target:           m.Target,
		Ordered:          m.Ordered,
		ListStyle:        m.ListStyle,
		Style:            m.Style,
		IsListCompleted:  m.ListCompleted,
		IsTableCompleted: m.TableCompleted,
	}
	if m.Icon != nil {
		out.Icon = &wireIcon{URL: m.Icon.URL, Alt: m.Icon.Alt, Position: string(m.Icon.Position)}
	}
	if m.Action != nil {
		out.Action = &wireAction{Type: m.Action.Type, Target: m.Action.Target}
	}
	if out.empty() {
		return nil
	}
	return out
}

func (w *wireMetadata) empty() bool {
	return w.Formatting == "" && w.Caption == "" && w.Alt == "" && w.Icon == nil &&
		w.URL == "" && w.Target == "" && w.Action == nil && !w.Ordered &&
		w.ListStyle == "" && len(w.Style) == 0 && !w.IsListCompleted && !w.IsTableCompleted
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilRows(in [][]string) [][]string {
	if in == nil {
		return [][]string{}
	}
	return in
}
