package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the declared type of a chunk.
type Kind string

const (
	KindText    Kind = "text"
	KindImage   Kind = "image"
	KindButton  Kind = "button"
	KindList    Kind = "list"
	KindTable   Kind = "table"
	KindUnknown Kind = "unknown"
)

// KindOf maps a wire type tag to a Kind. Unrecognized tags map to KindUnknown.
func KindOf(tag string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(tag))) {
	case KindText:
		return KindText
	case KindImage:
		return KindImage
	case KindButton:
		return KindButton
	case KindList:
		return KindList
	case KindTable:
		return KindTable
	default:
		return KindUnknown
	}
}

// IsAggregate reports whether chunks of this kind are folded into runs.
func (k Kind) IsAggregate() bool {
	return k == KindList || k == KindTable
}

type IconPosition string

const (
	IconLeft  IconPosition = "left"
	IconRight IconPosition = "right"
)

type Icon struct {
	URL      string
	Alt      string
	Position IconPosition
}

// Action is a structured navigation target for buttons.
type Action struct {
	Type   string
	Target string
}

const ActionNavigate = "navigate"

type Metadata struct {
	Formatting string
	Caption    string
	Alt        string
	Icon       *Icon
	URL        string
	Target     string
	Action     *Action
	Ordered    bool
	ListStyle  string
	Style      map[string]string

	ListCompleted  bool
	TableCompleted bool
}

type TableData struct {
	Headers []string
	Rows    [][]string
}

// Chunk is one typed fragment of a streamed reply. Values are treated as
// immutable once built; use Clone before handing a copy to another owner.
type Chunk struct {
	Type Kind
	// RawType keeps the wire tag for unknown kinds.
	RawType string

	Text  string
	Items []string
	Table *TableData

	Metadata   Metadata
	IsComplete bool

	// Invalid is set by the decoder when the payload required by Type is
	// absent or has the wrong shape.
	Invalid string
}

// ErrInvalidPayload is returned by Validate for chunks that cannot render.
var ErrInvalidPayload = errors.New("invalid chunk payload")

// Validate reports whether the chunk carries the data its kind requires.
// Unknown kinds are not an error here; callers decide how to treat them.
func (c Chunk) Validate() error {
	if c.Invalid != "" {
		return fmt.Errorf("%w: %s", ErrInvalidPayload, c.Invalid)
	}
	switch c.Type {
	case KindText, KindUnknown:
		return nil
	case KindImage:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: image source is required", ErrInvalidPayload)
		}
	case KindButton:
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("%w: button label is required", ErrInvalidPayload)
		}
	case KindList:
		if c.Items == nil {
			return fmt.Errorf("%w: list items are required", ErrInvalidPayload)
		}
	case KindTable:
		if c.Table == nil {
			return fmt.Errorf("%w: table data is required", ErrInvalidPayload)
		}
	default:
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidPayload, c.Type)
	}
	return nil
}

// TypeName returns the tag to report in diagnostics.
func (c Chunk) TypeName() string {
	if c.Type == KindUnknown && strings.TrimSpace(c.RawType) != "" {
		return c.RawType
	}
	return string(c.Type)
}

// RunCompleted reports whether this chunk closes the aggregate run it
// belongs to.
func (c Chunk) RunCompleted() bool {
	switch c.Type {
	case KindList:
		return c.Metadata.ListCompleted
	case KindTable:
		return c.Metadata.TableCompleted
	default:
		return false
	}
}

// Clone returns a deep copy.
func (c Chunk) Clone() Chunk {
	out := c
	if c.Items != nil {
		out.Items = append([]string(nil), c.Items...)
	}
	if c.Table != nil {
		out.Table = &TableData{
			Headers: append([]string(nil), c.Table.Headers...),
			Rows:    cloneRows(c.Table.Rows),
		}
	}
	out.Metadata = c.Metadata.clone()
	return out
}

func (m Metadata) clone() Metadata {
	out := m
	if m.Icon != nil {
		icon := *m.Icon
		out.Icon = &icon
	}
	if m.Action != nil {
		action := *m.Action
		out.Action = &action
	}
	if m.Style != nil {
		out.Style = make(map[string]string, len(m.Style))
		for k, v := range m.Style {
			out.Style[k] = v
		}
	}
	return out
}

func cloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}

func Text(text string) Chunk {
	return Chunk{Type: KindText, Text: text}
}

func Image(src, alt, caption string) Chunk {
	return Chunk{Type: KindImage, Text: src, Metadata: Metadata{Alt: alt, Caption: caption}}
}

func Button(label, url string) Chunk {
	return Chunk{Type: KindButton, Text: label, Metadata: Metadata{URL: url}}
}

func List(items ...string) Chunk {
	if items == nil {
		items = []string{}
	}
	return Chunk{Type: KindList, Items: items}
}

func Table(headers []string, rows ...[]string) Chunk {
	return Chunk{Type: KindTable, Table: &TableData{Headers: headers, Rows: rows}}
}

// Complete returns a copy flagged as the last chunk of its message.
func (c Chunk) Complete() Chunk {
	c.IsComplete = true
	return c
}
