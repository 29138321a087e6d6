package ui

import "chunkchat/internal/chunk"

type FragmentType string

const (
	FragmentText   FragmentType = "text"
	FragmentImage  FragmentType = "image"
	FragmentButton FragmentType = "button"
	FragmentList   FragmentType = "list"
	FragmentTable  FragmentType = "table"
)

type TextState struct {
	Text   string
	Bold   bool
	Italic bool
	Style  map[string]string
}

type ImageState struct {
	Src     string
	Alt     string
	Caption string
	Style   map[string]string
}

type IconState struct {
	URL      string
	Alt      string
	Position chunk.IconPosition
}

type ButtonState struct {
	Label  string
	URL    string
	Target string
	Icon   *IconState
	Style  map[string]string
}

type ListState struct {
	Items   []string
	Ordered bool
	Caption string
}

type TableState struct {
	Caption string
	Columns []string
	Rows    [][]string
}

// Fragment is the display form of one chunk or of one merged aggregate run.
// Exactly one state pointer matching Type is set.
type Fragment struct {
	Type FragmentType
	// Index is the position of the first chunk the fragment was built from.
	Index  int
	Text   *TextState
	Image  *ImageState
	Button *ButtonState
	List   *ListState
	Table  *TableState
}

// Diagnostic describes a chunk that produced no visible output.
type Diagnostic struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
