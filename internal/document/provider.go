package document

import "encoding/json"

// Snapshot holds both serializations and the plain text of one document state.
type Snapshot struct {
	HTML string
	JSON json.RawMessage
	Text string
}

// Range addresses top-level blocks [From, To). From == To is a cursor between blocks.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (r Range) Empty() bool { return r.From == r.To }

// Provider is the stable read and command surface of the rich-text engine.
// The autosaver, the assist dispatcher and the publisher only see this.
type Provider interface {
	HTML() string
	JSON() json.RawMessage
	Text() string
	Snapshot() Snapshot
	Stats() Stats
	Selection() (Range, bool)

	SetSelection(r Range) error
	ClearSelection()
	Replace(doc *Node) error

	ToggleMark(kind MarkKind) error
	SetHeading(level int) error
	ToggleList(kind ListKind) error
	SetLink(href string) error
	SetImage(src, alt string) error
	InsertContent(fragment []*Node) error

	OnUpdate(fn func(Snapshot))
}

var _ Provider = (*Tree)(nil)
