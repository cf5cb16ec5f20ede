// Package document owns the rich-text tree edited in the composer.
//
// Nodes follow the ProseMirror/TipTap JSON shape (type, attrs, content, text, marks) so the
// browser editor and the persisted body_json slot share one format. The tree is only ever
// mutated through the command methods on Tree.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	NodeDoc            = "doc"
	NodeParagraph      = "paragraph"
	NodeHeading        = "heading"
	NodeBulletList     = "bulletList"
	NodeOrderedList    = "orderedList"
	NodeListItem       = "listItem"
	NodeBlockquote     = "blockquote"
	NodeCodeBlock      = "codeBlock"
	NodeHorizontalRule = "horizontalRule"
	NodeImage          = "image"
	NodeText           = "text"
	NodeHardBreak      = "hardBreak"
)

type MarkKind string

const (
	MarkBold      MarkKind = "bold"
	MarkItalic    MarkKind = "italic"
	MarkCode      MarkKind = "code"
	MarkStrike    MarkKind = "strike"
	MarkUnderline MarkKind = "underline"
	MarkLink      MarkKind = "link"
)

type ListKind string

const (
	BulletList  ListKind = NodeBulletList
	OrderedList ListKind = NodeOrderedList
)

var ErrNotDocument = errors.New("root node is not a document")

type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

type Mark struct {
	Type  MarkKind       `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

func NewDoc(blocks ...*Node) *Node {
	return &Node{Type: NodeDoc, Content: blocks}
}

func Paragraph(inline ...*Node) *Node {
	return &Node{Type: NodeParagraph, Content: inline}
}

func Heading(level int, inline ...*Node) *Node {
	return &Node{Type: NodeHeading, Attrs: map[string]any{"level": level}, Content: inline}
}

func Text(s string, marks ...Mark) *Node {
	return &Node{Type: NodeText, Text: s, Marks: marks}
}

func Image(src, alt string) *Node {
	attrs := map[string]any{"src": src}
	if alt != "" {
		attrs["alt"] = alt
	}
	return &Node{Type: NodeImage, Attrs: attrs}
}

func Link(href string) Mark {
	return Mark{Type: MarkLink, Attrs: map[string]any{"href": href}}
}

// Parse decodes a serialized document. An empty input yields an empty document.
func Parse(raw json.RawMessage) (*Node, error) {
	if len(raw) == 0 {
		return NewDoc(), nil
	}

	var doc Node
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Type != NodeDoc {
		return nil, fmt.Errorf("%w: got %q", ErrNotDocument, doc.Type)
	}
	return &doc, nil
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}

	c := &Node{Type: n.Type, Text: n.Text}
	if n.Attrs != nil {
		c.Attrs = cloneAttrs(n.Attrs)
	}
	if n.Content != nil {
		c.Content = make([]*Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = child.Clone()
		}
	}
	if n.Marks != nil {
		c.Marks = make([]Mark, len(n.Marks))
		for i, m := range n.Marks {
			c.Marks[i] = Mark{Type: m.Type, Attrs: cloneAttrs(m.Attrs)}
		}
	}
	return c
}

func cloneAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func (n *Node) IsInline() bool {
	return n.Type == NodeText || n.Type == NodeHardBreak
}

func (n *Node) IsList() bool {
	return n.Type == NodeBulletList || n.Type == NodeOrderedList
}

func (n *Node) HasMark(kind MarkKind) bool {
	for _, m := range n.Marks {
		if m.Type == kind {
			return true
		}
	}
	return false
}

func (n *Node) addMark(m Mark) {
	if n.HasMark(m.Type) {
		return
	}
	n.Marks = append(n.Marks, m)
}

func (n *Node) removeMark(kind MarkKind) {
	kept := n.Marks[:0]
	for _, m := range n.Marks {
		if m.Type != kind {
			kept = append(kept, m)
		}
	}
	if len(kept) == 0 {
		n.Marks = nil
		return
	}
	n.Marks = kept
}

// AttrInt reads a numeric attribute. JSON decoding yields float64, builders use int.
func (n *Node) AttrInt(key string, def int) int {
	switch v := n.Attrs[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

func (n *Node) AttrString(key string) string {
	s, _ := n.Attrs[key].(string)
	return s
}

func (n *Node) SetAttr(key string, value any) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]any)
	}
	n.Attrs[key] = value
}

func (m Mark) AttrString(key string) string {
	s, _ := m.Attrs[key].(string)
	return s
}

// walkText calls fn for every text node below n.
func walkText(n *Node, fn func(*Node)) {
	if n.Type == NodeText {
		fn(n)
		return
	}
	for _, child := range n.Content {
		walkText(child, fn)
	}
}
