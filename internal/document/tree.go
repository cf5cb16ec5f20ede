package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrEmptySelection = errors.New("command needs a non-empty selection")
	ErrInvalidRange   = errors.New("selection out of range")
	ErrUnknownMark    = errors.New("unknown mark")
	ErrUnknownList    = errors.New("unknown list kind")
	ErrInvalidLevel   = errors.New("heading level must be between 0 and 6")
	ErrInvalidURL     = errors.New("invalid url")
	ErrEmptyFragment  = errors.New("empty fragment")
)

// Tree is the single owner of a document. It is not safe for concurrent use;
// callers serialize access (the editor session holds one mutex around it).
//
// Insertion policy: InsertContent and SetImage insert at the end of the current
// selection when one is set (never replacing selected blocks) and move the cursor
// after the inserted blocks; with no selection they append at the end of the
// document and leave the selection unset.
type Tree struct {
	doc       *Node
	selection *Range
	listeners []func(Snapshot)
}

func NewTree() *Tree {
	return &Tree{doc: NewDoc()}
}

// OnUpdate registers fn to receive a snapshot after every successful command.
func (t *Tree) OnUpdate(fn func(Snapshot)) {
	t.listeners = append(t.listeners, fn)
}

func (t *Tree) emit() {
	if len(t.listeners) == 0 {
		return
	}
	snap := t.Snapshot()
	for _, fn := range t.listeners {
		fn(snap)
	}
}

func (t *Tree) HTML() string { return RenderHTML(t.doc) }

func (t *Tree) JSON() json.RawMessage {
	// Nodes only carry strings, numbers, bools and nested maps, all of which marshal.
	data, _ := json.Marshal(t.doc)
	return data
}

func (t *Tree) Text() string { return PlainText(t.doc) }

func (t *Tree) Snapshot() Snapshot {
	return Snapshot{HTML: t.HTML(), JSON: t.JSON(), Text: t.Text()}
}

func (t *Tree) Stats() Stats { return ComputeStats(t.Text()) }

// Document returns a deep copy of the tree.
func (t *Tree) Document() *Node { return t.doc.Clone() }

func (t *Tree) Len() int { return len(t.doc.Content) }

func (t *Tree) Selection() (Range, bool) {
	if t.selection == nil {
		return Range{}, false
	}
	return *t.selection, true
}

func (t *Tree) SetSelection(r Range) error {
	if r.From < 0 || r.To < r.From || r.To > len(t.doc.Content) {
		return fmt.Errorf("%w: [%d, %d) of %d blocks", ErrInvalidRange, r.From, r.To, len(t.doc.Content))
	}
	t.selection = &r
	return nil
}

func (t *Tree) ClearSelection() { t.selection = nil }

// Replace swaps in a whole document, e.g. when restoring a persisted draft.
func (t *Tree) Replace(doc *Node) error {
	if doc == nil || doc.Type != NodeDoc {
		return ErrNotDocument
	}
	t.doc = doc.Clone()
	t.selection = nil
	t.emit()
	return nil
}

func (t *Tree) selected() ([]*Node, error) {
	if t.selection == nil || t.selection.Empty() {
		return nil, ErrEmptySelection
	}
	return t.doc.Content[t.selection.From:t.selection.To], nil
}

func (t *Tree) ToggleMark(kind MarkKind) error {
	switch kind {
	case MarkBold, MarkItalic, MarkCode, MarkStrike, MarkUnderline:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMark, kind)
	}

	blocks, err := t.selected()
	if err != nil {
		return err
	}

	var texts []*Node
	for _, b := range blocks {
		walkText(b, func(n *Node) { texts = append(texts, n) })
	}

	all := len(texts) > 0
	for _, n := range texts {
		if !n.HasMark(kind) {
			all = false
			break
		}
	}
	for _, n := range texts {
		if all {
			n.removeMark(kind)
		} else {
			n.addMark(Mark{Type: kind})
		}
	}

	t.emit()
	return nil
}

// SetHeading turns selected paragraphs and headings into headings of level,
// or back into paragraphs when level is 0. Other blocks are left alone.
func (t *Tree) SetHeading(level int) error {
	if level < 0 || level > 6 {
		return ErrInvalidLevel
	}

	blocks, err := t.selected()
	if err != nil {
		return err
	}

	for _, b := range blocks {
		if b.Type != NodeParagraph && b.Type != NodeHeading {
			continue
		}
		if level == 0 {
			b.Type = NodeParagraph
			delete(b.Attrs, "level")
			if len(b.Attrs) == 0 {
				b.Attrs = nil
			}
			continue
		}
		b.Type = NodeHeading
		b.SetAttr("level", level)
	}

	t.emit()
	return nil
}

// ToggleList unwraps the selection when it is entirely lists of kind, converts it
// when it is entirely lists of another kind, and otherwise wraps the selected blocks
// into a single list.
func (t *Tree) ToggleList(kind ListKind) error {
	if kind != BulletList && kind != OrderedList {
		return fmt.Errorf("%w: %q", ErrUnknownList, kind)
	}

	blocks, err := t.selected()
	if err != nil {
		return err
	}

	allLists, allSame := true, true
	for _, b := range blocks {
		if !b.IsList() {
			allLists = false
		}
		if b.Type != string(kind) {
			allSame = false
		}
	}

	var replacement []*Node
	switch {
	case allSame:
		for _, list := range blocks {
			for _, item := range list.Content {
				replacement = append(replacement, item.Content...)
			}
		}
	case allLists:
		for _, list := range blocks {
			list.Type = string(kind)
		}
		replacement = blocks
	default:
		list := &Node{Type: string(kind)}
		for _, b := range blocks {
			if b.IsList() {
				list.Content = append(list.Content, b.Content...)
				continue
			}
			list.Content = append(list.Content, &Node{Type: NodeListItem, Content: []*Node{b}})
		}
		replacement = []*Node{list}
	}

	from := t.selection.From
	t.splice(from, t.selection.To, replacement)
	t.selection = &Range{From: from, To: from + len(replacement)}

	t.emit()
	return nil
}

// SetLink applies href as a link mark on all selected text. An empty href removes links.
func (t *Tree) SetLink(href string) error {
	href = strings.TrimSpace(href)
	if href != "" && !safeURL(href, false) {
		return fmt.Errorf("%w: %q", ErrInvalidURL, href)
	}

	blocks, err := t.selected()
	if err != nil {
		return err
	}

	for _, b := range blocks {
		walkText(b, func(n *Node) {
			n.removeMark(MarkLink)
			if href != "" {
				n.addMark(Link(href))
			}
		})
	}

	t.emit()
	return nil
}

func (t *Tree) SetImage(src, alt string) error {
	src = strings.TrimSpace(src)
	if src == "" || !safeURL(src, true) {
		return fmt.Errorf("%w: %q", ErrInvalidURL, src)
	}
	return t.InsertContent([]*Node{Image(src, alt)})
}

// InsertContent inserts fragment following the tree's insertion policy. Top-level
// inline nodes are grouped into paragraphs and nested documents are flattened.
func (t *Tree) InsertContent(fragment []*Node) error {
	blocks := normalizeBlocks(fragment)
	if len(blocks) == 0 {
		return ErrEmptyFragment
	}

	at := len(t.doc.Content)
	if t.selection != nil {
		at = t.selection.To
	}
	t.splice(at, at, blocks)
	if t.selection != nil {
		end := at + len(blocks)
		t.selection = &Range{From: end, To: end}
	}

	t.emit()
	return nil
}

func (t *Tree) splice(from, to int, replacement []*Node) {
	content := make([]*Node, 0, len(t.doc.Content)-(to-from)+len(replacement))
	content = append(content, t.doc.Content[:from]...)
	content = append(content, replacement...)
	content = append(content, t.doc.Content[to:]...)
	t.doc.Content = content
}

func normalizeBlocks(fragment []*Node) []*Node {
	var out []*Node
	var inline []*Node

	flush := func() {
		if len(inline) > 0 {
			out = append(out, Paragraph(inline...))
			inline = nil
		}
	}

	for _, n := range fragment {
		if n == nil {
			continue
		}
		switch {
		case n.Type == NodeDoc:
			flush()
			out = append(out, normalizeBlocks(n.Content)...)
		case n.IsInline():
			inline = append(inline, n.Clone())
		default:
			flush()
			out = append(out, n.Clone())
		}
	}
	flush()
	return out
}

func safeURL(raw string, image bool) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return true
	case "mailto":
		return !image
	case "data":
		return image && strings.HasPrefix(strings.ToLower(u.Opaque), "image/")
	default:
		return false
	}
}
