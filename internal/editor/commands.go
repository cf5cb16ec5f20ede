package editor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/debemdeboas/composer/internal/document"
)

const (
	OpSelect         = "select"
	OpClearSelection = "clear_selection"
	OpToggleMark     = "toggle_mark"
	OpSetHeading     = "set_heading"
	OpToggleList     = "toggle_list"
	OpSetLink        = "set_link"
	OpSetImage       = "set_image"
	OpInsert         = "insert"
	OpReplace        = "replace"
)

var ErrUnknownCommand = errors.New("unknown editor command")

// Command is one toolbar or input event sent by the browser.
type Command struct {
	Op string `json:"op"`

	From int `json:"from,omitempty"`
	To   int `json:"to,omitempty"`

	Mark  document.MarkKind `json:"mark,omitempty"`
	Level int               `json:"level,omitempty"`
	List  document.ListKind `json:"list,omitempty"`
	Href  string            `json:"href,omitempty"`
	Src   string            `json:"src,omitempty"`
	Alt   string            `json:"alt,omitempty"`

	// Insert takes either Nodes or Markup (HTML or markdown).
	Nodes  []*document.Node `json:"nodes,omitempty"`
	Markup string           `json:"markup,omitempty"`

	// Doc is the full document for replace.
	Doc json.RawMessage `json:"doc,omitempty"`
}

// apply runs the command against t. rendered holds Markup already converted to nodes.
func (c Command) apply(t document.Provider, rendered []*document.Node) error {
	switch c.Op {
	case OpSelect:
		return t.SetSelection(document.Range{From: c.From, To: c.To})
	case OpClearSelection:
		t.ClearSelection()
		return nil
	case OpToggleMark:
		return t.ToggleMark(c.Mark)
	case OpSetHeading:
		return t.SetHeading(c.Level)
	case OpToggleList:
		return t.ToggleList(c.List)
	case OpSetLink:
		return t.SetLink(c.Href)
	case OpSetImage:
		return t.SetImage(c.Src, c.Alt)
	case OpInsert:
		if len(rendered) > 0 {
			return t.InsertContent(rendered)
		}
		return t.InsertContent(c.Nodes)
	case OpReplace:
		doc, err := document.Parse(c.Doc)
		if err != nil {
			return err
		}
		return t.Replace(doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Op)
	}
}

// IsClientError reports whether err was caused by a bad command rather than a failure.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrUnknownCommand,
		document.ErrEmptySelection,
		document.ErrInvalidRange,
		document.ErrUnknownMark,
		document.ErrUnknownList,
		document.ErrInvalidLevel,
		document.ErrInvalidURL,
		document.ErrEmptyFragment,
		document.ErrNotDocument,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
