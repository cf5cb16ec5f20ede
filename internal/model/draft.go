// Package model defines the draft types shared by the store, the autosaver and the editor session.
package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

type DraftID string

// NewDraftID returns a random draft identifier.
func NewDraftID() DraftID {
	return DraftID(uuid.New().String())
}

// Valid reports whether id looks like an identifier produced by NewDraftID.
func (id DraftID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

// Draft is the recoverable snapshot of an article before publication.
// BodyHTML and BodyJSON are two serializations of one document state.
type Draft struct {
	ID DraftID `json:"id"`

	Title    string          `json:"title"`
	BodyHTML string          `json:"body_html"`
	BodyJSON json.RawMessage `json:"body_json,omitempty"`
}

func (d Draft) HasBody() bool {
	return len(d.BodyJSON) > 0 || d.BodyHTML != ""
}
