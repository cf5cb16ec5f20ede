package model

import (
	"testing"
)

func TestDraftID(t *testing.T) {
	t.Run("NewDraftID is valid and unique", func(t *testing.T) {
		a := NewDraftID()
		b := NewDraftID()

		if !a.Valid() {
			t.Errorf("Expected %q to be valid", a)
		}
		if a == b {
			t.Error("Expected two new draft IDs to differ")
		}
	})

	t.Run("arbitrary strings are invalid", func(t *testing.T) {
		for _, id := range []DraftID{"", "draft-1", "../../etc/passwd"} {
			if id.Valid() {
				t.Errorf("Expected %q to be invalid", id)
			}
		}
	})
}

func TestDraftHasBody(t *testing.T) {
	if (Draft{Title: "Only a title"}).HasBody() {
		t.Error("Expected a title-only draft to have no body")
	}
	if !(Draft{BodyHTML: "<p>x</p>"}).HasBody() {
		t.Error("Expected an HTML body to count")
	}
	if !(Draft{BodyJSON: []byte(`{"type":"doc"}`)}).HasBody() {
		t.Error("Expected a JSON body to count")
	}
}
