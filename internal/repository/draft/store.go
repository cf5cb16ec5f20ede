// Package draft persists unpublished articles as three independent slots: the title,
// the body as HTML and the body as serialized document JSON.
package draft

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/db"
	"github.com/debemdeboas/composer/internal/model"
	"github.com/debemdeboas/composer/internal/util/compression"
)

var storeLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	storeLogger = l
}

type Slot string

const (
	SlotTitle    Slot = "title"
	SlotBodyHTML Slot = "html"
	SlotBodyJSON Slot = "json"
)

// Body is written as a unit; HTML and JSON always come from the same document snapshot.
type Body struct {
	HTML string
	JSON json.RawMessage
}

// Patch names the slots to overwrite. Nil fields leave their slots untouched.
type Patch struct {
	Title *string
	Body  *Body
}

func TitlePatch(title string) Patch {
	return Patch{Title: &title}
}

func BodyPatch(html string, doc json.RawMessage) Patch {
	return Patch{Body: &Body{HTML: html, JSON: doc}}
}

func (p Patch) Empty() bool {
	return p.Title == nil && p.Body == nil
}

// Store is the durable draft slot storage. Load reports found=false when no slot holds
// a value; that is never an error.
type Store interface {
	Load(ctx context.Context, id model.DraftID) (model.Draft, bool, error)
	Save(ctx context.Context, id model.DraftID, patch Patch) error
	Clear(ctx context.Context, id model.DraftID) error
}

type PersistenceError struct {
	Op  string
	ID  model.DraftID
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("draft %s: %s: %v", e.ID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, id model.DraftID, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, ID: id, Err: err}
}

// slots holds raw slot values as read back from a backend.
type slots struct {
	title, html, json []byte
	has               [3]bool
}

func (s *slots) set(slot Slot, value []byte) {
	switch slot {
	case SlotTitle:
		s.title, s.has[0] = value, true
	case SlotBodyHTML:
		s.html, s.has[1] = value, true
	case SlotBodyJSON:
		s.json, s.has[2] = value, true
	}
}

func (s *slots) draft(id model.DraftID) (model.Draft, bool) {
	if !s.has[0] && !s.has[1] && !s.has[2] {
		return model.Draft{}, false
	}
	d := model.Draft{ID: id, Title: string(s.title), BodyHTML: string(s.html)}
	if len(s.json) > 0 {
		d.BodyJSON = json.RawMessage(s.json)
	}
	return d, true
}

// values flattens a patch into slot writes, body slots adjacent so backends can write them together.
func (p Patch) values() map[Slot][]byte {
	out := make(map[Slot][]byte, 3)
	if p.Title != nil {
		out[SlotTitle] = []byte(*p.Title)
	}
	if p.Body != nil {
		out[SlotBodyHTML] = []byte(p.Body.HTML)
		out[SlotBodyJSON] = []byte(p.Body.JSON)
	}
	return out
}

type Options struct {
	Dir        string
	DB         db.Db
	Compressor compression.Compressor
	RedisURL   string
}

// New picks a Store implementation by driver name.
func New(driver string, opts Options) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "fs":
		return NewFSStore(opts.Dir)
	case "sqlite":
		if opts.DB == nil {
			return nil, fmt.Errorf("sqlite draft store needs a database")
		}
		return NewSQLStore(opts.DB, opts.Compressor), nil
	case "redis":
		return NewRedisStoreFromURL(opts.RedisURL)
	default:
		return nil, fmt.Errorf("unknown draft store driver %q", driver)
	}
}
