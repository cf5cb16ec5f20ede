// Package publish submits a finished draft and clears it from the draft store on success.
package publish

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/document"
	"github.com/debemdeboas/composer/internal/model"
	"github.com/debemdeboas/composer/internal/repository/draft"
)

var publishLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	publishLogger = l
}

// Source hands out the title and one body snapshot taken together.
type Source interface {
	Content() (title string, body document.Snapshot)
}

// Pending is the autosave state that must not outlive a successful publish.
type Pending interface {
	Discard()
}

type Coordinator struct {
	id        model.DraftID
	source    Source
	submitter Submitter
	store     draft.Store
	pending   Pending

	inFlight atomic.Bool
}

func NewCoordinator(id model.DraftID, source Source, submitter Submitter, store draft.Store, pending Pending) *Coordinator {
	return &Coordinator{
		id:        id,
		source:    source,
		submitter: submitter,
		store:     store,
		pending:   pending,
	}
}

// Publish validates the title, submits the article once and clears the stored draft
// on success. On failure the store and document are left exactly as they were.
func (c *Coordinator) Publish(ctx context.Context) error {
	title, body := c.source.Content()
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "please add a title to your article"}
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer c.inFlight.Store(false)

	l := publishLogger.With().Str("draft_id", string(c.id)).Logger()

	err := c.submitter.Submit(ctx, Payload{
		Title:       title,
		ContentHTML: body.HTML,
		ContentJSON: body.JSON,
	})
	if err != nil {
		l.Warn().Err(err).Msg("Publish failed")
		return err
	}

	if c.pending != nil {
		c.pending.Discard()
	}
	if err := c.store.Clear(ctx, c.id); err != nil {
		l.Error().Err(err).Msg("Article published but draft could not be cleared")
	}

	l.Info().Str("title", title).Msg("Article published")
	return nil
}
