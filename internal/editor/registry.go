package editor

import (
	"context"

	"github.com/debemdeboas/composer/internal/cache"
	"github.com/debemdeboas/composer/internal/model"
)

// Registry keeps one open Session per draft.
type Registry struct {
	deps     Deps
	sessions *cache.Cache[model.DraftID, *Session]
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: cache.NewCache[model.DraftID, *Session](),
	}
}

// Get returns the open session for id, restoring it from the store on first use.
func (r *Registry) Get(ctx context.Context, id model.DraftID) (*Session, error) {
	s, created, err := r.sessions.GetOrCreate(id, func() (*Session, error) {
		return Open(ctx, id, r.deps)
	})
	if err != nil {
		return nil, err
	}
	if created {
		editorLogger.Debug().Str("draft_id", string(id)).Msg("Session opened")
	}
	return s, nil
}

// Evict closes and forgets the session for id.
func (r *Registry) Evict(id model.DraftID) {
	if s, ok := r.sessions.Take(id); ok {
		s.Close()
	}
}

func (r *Registry) Len() int {
	return r.sessions.Len()
}

// Close flushes and closes every open session.
func (r *Registry) Close() {
	for id, s := range r.sessions.Drain() {
		s.Close()
		editorLogger.Debug().Str("draft_id", string(id)).Msg("Session closed")
	}
}
