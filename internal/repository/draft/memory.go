package draft

import (
	"context"
	"sync"

	"github.com/debemdeboas/composer/internal/model"
)

type MemoryStore struct {
	mu     sync.RWMutex
	drafts map[model.DraftID]*slots
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drafts: make(map[model.DraftID]*slots)}
}

func (m *MemoryStore) Load(_ context.Context, id model.DraftID) (model.Draft, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.drafts[id]
	if !ok {
		return model.Draft{}, false, nil
	}
	d, found := s.draft(id)
	return d, found, nil
}

func (m *MemoryStore) Save(_ context.Context, id model.DraftID, patch Patch) error {
	if patch.Empty() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.drafts[id]
	if !ok {
		s = &slots{}
		m.drafts[id] = s
	}
	for slot, value := range patch.values() {
		s.set(slot, value)
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, id model.DraftID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, id)
	return nil
}
