package autosave

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/model"
	"github.com/debemdeboas/composer/internal/repository/draft"
)

var autosaveLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	autosaveLogger = l
}

const (
	DefaultBodyInterval  = 3 * time.Second
	DefaultTitleInterval = 1 * time.Second

	writeTimeout = 10 * time.Second
)

// Saver drives a Scheduler with a single timer armed for the earliest deadline and
// writes due patches to the store. Store failures are logged and dropped; the
// in-memory document stays authoritative.
type Saver struct {
	id    model.DraftID
	store draft.Store
	clock func() time.Time

	mu      sync.Mutex
	sched   *Scheduler
	timer   *time.Timer
	closed  bool
	onSaved func(Channel)

	// writeMu is taken while still holding mu so writes land in the order they were taken.
	writeMu sync.Mutex
}

func NewSaver(id model.DraftID, store draft.Store, body, title time.Duration) *Saver {
	if body <= 0 {
		body = DefaultBodyInterval
	}
	if title <= 0 {
		title = DefaultTitleInterval
	}
	return &Saver{
		id:    id,
		store: store,
		clock: time.Now,
		sched: NewScheduler(body, title),
	}
}

// SetOnSaved registers a callback fired after each successful write.
func (s *Saver) SetOnSaved(fn func(Channel)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSaved = fn
}

func (s *Saver) NotifyBodyChanged(html string, doc json.RawMessage) {
	s.schedule(ChannelBody, draft.BodyPatch(html, doc))
}

func (s *Saver) NotifyTitleChanged(title string) {
	s.schedule(ChannelTitle, draft.TitlePatch(title))
}

func (s *Saver) Pending(ch Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _, ok := s.sched.Pending(ch)
	return ok
}

func (s *Saver) schedule(ch Channel, patch draft.Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		autosaveLogger.Warn().Str("draft_id", string(s.id)).Str("channel", string(ch)).Msg("Change after close ignored")
		return
	}
	s.sched.Schedule(ch, patch, s.clock())
	s.arm()
}

// arm must be called with mu held.
func (s *Saver) arm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	next, ok := s.sched.NextDeadline()
	if !ok || s.closed {
		return
	}
	s.timer = time.AfterFunc(max(next.Sub(s.clock()), 0), s.fire)
}

func (s *Saver) fire() {
	s.mu.Lock()
	writes := s.sched.Tick(s.clock())
	s.arm()
	s.writeMu.Lock()
	onSaved := s.onSaved
	s.mu.Unlock()

	defer s.writeMu.Unlock()
	s.write(writes, onSaved)
}

// Flush writes every pending patch now and returns once they are stored.
func (s *Saver) Flush() {
	s.mu.Lock()
	writes := s.sched.Flush()
	s.arm()
	s.writeMu.Lock()
	onSaved := s.onSaved
	s.mu.Unlock()

	defer s.writeMu.Unlock()
	s.write(writes, onSaved)
}

// Discard drops pending patches and waits for any write already under way.
func (s *Saver) Discard() {
	s.mu.Lock()
	s.sched.Discard()
	s.arm()
	s.mu.Unlock()

	s.writeMu.Lock()
	s.writeMu.Unlock()
}

// Close flushes pending patches and stops accepting changes.
func (s *Saver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	writes := s.sched.Flush()
	s.arm()
	s.writeMu.Lock()
	onSaved := s.onSaved
	s.mu.Unlock()

	defer s.writeMu.Unlock()
	s.write(writes, onSaved)
}

func (s *Saver) write(writes []Write, onSaved func(Channel)) {
	for _, w := range writes {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := s.store.Save(ctx, s.id, w.Patch)
		cancel()
		if err != nil {
			autosaveLogger.Error().Err(err).Str("draft_id", string(s.id)).Str("channel", string(w.Channel)).Msg("Autosave failed")
			continue
		}
		autosaveLogger.Debug().Str("draft_id", string(s.id)).Str("channel", string(w.Channel)).Msg("Draft autosaved")
		if onSaved != nil {
			onSaved(w.Channel)
		}
	}
}
