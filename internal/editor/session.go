// Package editor ties one draft's document, title, autosave, assist and publish together.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/composer/internal/assist"
	"github.com/debemdeboas/composer/internal/autosave"
	"github.com/debemdeboas/composer/internal/document"
	"github.com/debemdeboas/composer/internal/media"
	"github.com/debemdeboas/composer/internal/model"
	"github.com/debemdeboas/composer/internal/publish"
	"github.com/debemdeboas/composer/internal/render"
	"github.com/debemdeboas/composer/internal/repository/draft"
	"github.com/debemdeboas/composer/internal/sse"
)

var editorLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

const DefaultTitle = "Untitled Article"

var ErrNotConfigured = errors.New("not configured")

// Deps are shared by every session of a registry.
type Deps struct {
	Store     draft.Store
	Assist    assist.Client
	Submitter publish.Submitter
	Renderer  *render.Renderer
	Media     media.Uploader
	Events    *sse.SSEClients

	BodyInterval  time.Duration
	TitleInterval time.Duration
}

// Session is one open draft. Every document or title mutation happens under mu;
// remote calls never hold it.
type Session struct {
	id model.DraftID

	mu    sync.Mutex
	tree  document.Provider
	title string

	saver      *autosave.Saver
	dispatcher *assist.Dispatcher
	publisher  *publish.Coordinator
	renderer   *render.Renderer
	media      media.Uploader
}

// Open restores the stored draft for id, or starts an empty one.
func Open(ctx context.Context, id model.DraftID, deps Deps) (*Session, error) {
	if deps.Store == nil {
		deps.Store = draft.NewMemoryStore()
	}
	if deps.Renderer == nil {
		deps.Renderer = render.New(render.EngineMmark)
	}
	if deps.Media == nil {
		deps.Media = media.Disabled{}
	}

	s := &Session{
		id:       id,
		tree:     document.NewTree(),
		title:    DefaultTitle,
		renderer: deps.Renderer,
		media:    deps.Media,
	}

	stored, found, err := deps.Store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("open draft %s: %w", id, err)
	}
	if found {
		if err := s.restore(stored); err != nil {
			return nil, fmt.Errorf("open draft %s: %w", id, err)
		}
		editorLogger.Info().Str("draft_id", string(id)).Msg("Draft restored")
	}

	s.saver = autosave.NewSaver(id, deps.Store, deps.BodyInterval, deps.TitleInterval)
	if deps.Events != nil {
		events := deps.Events
		s.saver.SetOnSaved(func(ch autosave.Channel) {
			events.Broadcast(id, sse.Event{Name: "saved", Data: string(ch)})
		})
	}
	s.tree.OnUpdate(func(snap document.Snapshot) {
		s.saver.NotifyBodyChanged(snap.HTML, snap.JSON)
	})

	if deps.Assist != nil {
		s.dispatcher = assist.NewDispatcher(deps.Assist, s)
	}
	if deps.Submitter != nil {
		s.publisher = publish.NewCoordinator(id, s, deps.Submitter, deps.Store, s.saver)
	}
	return s, nil
}

func (s *Session) restore(d model.Draft) error {
	if d.Title != "" {
		s.title = d.Title
	}

	switch {
	case len(d.BodyJSON) > 0:
		doc, err := document.Parse(d.BodyJSON)
		if err != nil {
			return err
		}
		return s.tree.Replace(doc)
	case d.BodyHTML != "":
		nodes, err := render.ParseHTML(d.BodyHTML)
		if err != nil {
			return err
		}
		return s.tree.Replace(document.NewDoc(nodes...))
	}
	return nil
}

func (s *Session) ID() model.DraftID {
	return s.id
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
	s.saver.NotifyTitleChanged(title)
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Apply runs one editing command against the document.
func (s *Session) Apply(cmd Command) error {
	var nodes []*document.Node
	if cmd.Op == OpInsert && cmd.Markup != "" {
		var err error
		if nodes, err = s.renderer.Fragment(cmd.Markup); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return cmd.apply(s.tree, nodes)
}

func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Text()
}

func (s *Session) ReplaceTitle(title string) error {
	s.SetTitle(title)
	return nil
}

// InsertFragment renders an assist result and inserts it at the cursor, or at the end
// of the document when nothing is selected.
func (s *Session) InsertFragment(fragment string) error {
	nodes, err := s.renderer.Fragment(fragment)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.InsertContent(nodes)
}

func (s *Session) Content() (string, document.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title, s.tree.Snapshot()
}

func (s *Session) Dispatch(ctx context.Context, action assist.Action) error {
	if s.dispatcher == nil {
		return fmt.Errorf("assist: %w", ErrNotConfigured)
	}
	return s.dispatcher.Dispatch(ctx, action)
}

func (s *Session) AssistState() assist.State {
	if s.dispatcher == nil {
		return assist.State{}
	}
	return s.dispatcher.State()
}

func (s *Session) Publish(ctx context.Context) error {
	if s.publisher == nil {
		return fmt.Errorf("publish: %w", ErrNotConfigured)
	}
	return s.publisher.Publish(ctx)
}

// Draft returns the current state in the shape the store persists.
func (s *Session) Draft() model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.tree.Snapshot()
	return model.Draft{
		ID:       s.id,
		Title:    s.title,
		BodyHTML: snap.HTML,
		BodyJSON: snap.JSON,
	}
}

func (s *Session) Stats() document.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Stats()
}

func (s *Session) Selection() (document.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Selection()
}

// InsertImage uploads data and places the image at the cursor.
func (s *Session) InsertImage(ctx context.Context, data []byte, contentType, alt string) (string, error) {
	url, err := s.media.Upload(ctx, data, contentType)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tree.SetImage(url, alt); err != nil {
		return "", err
	}
	return url, nil
}

// Close flushes pending autosaves.
func (s *Session) Close() {
	s.saver.Close()
}
