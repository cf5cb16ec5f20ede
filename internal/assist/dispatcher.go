package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var assistLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	assistLogger = l
}

var (
	ErrBusy        = errors.New("an assist action is already running")
	ErrEmptyResult = errors.New("assist returned an empty result")
)

type Request struct {
	Action  Action `json:"action"`
	Content string `json:"content"`
}

type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Target is what a dispatch reads from and writes its result into.
type Target interface {
	Text() string
	ReplaceTitle(title string) error
	InsertFragment(fragment string) error
}

type Dispatcher struct {
	client Client
	target Target
	clock  func() time.Time

	mu    sync.Mutex
	state State
}

func NewDispatcher(client Client, target Target) *Dispatcher {
	return &Dispatcher{
		client: client,
		target: target,
		clock:  time.Now,
	}
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dispatch runs one action. While another action is running it returns ErrBusy
// without contacting the client. The title action replaces the title; every other
// action inserts its result into the document.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) (err error) {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	d.mu.Lock()
	if d.state.Phase == Busy {
		running := d.state.Action
		d.mu.Unlock()
		assistLogger.Debug().Str("action", string(action)).Str("running", string(running)).Msg("Assist busy, request dropped")
		return ErrBusy
	}
	d.state = State{Phase: Busy, Action: action, StartedAt: d.clock()}
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.state = State{Phase: Idle}
		if err != nil {
			d.state.LastErr = err.Error()
		}
		d.mu.Unlock()
	}()

	result, err := d.client.Generate(ctx, Request{Action: action, Content: d.target.Text()})
	if err != nil {
		assistLogger.Warn().Err(err).Str("action", string(action)).Msg("Assist request failed")
		return fmt.Errorf("assist %s: %w", action, err)
	}

	if action == ActionTitle {
		title := strings.TrimSpace(result)
		if title == "" {
			return fmt.Errorf("assist %s: %w", action, ErrEmptyResult)
		}
		return d.target.ReplaceTitle(title)
	}
	if err := d.target.InsertFragment(result); err != nil {
		return fmt.Errorf("assist %s: %w", action, err)
	}
	return nil
}
