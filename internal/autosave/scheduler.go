// Package autosave debounces draft edits into store writes.
//
// Scheduler is the pure part: it owns at most one pending write per channel and is
// driven entirely by the times passed in. Saver wraps it with a timer and a store.
package autosave

import (
	"time"

	"github.com/debemdeboas/composer/internal/repository/draft"
)

type Channel string

const (
	ChannelTitle Channel = "title"
	ChannelBody  Channel = "body"
)

// Channels in the order due writes are emitted.
var Channels = []Channel{ChannelTitle, ChannelBody}

type Write struct {
	Channel Channel
	Patch   draft.Patch
}

type pending struct {
	deadline time.Time
	patch    draft.Patch
}

// Scheduler is a trailing debounce: each Schedule replaces the channel's pending write
// and pushes its deadline to now + the channel's quiet interval. It is not safe for
// concurrent use.
type Scheduler struct {
	intervals map[Channel]time.Duration
	pending   map[Channel]pending
}

func NewScheduler(body, title time.Duration) *Scheduler {
	return &Scheduler{
		intervals: map[Channel]time.Duration{
			ChannelBody:  body,
			ChannelTitle: title,
		},
		pending: make(map[Channel]pending, 2),
	}
}

func (s *Scheduler) Interval(ch Channel) time.Duration {
	return s.intervals[ch]
}

func (s *Scheduler) Schedule(ch Channel, patch draft.Patch, now time.Time) {
	s.pending[ch] = pending{deadline: now.Add(s.intervals[ch]), patch: patch}
}

// Tick removes and returns every write whose deadline is at or before now.
func (s *Scheduler) Tick(now time.Time) []Write {
	var due []Write
	for _, ch := range Channels {
		p, ok := s.pending[ch]
		if !ok || p.deadline.After(now) {
			continue
		}
		delete(s.pending, ch)
		due = append(due, Write{Channel: ch, Patch: p.patch})
	}
	return due
}

// Flush removes and returns every pending write regardless of deadline.
func (s *Scheduler) Flush() []Write {
	var out []Write
	for _, ch := range Channels {
		if p, ok := s.pending[ch]; ok {
			out = append(out, Write{Channel: ch, Patch: p.patch})
		}
	}
	s.Discard()
	return out
}

func (s *Scheduler) Discard() {
	clear(s.pending)
}

func (s *Scheduler) Pending(ch Channel) (draft.Patch, time.Time, bool) {
	p, ok := s.pending[ch]
	return p.patch, p.deadline, ok
}

// NextDeadline reports the earliest pending deadline.
func (s *Scheduler) NextDeadline() (time.Time, bool) {
	var next time.Time
	found := false
	for _, p := range s.pending {
		if !found || p.deadline.Before(next) {
			next, found = p.deadline, true
		}
	}
	return next, found
}
