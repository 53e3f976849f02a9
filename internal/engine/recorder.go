package engine

import (
	"context"
	"sync"

	"simpleamm/internal/model"
)

// Recorder is a Sink keeping events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *Recorder) PutEvents(_ context.Context, events []model.Event) error {
	r.mu.Lock()
	r.events = append(r.events, events...)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

// Named returns recorded events with the given name.
func (r *Recorder) Named(name string) []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// MultiSink fans events out to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) PutEvents(ctx context.Context, events []model.Event) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.PutEvents(ctx, events); err != nil && first == nil {
			first = err
		}
	}
	return first
}
