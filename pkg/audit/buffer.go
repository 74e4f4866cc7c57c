package audit

import (
	"context"
	"sync"
)

// EventHandler is called for each newly buffered event.
type EventHandler func(event Event)

// Buffer is the in-memory append-only event buffer. It lives for the
// process lifetime, is never persisted, and supports concurrent append
// without loss.
type Buffer struct {
	mu       sync.RWMutex
	events   []Event
	handlers []EventHandler
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Record appends the event and notifies handlers. Implements Sink.
func (b *Buffer) Record(_ context.Context, event Event) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	handlers := b.handlers
	b.mu.Unlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// AddHandler registers a handler for future events.
func (b *Buffer) AddHandler(h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Events returns a snapshot copy of the buffered events.
func (b *Buffer) Events() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Size returns the number of buffered events.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
