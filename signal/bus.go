// Package signal provides the same-origin change channel shared by every
// open session of the local backend: a write anywhere publishes one
// "state changed" signal, and every subscriber (the writer included)
// reacts by re-reading the store.
package signal

import "sync"

// Change is the single message type carried by the bus.
type Change struct {
	Source string // backend instance that performed the write
}

// Handler consumes change signals.
type Handler func(Change)

type handlerEntry struct {
	id      int
	handler Handler
}

// Bus is a thread-safe in-process broadcast channel.
type Bus struct {
	mu      sync.RWMutex
	entries []handlerEntry
	nextID  int
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Publish fans the change out to every subscriber, including the one
// belonging to the writer. Handlers run on the caller's goroutine.
func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	targets := make([]Handler, len(b.entries))
	for i, e := range b.entries {
		targets[i] = e.handler
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(c)
	}
}

// Subscribe registers a handler and returns a function that removes it.
func (b *Bus) Subscribe(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.entries = append(b.entries, handlerEntry{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		filtered := b.entries[:0]
		for _, e := range b.entries {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		b.entries = filtered
	}
}
