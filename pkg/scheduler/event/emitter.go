package event

import (
	"sort"
	"sync"
)

// Handler receives a published Event. Handlers run synchronously on the
// publishing goroutine; a slow handler delays Publish's caller and every
// other handler's delivery of that same event.
type Handler func(Event)

// Emitter is a typed, ordered, per-engine publish-subscribe registry.
// Publish holds a mutex for the duration of dispatch to every subscriber,
// so for one Emitter, events are delivered to subscribers one at a time
// and in the order they were published — concurrent stages may still
// interleave their Publish calls, but no subscriber ever sees two events
// out of the order Publish was called in.
type Emitter struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]Handler
}

// NewEmitter returns an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[int]Handler)}
}

// Subscribe registers h to receive every future Publish call. The returned
// function removes the subscription; calling it more than once is a no-op.
func (e *Emitter) Subscribe(h Handler) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = h
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}
}

// Publish delivers ev to every current subscriber, in subscription order,
// synchronously, under e's mutex.
func (e *Emitter) Publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]int, 0, len(e.handlers))
	for id := range e.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		e.handlers[id](ev)
	}
}

// Bridge subscribes to child and republishes every event it emits onto
// parent, with Stage prefixed by outer. Used to bubble a sub-pipeline's
// events up to the root engine. Returns the child unsubscribe function.
func Bridge(parent *Emitter, child *Emitter, outer string) func() {
	return child.Subscribe(func(ev Event) {
		parent.Publish(Prefixed(ev, outer))
	})
}
