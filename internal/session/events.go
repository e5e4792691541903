package session

import (
	"context"
	"sync"
)

// Event identifies a session lifecycle transition that collaborators
// (content cache, viewpoint loader, …) can subscribe to. The original
// frontend reached directly into its sibling stores at these moments;
// the bus replaces that hard wiring while keeping the ordering: every
// event fires after the state mutation it describes and before any
// navigation or reload.
type Event string

const (
	// EventSessionRestored: bootstrap found a stored token and the
	// backend confirmed a valid user. The viewpoint loader starts here.
	EventSessionRestored Event = "session-restored"

	// EventBootstrapCompleted: bootstrap finished, session or not.
	// Contributor attribution is populated here.
	EventBootstrapCompleted Event = "bootstrap-completed"

	// EventSessionEstablished: a login flow completed. Derived caches
	// (public dashboards) are invalidated here, before the reload.
	EventSessionEstablished Event = "session-established"

	// EventSessionEnded: logout cleared the local session.
	EventSessionEnded Event = "session-ended"
)

// Bus is a minimal synchronous publish/subscribe hub. Handlers run
// inline on the publishing goroutine, in subscription order — the
// "event fires after mutation, before reload" guarantee depends on
// that synchrony.
type Bus struct {
	mu   sync.Mutex
	subs map[Event][]func(context.Context)
}

func newBus() *Bus {
	return &Bus{subs: make(map[Event][]func(context.Context))}
}

func (b *Bus) subscribe(e Event, fn func(context.Context)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[e] = append(b.subs[e], fn)
}

func (b *Bus) publish(ctx context.Context, e Event) {
	b.mu.Lock()
	handlers := append([]func(context.Context){}, b.subs[e]...)
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(ctx)
	}
}
