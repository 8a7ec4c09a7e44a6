package server

import (
	"sync"
	"time"

	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

// fanoutCapacity is the bounded FIFO depth for a single client's outbound
// channel.
const fanoutCapacity = 100

type registryEntry struct {
	sender  chan wire.Message
	evicted chan struct{}
	timer   *time.Timer
}

// Registry maps a client-id to the fan-out channel used to deliver relay
// messages to that agent's session, with TTL eviction.
//
// Go's standard library has no built-in expiring cache, so eviction is
// hand-rolled: a per-entry time.AfterFunc cancellation timer, plus a
// per-entry "evicted" channel that is closed for that entry alone. This
// mirrors a broadcast subscription per session rather than one shared
// queue: with more than one client connected, an eviction for client A
// must never be consumable by client B's session (see DESIGN.md).
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	ttl     time.Duration
}

// NewRegistry creates an empty registry with the given per-entry TTL.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*registryEntry),
		ttl:     ttl,
	}
}

// Get returns the fan-out sender for id, if a session currently owns it.
func (r *Registry) Get(id string) (chan<- wire.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.sender, true
}

// Register creates (or replaces) the fan-out channel for id and arms its
// TTL timer. It returns the receiver end the owning session should read
// from, plus a channel that is closed if and when id is evicted by TTL —
// scoped to this one registration, so it is unaffected by any other
// client's eviction.
func (r *Registry) Register(id string) (<-chan wire.Message, <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[id]; ok {
		old.timer.Stop()
	}

	sender := make(chan wire.Message, fanoutCapacity)
	entry := &registryEntry{sender: sender, evicted: make(chan struct{})}
	entry.timer = time.AfterFunc(r.ttl, func() { r.evict(id, entry) })
	r.entries[id] = entry

	return sender, entry.evicted
}

// Remove deletes id from the registry unconditionally (session teardown).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.timer.Stop()
		delete(r.entries, id)
	}
}

// Count returns the number of currently registered clients, for the
// admin status endpoint.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// evict removes id (if it still belongs to the timer that fired) and
// closes its entry's eviction channel, waking exactly the one session
// that owns id.
func (r *Registry) evict(id string, owner *registryEntry) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	ok = ok && entry == owner
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	close(entry.evicted)
}

// Send delivers msg to id's fan-out channel without blocking. It reports
// whether a session currently owns id and whether the send succeeded; a
// full channel means the agent isn't draining, and the send is dropped
// rather than blocking the publisher.
func (r *Registry) Send(id string, msg wire.Message) (delivered bool, known bool) {
	sender, ok := r.Get(id)
	if !ok {
		return false, false
	}

	select {
	case sender <- msg:
		return true, true
	default:
		return false, true
	}
}
