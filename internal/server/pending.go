package server

import (
	"sync"

	"github.com/thatcooperguy/rusty-relay-go/internal/wire"
)

// PendingTable tracks in-flight proxy requests awaiting exactly one
// ProxyResponse, keyed by request-id.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]chan<- wire.Message
}

// NewPendingTable creates an empty table.
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[string]chan<- wire.Message)}
}

// Insert registers slot as the reply destination for requestID. Callers
// must not insert the same requestID twice; the second insert silently
// replaces the first, which cannot happen in practice since request-ids
// are minted fresh per request.
func (t *PendingTable) Insert(requestID string, slot chan<- wire.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[requestID] = slot
}

// Take atomically removes and returns the reply slot for requestID. At
// most one caller ever observes ok == true for a given requestID — every
// later Take (duplicate or late reply) sees ok == false and the caller
// logs and discards the frame.
func (t *PendingTable) Take(requestID string) (slot chan<- wire.Message, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok = t.entries[requestID]
	if ok {
		delete(t.entries, requestID)
	}
	return slot, ok
}

// Remove deletes requestID without returning its slot, used by the proxy
// handler's own timeout path to garbage-collect an entry nobody ever
// replies to.
func (t *PendingTable) Remove(requestID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, requestID)
}

// Count returns the number of in-flight requests, for the admin status
// endpoint.
func (t *PendingTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
