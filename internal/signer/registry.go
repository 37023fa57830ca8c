package signer

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const registrySize = 1024

// Registry tracks unique ids with a bring-up in flight. Entries expire
// after the connecting window so a crashed bring-up cannot hold an id forever.
type Registry struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, time.Time]
}

// NewRegistry creates a registry whose entries live for window.
func NewRegistry(window time.Duration) *Registry {
	return &Registry{entries: expirable.NewLRU[string, time.Time](registrySize, nil, window)}
}

// Acquire marks uniqueID as connecting. It returns false if it already is.
func (r *Registry) Acquire(uniqueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries.Get(uniqueID); ok {
		return false
	}
	r.entries.Add(uniqueID, time.Now())
	return true
}

// Release clears uniqueID.
func (r *Registry) Release(uniqueID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.Remove(uniqueID)
}

// Len returns the number of ids currently connecting.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries.Len()
}
