package stream

import (
	"sync"
	"sync/atomic"
)

// Registry is a copy-on-write set of subscribers. Writers serialise on mu and
// publish a fresh slice; readers load the current slice without locking.
// A published slice is never modified.
type Registry struct {
	mu   sync.Mutex
	subs atomic.Pointer[[]*Subscriber]
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) load() []*Subscriber {
	if p := r.subs.Load(); p != nil {
		return *p
	}
	return nil
}

func (r *Registry) Add(s *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	next := make([]*Subscriber, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, s)
	r.subs.Store(&next)
}

// Remove reports whether s was present. Removing twice is a no-op.
func (r *Registry) Remove(s *Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.load()
	idx := -1
	for i, existing := range cur {
		if existing == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	next := make([]*Subscriber, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	r.subs.Store(&next)
	return true
}

// Snapshot returns the current membership. Callers must not modify it.
func (r *Registry) Snapshot() []*Subscriber {
	return r.load()
}

func (r *Registry) Len() int {
	return len(r.load())
}
