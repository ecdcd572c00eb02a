package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_AddRemove(t *testing.T) {
	r := NewRegistry()
	a := newSubscriber("a", 1, nil)
	b := newSubscriber("b", 1, nil)

	r.Add(a)
	r.Add(b)
	assert.Equal(t, 2, r.Len())

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a), "second remove is a no-op")
	assert.False(t, r.Remove(newSubscriber("never", 1, nil)))
	assert.Equal(t, []*Subscriber{b}, r.Snapshot())
}

func TestRegistry_SnapshotIsStable(t *testing.T) {
	r := NewRegistry()
	subs := []*Subscriber{newSubscriber("1", 1, nil), newSubscriber("2", 1, nil), newSubscriber("3", 1, nil)}
	for _, s := range subs {
		r.Add(s)
	}

	snap := r.Snapshot()
	r.Remove(subs[1])
	r.Add(newSubscriber("4", 1, nil))

	assert.Equal(t, subs, snap, "published snapshot must not change")
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_ZeroValue(t *testing.T) {
	var r Registry
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Snapshot())
	assert.False(t, r.Remove(newSubscriber("x", 1, nil)))
}

func TestRegistry_ConcurrentMutationDuringTraversal(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s := newSubscriber("s", 1, nil)
				r.Add(s)
				r.Remove(s)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for _, s := range r.Snapshot() {
					_ = s.ID()
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, r.Len())
}
