package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedup_Window(t *testing.T) {
	d := NewDedup(10, time.Minute)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	assert.False(t, d.IsDuplicate("a"))
	assert.True(t, d.IsDuplicate("a"))

	now = now.Add(2 * time.Minute)
	assert.False(t, d.IsDuplicate("a"), "expired keys are accepted again")
	assert.True(t, d.IsDuplicate("a"))
}

func TestDedup_Forget(t *testing.T) {
	d := NewDedup(10, time.Minute)
	assert.False(t, d.IsDuplicate("a"))
	d.Forget("a")
	assert.False(t, d.IsDuplicate("a"))
	assert.True(t, d.IsDuplicate("a"))
}

func TestDedup_Evicts(t *testing.T) {
	d := NewDedup(2, time.Hour)
	d.IsDuplicate("a")
	d.IsDuplicate("b")
	d.IsDuplicate("c")

	assert.Equal(t, 2, d.Len())
	assert.False(t, d.IsDuplicate("a"))
}

func TestBuildKey_BucketsToSecond(t *testing.T) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	a := BuildKey("cam-001", "fire", base.Add(100*time.Millisecond))
	b := BuildKey("cam-001", "FIRE", base.Add(900*time.Millisecond))
	c := BuildKey("cam-001", "FIRE", base.Add(time.Second))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
