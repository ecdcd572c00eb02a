package ingest

import (
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dedup remembers recently seen detection keys for a fixed window.
type Dedup struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
	now   func() time.Time
}

func NewDedup(maxKeys int, ttl time.Duration) *Dedup {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	c, _ := lru.New[string, time.Time](maxKeys)
	return &Dedup{cache: c, ttl: ttl, now: time.Now}
}

// IsDuplicate reports whether key was seen inside the window and marks it seen.
func (d *Dedup) IsDuplicate(key string) bool {
	now := d.now()
	if seenAt, ok := d.cache.Get(key); ok && now.Sub(seenAt) < d.ttl {
		return true
	}
	d.cache.Add(key, now)
	return false
}

// Forget drops key so a retry of a message that failed to store is accepted.
func (d *Dedup) Forget(key string) {
	d.cache.Remove(key)
}

func (d *Dedup) Len() int {
	return d.cache.Len()
}

// BuildKey buckets the timestamp to the second so retries from the detector
// collapse onto one key.
func BuildKey(cameraID, eventType string, ts time.Time) string {
	return fmt.Sprintf("%s|%s|%d", strings.TrimSpace(cameraID), strings.ToUpper(strings.TrimSpace(eventType)), ts.Truncate(time.Second).Unix())
}
