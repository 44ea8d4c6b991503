package sync

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// eventDedup is an in-process fast path in front of the committed-events
// window query. It only ever short-circuits lookups for events this process
// already committed; a miss always falls through to the database check, which
// stays authoritative.
type eventDedup struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

func newEventDedup(maxKeys int, ttl time.Duration) *eventDedup {
	c, _ := lru.New[string, time.Time](maxKeys)
	return &eventDedup{cache: c, ttl: ttl}
}

// seen reports whether key was recorded within the window. It does not
// record; recording happens only after the run commits.
func (d *eventDedup) seen(key string) bool {
	at, ok := d.cache.Get(key)
	return ok && time.Since(at) < d.ttl
}

func (d *eventDedup) record(key string) {
	d.cache.Add(key, time.Now())
}

func dedupKey(siteID int64, channel int, eventType, toStatus string) string {
	return fmt.Sprintf("%d|%d|%s|%s", siteID, channel, eventType, toStatus)
}
