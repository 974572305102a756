// ABOUTME: Time-bounded read cache owned by a Store instance
// ABOUTME: Holds the last loaded record set until it expires or a write invalidates it
package store

import (
	"sync"
	"time"

	"github.com/harperreed/cardsync/models"
)

type cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	contacts []models.Contact
	loadedAt time.Time
	valid    bool
}

func newCache(ttl time.Duration, now func() time.Time) *cache {
	return &cache{ttl: ttl, now: now}
}

// get returns a copy of the cached set while it is fresh.
func (c *cache) get() ([]models.Contact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid || c.ttl <= 0 || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return cloneAll(c.contacts), true
}

func (c *cache) set(contacts []models.Contact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 {
		return
	}
	c.contacts = cloneAll(contacts)
	c.loadedAt = c.now()
	c.valid = true
}

func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contacts = nil
	c.valid = false
}

func cloneAll(contacts []models.Contact) []models.Contact {
	out := make([]models.Contact, len(contacts))
	for i, c := range contacts {
		out[i] = c.Clone()
	}
	return out
}
