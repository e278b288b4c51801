package redact

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// matchCache memoizes RedactString by content hash. Tool arguments and
// responses frequently repeat the same large string (a file re-read, a
// diff context echoed back); hashing first avoids re-running every
// detector's regex over bytes we've already redacted this process.
//
// Capped at cacheLimit entries: a long-lived wrapper process should not
// grow this unboundedly for a proxy that may run for days.
const cacheLimit = 4096

type matchCache struct {
	mu    sync.Mutex
	items map[uint64]string
}

var globalCache = &matchCache{items: make(map[uint64]string, 256)}

func (c *matchCache) get(s string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[xxhash.Sum64String(s)]
	return v, ok
}

func (c *matchCache) put(s, redacted string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= cacheLimit {
		c.items = make(map[uint64]string, 256)
	}
	c.items[xxhash.Sum64String(s)] = redacted
}
