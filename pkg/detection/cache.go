package detection

import (
	"sync"
	"time"

	"github.com/cloudtrim/engine/pkg/model"
)

// cacheTTL is the scan cache's fixed time-to-live (§4.2.1, §5).
const cacheTTL = 30 * time.Second

// scanCache is the detection engine's sole piece of mutable state: a
// single memoized DetectionResult, single-writer (the engine itself),
// last-write-wins, with a 30s TTL. It is an explicit field on Engine
// rather than a package-level singleton, so independent Engine
// instances (one per tenant) never share a cache.
type scanCache struct {
	mu        sync.Mutex
	result    *model.DetectionResult
	storedAt  time.Time
}

func (c *scanCache) get(now time.Time) (model.DetectionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return model.DetectionResult{}, false
	}
	if now.Sub(c.storedAt) > cacheTTL {
		return model.DetectionResult{}, false
	}
	return *c.result, true
}

func (c *scanCache) set(result model.DetectionResult, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &result
	c.storedAt = now
}

// invalidate clears the memoized result. Called after every successful
// executor action and after every drift-tick completion.
func (c *scanCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = nil
}
