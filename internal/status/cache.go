package status

import (
	"sync"
	"time"

	"github.com/lumeven/funnel/internal/checkout/domain"
)

const (
	terminalStatusTTL = 5 * time.Minute
	pendingStatusTTL  = 3 * time.Second
)

type cacheEntry struct {
	result    *domain.StatusResult
	expiresAt time.Time
}

// resultCache keeps recent status responses so thank-you pages polling the
// same payment do not fan out to the provider on every request.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newResultCache() *resultCache {
	return &resultCache{entries: map[string]cacheEntry{}}
}

func (c *resultCache) get(paymentID string) (*domain.StatusResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[paymentID]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

func (c *resultCache) set(paymentID string, result *domain.StatusResult) {
	ttl := pendingStatusTTL
	if terminalStatuses[result.Status] {
		ttl = terminalStatusTTL
	}
	c.mu.Lock()
	c.entries[paymentID] = cacheEntry{result: result, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}
