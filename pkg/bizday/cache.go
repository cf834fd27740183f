package bizday

import (
	"sync"
	"time"
)

// DailyCache wraps a HolidaySource and refreshes its value lazily once per
// calendar day. It replaces the process-wide mutable lookup the original
// system used: state is held in an injected object, not a package variable.
type DailyCache struct {
	source HolidaySource
	now    func() time.Time

	mu          sync.Mutex
	value       map[string]bool
	lastRefresh string // YYYY-MM-DD of the last successful load
}

// NewDailyCache creates a DailyCache over source
func NewDailyCache(source HolidaySource) *DailyCache {
	return &DailyCache{source: source, now: time.Now}
}

// Holidays returns the cached set, refreshing it when the stored date
// differs from today. On refresh failure a previously cached value is
// served stale; with no cached value the error propagates.
func (c *DailyCache) Holidays() (map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.now().Format("2006-01-02")
	if c.lastRefresh == today {
		return c.value, nil
	}

	fresh, err := c.source.Holidays()
	if err != nil {
		if c.value != nil {
			return c.value, nil
		}
		return nil, err
	}

	c.value = fresh
	c.lastRefresh = today
	return c.value, nil
}
