package storage

import "sync"

// SensorCache is the shared set of sensor hostnames observed in query
// results. It grows for the life of the process and never shrinks.
// Reads vastly outnumber writes, so Observe only takes the write lock
// when the candidate set's size differs from the cache's.
type SensorCache struct {
	mu      sync.RWMutex
	sensors map[string]struct{}
}

// NewSensorCache returns an empty cache. There is no implicit shared
// instance; callers construct one and inject it.
func NewSensorCache() *SensorCache {
	return &SensorCache{sensors: make(map[string]struct{})}
}

// Observe records any sensor names not already present.
func (c *SensorCache) Observe(names map[string]struct{}) {
	if len(names) == 0 {
		return
	}

	c.mu.RLock()
	size := len(c.sensors)
	c.mu.RUnlock()

	// Common case: a query over known sensors observes the same set we
	// already hold.
	if size == len(names) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range names {
		c.sensors[name] = struct{}{}
	}
}

// Snapshot returns a copy of the current sensor set.
func (c *SensorCache) Snapshot() map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]struct{}, len(c.sensors))
	for name := range c.sensors {
		out[name] = struct{}{}
	}
	return out
}

// Len returns the number of cached sensors.
func (c *SensorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sensors)
}
