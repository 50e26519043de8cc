package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensorCache_Observe(t *testing.T) {
	cache := NewSensorCache()
	assert.Equal(t, 0, cache.Len())

	cache.Observe(map[string]struct{}{"sensor-1": {}, "sensor-2": {}})
	assert.Equal(t, 2, cache.Len())

	// A third sensor grows the set; known sensors never leave.
	cache.Observe(map[string]struct{}{"sensor-3": {}})
	assert.Equal(t, 3, cache.Len())

	snapshot := cache.Snapshot()
	assert.Contains(t, snapshot, "sensor-1")
	assert.Contains(t, snapshot, "sensor-2")
	assert.Contains(t, snapshot, "sensor-3")
}

func TestSensorCache_NoShrinkNoDuplication(t *testing.T) {
	cache := NewSensorCache()
	cache.Observe(map[string]struct{}{"sensorA": {}, "sensorB": {}})

	// A query over a subset must not shrink the cached set.
	cache.Observe(map[string]struct{}{"sensorA": {}})

	snapshot := cache.Snapshot()
	assert.Len(t, snapshot, 2)
	assert.Contains(t, snapshot, "sensorA")
	assert.Contains(t, snapshot, "sensorB")
}

func TestSensorCache_ObserveEmpty(t *testing.T) {
	cache := NewSensorCache()
	cache.Observe(nil)
	cache.Observe(map[string]struct{}{})
	assert.Equal(t, 0, cache.Len())
}

func TestSensorCache_SnapshotIsCopy(t *testing.T) {
	cache := NewSensorCache()
	cache.Observe(map[string]struct{}{"sensor-1": {}})

	snapshot := cache.Snapshot()
	snapshot["intruder"] = struct{}{}
	assert.Equal(t, 1, cache.Len())
}

func TestSensorCache_Concurrent(t *testing.T) {
	cache := NewSensorCache()
	var wg sync.WaitGroup

	names := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			cache.Observe(map[string]struct{}{
				names[i%len(names)]:     {},
				names[(i+1)%len(names)]: {},
			})
		}(i)
		go func() {
			defer wg.Done()
			_ = cache.Snapshot()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), len(names))
	assert.Greater(t, cache.Len(), 0)
}
