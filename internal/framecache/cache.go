// Package framecache keeps the most recently encoded JPEG for snapshot requests.
//
// Each camera owns a single-slot buffer with overwrite semantics: a new frame
// replaces the previous one, and readers always see the newest image. A
// global slot tracks the newest frame across all cameras.
package framecache

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a cached JPEG image
type Snapshot struct {
	Camera    string
	JPEG      []byte
	Seq       uint64
	UpdatedAt time.Time
}

// Stats contains cache counters
type Stats struct {
	Stores    uint64
	Overwrite uint64
	Cameras   int
}

// Cache is a latest-frame store shared by all viewer sessions.
// Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	latest  *Snapshot
	cameras map[string]*Snapshot

	stores     uint64
	overwrites uint64
}

// New creates an empty cache
func New() *Cache {
	return &Cache{cameras: make(map[string]*Snapshot)}
}

// Store replaces the latest image for camera and the global latest.
// jpeg MUST NOT be modified after Store.
func (c *Cache) Store(camera string, jpeg []byte, seq uint64) {
	snap := &Snapshot{
		Camera:    camera,
		JPEG:      jpeg,
		Seq:       seq,
		UpdatedAt: time.Now(),
	}

	c.mu.Lock()
	if _, ok := c.cameras[camera]; ok {
		atomic.AddUint64(&c.overwrites, 1)
	}
	c.cameras[camera] = snap
	c.latest = snap
	c.mu.Unlock()

	atomic.AddUint64(&c.stores, 1)
}

// Latest returns the newest image from any camera
func (c *Cache) Latest() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.latest == nil {
		return Snapshot{}, false
	}
	return *c.latest, true
}

// LatestFor returns the newest image from camera
func (c *Cache) LatestFor(camera string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap, ok := c.cameras[camera]
	if !ok {
		return Snapshot{}, false
	}
	return *snap, true
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	cameras := len(c.cameras)
	c.mu.RUnlock()

	return Stats{
		Stores:    atomic.LoadUint64(&c.stores),
		Overwrite: atomic.LoadUint64(&c.overwrites),
		Cameras:   cameras,
	}
}
