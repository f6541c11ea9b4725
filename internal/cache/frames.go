// Package cache memoizes synchronized frames by trial id.
package cache

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

// LoadFunc produces the frame of a trial on a cache miss.
type LoadFunc func(trialID string) (*gait.Frame, error)

// Stats counts lookups since the cache was created or last cleared.
type Stats struct {
	Hits   int
	Misses int
	Size   int
}

// Frames implements a thread-safe, unbounded trial id -> frame cache. Entries stay until they are
// invalidated or the cache is cleared. Cached frames are shared and must not be modified.
type Frames struct {
	mu     sync.Mutex
	frames map[string]*gait.Frame
	hits   int
	misses int
}

func NewFrames() *Frames {
	return &Frames{frames: make(map[string]*gait.Frame)}
}

// Get returns the frame cached for trialID.
func (c *Frames) Get(trialID string) (*gait.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.frames[trialID]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return f, ok
}

// Put stores f under trialID, replacing any previous entry.
func (c *Frames) Put(trialID string, f *gait.Frame) error {
	if f == nil {
		return fmt.Errorf("cannot cache nil frame for %s", trialID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames[trialID] = f
	return nil
}

// Load returns the cached frame of trialID or calls load and caches its result. Concurrent misses
// on the same trial may call load more than once; the last stored frame wins.
func (c *Frames) Load(trialID string, load LoadFunc) (*gait.Frame, error) {
	if f, ok := c.Get(trialID); ok {
		return f, nil
	}

	f, err := load(trialID)
	if err != nil {
		return nil, err
	}
	if err = c.Put(trialID, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Invalidate drops the entry of trialID and reports whether one existed.
func (c *Frames) Invalidate(trialID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.frames[trialID]
	delete(c.frames, trialID)
	return ok
}

// Clear removes all entries and resets the counters.
func (c *Frames) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.frames)
	c.hits, c.misses = 0, 0
}

// Keys returns the cached trial ids in sorted order.
func (c *Frames) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.frames))
	for k := range c.frames {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (c *Frames) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Size: len(c.frames)}
}
