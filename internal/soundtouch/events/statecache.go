// Package events keeps the latest property values published by devices.
package events

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

// DeviceState is the set of properties last published for one device.
type DeviceState struct {
	DeviceID   string                            `json:"device_id"`
	Properties map[soundtouch.Property]any       `json:"properties"`
	UpdatedAt  time.Time                         `json:"updated_at"`
	Changed    map[soundtouch.Property]time.Time `json:"-"`
}

func (s *DeviceState) clone() *DeviceState {
	out := &DeviceState{
		DeviceID:   s.DeviceID,
		Properties: make(map[soundtouch.Property]any, len(s.Properties)),
		UpdatedAt:  s.UpdatedAt,
		Changed:    make(map[soundtouch.Property]time.Time, len(s.Changed)),
	}
	for property, value := range s.Properties {
		out.Properties[property] = value
	}
	for property, at := range s.Changed {
		out.Changed[property] = at
	}
	return out
}

// StateCache provides thread-safe caching of device properties. It is fed as
// a soundtouch.Listener and read by API handlers.
type StateCache struct {
	mu     sync.RWMutex
	states map[string]*DeviceState // keyed by device id
	ttl    time.Duration
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewStateCache creates a cache whose entries go stale after ttl.
func NewStateCache(ttl time.Duration) *StateCache {
	return &StateCache{
		states: make(map[string]*DeviceState),
		ttl:    ttl,
		now:    time.Now,
	}
}

// UpdateProperty implements soundtouch.Listener.
func (c *StateCache) UpdateProperty(deviceID string, property soundtouch.Property, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[deviceID]
	if !ok {
		state = &DeviceState{
			DeviceID:   deviceID,
			Properties: make(map[soundtouch.Property]any),
			Changed:    make(map[soundtouch.Property]time.Time),
		}
		c.states[deviceID] = state
	}
	now := c.now()
	state.Properties[property] = value
	state.Changed[property] = now
	state.UpdatedAt = now
}

// Get returns a copy of the device state, or nil if it is unknown or stale.
func (c *StateCache) Get(deviceID string) *DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.states[deviceID]
	if !ok || !c.fresh(state) {
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)
	return state.clone()
}

// Value returns one property of a device.
func (c *StateCache) Value(deviceID string, property soundtouch.Property) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.states[deviceID]
	if !ok || !c.fresh(state) {
		c.misses.Add(1)
		return nil, false
	}
	value, ok := state.Properties[property]
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return value, ok
}

// List returns copies of every cached state ordered by device id.
func (c *StateCache) List() []*DeviceState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]*DeviceState, 0, len(c.states))
	for _, state := range c.states {
		result = append(result, state.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DeviceID < result[j].DeviceID })
	return result
}

// Remove drops a device from the cache.
func (c *StateCache) Remove(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, deviceID)
}

// Prune removes stale entries and returns how many were removed.
func (c *StateCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for id, state := range c.states {
		if !c.fresh(state) {
			delete(c.states, id)
			pruned++
		}
	}
	return pruned
}

// Stats returns cache statistics.
func (c *StateCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits.Load(), c.misses.Load(), len(c.states)
}

func (c *StateCache) fresh(state *DeviceState) bool {
	if c.ttl <= 0 {
		return true
	}
	return c.now().Sub(state.UpdatedAt) < c.ttl
}
