package cache

import "sync"

// Daily caches values keyed by (key, day). The first access for a new day
// drops every entry from earlier days.
type Daily[V any] struct {
	mu      sync.RWMutex
	day     string
	entries map[string]V
}

// NewDaily creates an empty Daily cache.
func NewDaily[V any]() *Daily[V] {
	return &Daily[V]{entries: make(map[string]V)}
}

// Get returns the value for key on day.
func (d *Daily[V]) Get(key, day string) (V, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var zero V
	if day != d.day {
		return zero, false
	}
	v, ok := d.entries[key]
	return v, ok
}

// Put stores v for key on day. A later day resets the cache first; writes
// for a day older than the current one are dropped. Days are YYYY-MM-DD so
// they order lexically.
func (d *Daily[V]) Put(key, day string, v V) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if day < d.day {
		return
	}
	if day > d.day {
		d.day = day
		d.entries = make(map[string]V)
	}
	d.entries[key] = v
}

// Evict drops all entries unless they belong to today. It returns the number
// of entries removed.
func (d *Daily[V]) Evict(today string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.day == today {
		return 0
	}
	n := len(d.entries)
	d.day = today
	d.entries = make(map[string]V)
	return n
}

// Len returns the number of cached entries.
func (d *Daily[V]) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
