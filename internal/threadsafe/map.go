// Package threadsafe implements data structures that
// are safe for use from multiple goroutines.
package threadsafe

import (
	"sort"
	"sync"
)

// A Map is a map that is safe for concurrent access and
// updates. A Map must be created with NewMap.
type Map[K comparable, V any] struct {
	mu     sync.RWMutex
	values map[K]V
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		values: make(map[K]V),
	}
}

// Get retrieves a value from the Map. If the value is not
// present, ok will be false.
func (m *Map[K, V]) Get(key K) (val V, ok bool) {
	m.mu.RLock()
	val, ok = m.values[key]
	m.mu.RUnlock()
	return val, ok
}

// Put stores a value in the map, overwriting any previous values
// stored under the key.
func (m *Map[K, V]) Put(key K, val V) {
	m.mu.Lock()
	m.values[key] = val
	m.mu.Unlock()
}

// Add stores a value in the map under key. If there is already
// a value in the map for key, Add does not replace it, and
// returns false.
func (m *Map[K, V]) Add(key K, val V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false
	}
	m.values[key] = val
	return true
}

// Del deletes a value from a map. Subsequent Gets on the map
// will turn up empty.
func (m *Map[K, V]) Del(key K) {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
}

// Take deletes key from the map and returns the value it held.
func (m *Map[K, V]) Take(key K) (val V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok = m.values[key]
	delete(m.values, key)
	return val, ok
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Do calls f while holding the write lock for a Map.
func (m *Map[K, V]) Do(f func(map[K]V)) {
	m.mu.Lock()
	f(m.values)
	m.mu.Unlock()
}

// SortedKeys returns the keys of m in ascending order, as ordered
// by less.
func (m *Map[K, V]) SortedKeys(less func(a, b K) bool) []K {
	m.mu.RLock()
	keys := make([]K, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })
	return keys
}
