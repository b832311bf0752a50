package engine

import (
	"sort"
	"sync"
)

// The entity registry maps stable keys to constructors, so the
// storage layer can rebuild polymorphic entities from saved
// projects. Entity packages register themselves in init(), the same
// way MIDI drivers register with the connector.
var (
	registryMu     sync.RWMutex
	entityRegistry = make(map[string]func() Entity)
)

// RegisterEntity makes a constructor available under a key. Later
// registrations win, which lets tests substitute doubles.
func RegisterEntity(key string, factory func() Entity) {
	registryMu.Lock()
	defer registryMu.Unlock()
	entityRegistry[key] = factory
}

// NewRegisteredEntity builds a fresh entity for a key.
func NewRegisteredEntity(key string) (Entity, bool) {
	registryMu.RLock()
	factory, ok := entityRegistry[key]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// RegisteredEntityKeys lists every known key, sorted.
func RegisteredEntityKeys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(entityRegistry))
	for key := range entityRegistry {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
