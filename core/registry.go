package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ConnectionFactoryRegistry is the default ConnectionFactoryLocator: a
// process-wide map of provider id to factory, safe for concurrent use.
type ConnectionFactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]ConnectionFactory
}

func NewConnectionFactoryRegistry() *ConnectionFactoryRegistry {
	return &ConnectionFactoryRegistry{factories: make(map[string]ConnectionFactory)}
}

func (r *ConnectionFactoryRegistry) Register(factory ConnectionFactory) error {
	if factory == nil {
		return fmt.Errorf("core: connection factory is nil")
	}
	id := strings.TrimSpace(factory.ProviderID())
	if id == "" {
		return fmt.Errorf("core: connection factory provider id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("core: connection factory already registered: %s", id)
	}
	r.factories[id] = factory
	return nil
}

func (r *ConnectionFactoryRegistry) GetConnectionFactory(providerID string) (ConnectionFactory, bool) {
	id := strings.TrimSpace(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	return factory, ok
}

func (r *ConnectionFactoryRegistry) RegisteredProviderIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

var _ ConnectionFactoryLocator = (*ConnectionFactoryRegistry)(nil)
