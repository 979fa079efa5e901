package auth

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ServiceRegistry is the default ServiceLocator: a process-wide map of
// provider id to handshake service, safe for concurrent use.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]AuthenticationService
}

func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]AuthenticationService)}
}

func (r *ServiceRegistry) Register(service AuthenticationService) error {
	if service == nil {
		return fmt.Errorf("auth: authentication service is nil")
	}
	id := strings.TrimSpace(service.ProviderID())
	if id == "" {
		return fmt.Errorf("auth: authentication service provider id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[id]; exists {
		return fmt.Errorf("auth: authentication service already registered: %s", id)
	}
	r.services[id] = service
	return nil
}

func (r *ServiceRegistry) Lookup(providerID string) (AuthenticationService, bool) {
	id := strings.TrimSpace(providerID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	service, ok := r.services[id]
	r.mu.RUnlock()
	return service, ok
}

func (r *ServiceRegistry) RegisteredProviderIDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

var _ ServiceLocator = (*ServiceRegistry)(nil)
