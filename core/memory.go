package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// InMemoryConnectionRepository keeps one user's connections in process
// memory. The repository's own mutex is the unit of mutual exclusion;
// operations on different users never contend.
type InMemoryConnectionRepository struct {
	mu          sync.Mutex
	userID      string
	locator     ConnectionFactoryLocator
	connections map[ConnectionKey]Connection
}

func NewInMemoryConnectionRepository(userID string, locator ConnectionFactoryLocator) *InMemoryConnectionRepository {
	return &InMemoryConnectionRepository{
		userID:      strings.TrimSpace(userID),
		locator:     locator,
		connections: make(map[ConnectionKey]Connection),
	}
}

func (r *InMemoryConnectionRepository) UserID() string {
	if r == nil {
		return ""
	}
	return r.userID
}

func (r *InMemoryConnectionRepository) AddConnection(_ context.Context, c Connection) (Connection, error) {
	if r == nil {
		return Connection{}, fmt.Errorf("core: connection repository is not configured")
	}
	if err := c.Key.Validate(); err != nil {
		return Connection{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[c.Key]; exists {
		return Connection{}, duplicateConnection(c.Key)
	}
	c.Rank = r.nextRankLocked(c.Key.ProviderID)
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.connections[c.Key] = c
	return c, nil
}

func (r *InMemoryConnectionRepository) UpdateConnection(_ context.Context, c Connection) (Connection, error) {
	if r == nil {
		return Connection{}, fmt.Errorf("core: connection repository is not configured")
	}
	if err := c.Key.Validate(); err != nil {
		return Connection{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.connections[c.Key]
	if !exists {
		return Connection{}, noSuchConnection(c.Key)
	}
	c.Rank = current.Rank
	c.CreatedAt = current.CreatedAt
	c.UpdatedAt = time.Now().UTC()
	r.connections[c.Key] = c
	return c, nil
}

func (r *InMemoryConnectionRepository) RemoveConnection(_ context.Context, key ConnectionKey) error {
	if r == nil {
		return fmt.Errorf("core: connection repository is not configured")
	}
	r.mu.Lock()
	delete(r.connections, key)
	r.mu.Unlock()
	return nil
}

func (r *InMemoryConnectionRepository) RemoveConnections(_ context.Context, providerID string) error {
	if r == nil {
		return fmt.Errorf("core: connection repository is not configured")
	}
	id := strings.TrimSpace(providerID)
	r.mu.Lock()
	for key := range r.connections {
		if key.ProviderID == id {
			delete(r.connections, key)
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *InMemoryConnectionRepository) GetConnection(_ context.Context, key ConnectionKey) (Connection, error) {
	if r == nil {
		return Connection{}, fmt.Errorf("core: connection repository is not configured")
	}
	c, ok := r.lookup(key)
	if !ok {
		return Connection{}, noSuchConnection(key)
	}
	return c, nil
}

func (r *InMemoryConnectionRepository) FindConnections(_ context.Context, providerID string) ([]Connection, error) {
	if r == nil {
		return nil, fmt.Errorf("core: connection repository is not configured")
	}
	return r.providerConnections(providerID), nil
}

func (r *InMemoryConnectionRepository) FindAllConnections(_ context.Context) (map[string][]Connection, error) {
	if r == nil {
		return nil, fmt.Errorf("core: connection repository is not configured")
	}
	r.mu.Lock()
	grouped := make(map[string][]Connection)
	for _, c := range r.connections {
		grouped[c.Key.ProviderID] = append(grouped[c.Key.ProviderID], c)
	}
	r.mu.Unlock()

	for providerID, list := range grouped {
		// A missing locator means no factory is registered for anything.
		if r.locator == nil {
			return nil, noSuchConnectionFactory(providerID)
		}
		if _, ok := r.locator.GetConnectionFactory(providerID); !ok {
			return nil, noSuchConnectionFactory(providerID)
		}
		sortByRank(list)
	}
	return grouped, nil
}

func (r *InMemoryConnectionRepository) FindPrimaryConnection(_ context.Context, providerID string) (Connection, error) {
	if r == nil {
		return Connection{}, fmt.Errorf("core: connection repository is not configured")
	}
	list := r.providerConnections(providerID)
	if len(list) == 0 {
		return Connection{}, noSuchConnection(ConnectionKey{ProviderID: strings.TrimSpace(providerID)})
	}
	return list[0], nil
}

// lookup is the explicit found/not-found probe used by registry scans.
func (r *InMemoryConnectionRepository) lookup(key ConnectionKey) (Connection, bool) {
	r.mu.Lock()
	c, ok := r.connections[key]
	r.mu.Unlock()
	return c, ok
}

func (r *InMemoryConnectionRepository) providerConnections(providerID string) []Connection {
	id := strings.TrimSpace(providerID)
	r.mu.Lock()
	list := make([]Connection, 0)
	for _, c := range r.connections {
		if c.Key.ProviderID == id {
			list = append(list, c)
		}
	}
	r.mu.Unlock()
	sortByRank(list)
	return list
}

func (r *InMemoryConnectionRepository) nextRankLocked(providerID string) int {
	max := 0
	for _, c := range r.connections {
		if c.Key.ProviderID == providerID && c.Rank > max {
			max = c.Rank
		}
	}
	return max + 1
}

func sortByRank(list []Connection) {
	sort.Slice(list, func(i, j int) bool { return list[i].Rank < list[j].Rank })
}

// InMemoryUsersConnectionRepository maps local user ids to in-memory per-user
// repositories. Intended for tests and small deployments; the durable
// equivalent lives in store/sql.
type InMemoryUsersConnectionRepository struct {
	mu           sync.RWMutex
	repositories map[string]*InMemoryConnectionRepository
	locator      ConnectionFactoryLocator
	signUp       ConnectionSignUp
}

func NewInMemoryUsersConnectionRepository(locator ConnectionFactoryLocator) *InMemoryUsersConnectionRepository {
	return &InMemoryUsersConnectionRepository{
		repositories: make(map[string]*InMemoryConnectionRepository),
		locator:      locator,
	}
}

func (r *InMemoryUsersConnectionRepository) SetConnectionSignUp(signUp ConnectionSignUp) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.signUp = signUp
	r.mu.Unlock()
}

// CreateConnectionRepository is compare-and-insert: the loser of a concurrent
// first-time race observes the winner's repository.
func (r *InMemoryUsersConnectionRepository) CreateConnectionRepository(_ context.Context, userID string) (ConnectionRepository, error) {
	repo, err := r.repositoryFor(userID)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *InMemoryUsersConnectionRepository) repositoryFor(userID string) (*InMemoryConnectionRepository, error) {
	if r == nil {
		return nil, fmt.Errorf("core: users connection repository is not configured")
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, fmt.Errorf("core: user id is required")
	}

	r.mu.RLock()
	repo, ok := r.repositories[id]
	r.mu.RUnlock()
	if ok {
		return repo, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.repositories[id]; ok {
		return existing, nil
	}
	repo = NewInMemoryConnectionRepository(id, r.locator)
	r.repositories[id] = repo
	return repo, nil
}

func (r *InMemoryUsersConnectionRepository) FindUserIDsWithConnection(ctx context.Context, c Connection) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("core: users connection repository is not configured")
	}
	if err := c.Key.Validate(); err != nil {
		return nil, err
	}

	userIDs := make([]string, 0)
	for _, entry := range r.snapshot() {
		if _, ok := entry.repo.lookup(c.Key); ok {
			userIDs = append(userIDs, entry.userID)
		}
	}
	sort.Strings(userIDs)
	if len(userIDs) > 0 {
		return userIDs, nil
	}

	r.mu.RLock()
	signUp := r.signUp
	r.mu.RUnlock()
	if signUp == nil {
		return userIDs, nil
	}

	newUserID, err := signUp.ExecuteSignUp(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("core: connection sign-up failed: %w", err)
	}
	newUserID = strings.TrimSpace(newUserID)
	if newUserID == "" {
		return userIDs, nil
	}
	repo, err := r.repositoryFor(newUserID)
	if err != nil {
		return nil, err
	}
	if _, err := repo.AddConnection(ctx, c); err != nil {
		return nil, err
	}
	return []string{newUserID}, nil
}

func (r *InMemoryUsersConnectionRepository) FindUserIDsConnectedTo(_ context.Context, providerID string, providerUserIDs []string) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("core: users connection repository is not configured")
	}
	wanted := make(map[string]struct{}, len(providerUserIDs))
	for _, id := range providerUserIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			wanted[trimmed] = struct{}{}
		}
	}

	matched := make(map[string]struct{})
	for _, entry := range r.snapshot() {
		for _, c := range entry.repo.providerConnections(providerID) {
			if _, ok := wanted[c.Key.ProviderUserID]; ok {
				matched[entry.userID] = struct{}{}
				break
			}
		}
	}

	userIDs := make([]string, 0, len(matched))
	for id := range matched {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	return userIDs, nil
}

type repositoryEntry struct {
	userID string
	repo   *InMemoryConnectionRepository
}

// snapshot captures the current set of per-user repositories so scans tolerate
// concurrent store creation. Each repository is still queried live.
func (r *InMemoryUsersConnectionRepository) snapshot() []repositoryEntry {
	r.mu.RLock()
	entries := make([]repositoryEntry, 0, len(r.repositories))
	for userID, repo := range r.repositories {
		entries = append(entries, repositoryEntry{userID: userID, repo: repo})
	}
	r.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].userID < entries[j].userID })
	return entries
}

var (
	_ ConnectionRepository      = (*InMemoryConnectionRepository)(nil)
	_ UsersConnectionRepository = (*InMemoryUsersConnectionRepository)(nil)
)
