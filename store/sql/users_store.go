package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-connect/core"
)

// UsersStore is the durable UsersConnectionRepository. Cross-user ownership
// queries run as indexed lookups against (provider_id, provider_user_id)
// instead of the in-memory backend's full scan.
type UsersStore struct {
	db        *bun.DB
	table     string
	locator   core.ConnectionFactoryLocator
	encryptor core.Encryptor

	mu     sync.RWMutex
	signUp core.ConnectionSignUp
	views  sync.Map
}

func NewUsersStore(db *bun.DB, options ...StoreOption) (*UsersStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	settings := storeSettings{}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&settings)
	}
	return &UsersStore{
		db:        db,
		table:     settings.tablePrefix + "user_connections",
		locator:   settings.locator,
		encryptor: settings.encryptor,
	}, nil
}

func (s *UsersStore) SetConnectionSignUp(signUp core.ConnectionSignUp) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.signUp = signUp
	s.mu.Unlock()
}

// CreateConnectionRepository hands out the per-user durable view. Views are
// stateless beyond their user id, so the first-creation race is resolved by
// LoadOrStore; both racers observe the same instance.
func (s *UsersStore) CreateConnectionRepository(_ context.Context, userID string) (core.ConnectionRepository, error) {
	repo, err := s.repositoryFor(userID)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func (s *UsersStore) repositoryFor(userID string) (*ConnectionRepository, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: users store is not configured")
	}
	id := strings.TrimSpace(userID)
	if id == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}
	view := &ConnectionRepository{
		db:        s.db,
		table:     s.table,
		userID:    id,
		locator:   s.locator,
		encryptor: s.encryptor,
	}
	actual, _ := s.views.LoadOrStore(id, view)
	return actual.(*ConnectionRepository), nil
}

func (s *UsersStore) FindUserIDsWithConnection(ctx context.Context, c core.Connection) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: users store is not configured")
	}
	if err := c.Key.Validate(); err != nil {
		return nil, err
	}

	userIDs := make([]string, 0)
	if err := s.db.NewSelect().
		TableExpr("? AS uc", bun.Ident(s.table)).
		ColumnExpr("DISTINCT uc.user_id").
		Where("uc.provider_id = ?", c.Key.ProviderID).
		Where("uc.provider_user_id = ?", c.Key.ProviderUserID).
		OrderExpr("uc.user_id ASC").
		Scan(ctx, &userIDs); err != nil {
		return nil, err
	}
	if len(userIDs) > 0 {
		return userIDs, nil
	}

	s.mu.RLock()
	signUp := s.signUp
	s.mu.RUnlock()
	if signUp == nil {
		return userIDs, nil
	}

	newUserID, err := signUp.ExecuteSignUp(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connection sign-up failed: %w", err)
	}
	newUserID = strings.TrimSpace(newUserID)
	if newUserID == "" {
		return userIDs, nil
	}
	repo, err := s.repositoryFor(newUserID)
	if err != nil {
		return nil, err
	}
	if _, err := repo.AddConnection(ctx, c); err != nil {
		return nil, err
	}
	return []string{newUserID}, nil
}

func (s *UsersStore) FindUserIDsConnectedTo(ctx context.Context, providerID string, providerUserIDs []string) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: users store is not configured")
	}

	wanted := make([]string, 0, len(providerUserIDs))
	for _, id := range providerUserIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			wanted = append(wanted, trimmed)
		}
	}
	if len(wanted) == 0 {
		return []string{}, nil
	}

	userIDs := make([]string, 0)
	if err := s.db.NewSelect().
		TableExpr("? AS uc", bun.Ident(s.table)).
		ColumnExpr("DISTINCT uc.user_id").
		Where("uc.provider_id = ?", strings.TrimSpace(providerID)).
		Where("uc.provider_user_id IN (?)", bun.In(wanted)).
		OrderExpr("uc.user_id ASC").
		Scan(ctx, &userIDs); err != nil {
		return nil, err
	}
	return userIDs, nil
}

var _ core.UsersConnectionRepository = (*UsersStore)(nil)
