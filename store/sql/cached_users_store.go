package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-connect/core"
)

const connectedUsersCacheKeyPrefix = "go-connect::connected_users::v1"

// CachedUsersStore caches the cross-user ownership lookups, the hot path of
// every authentication attempt. Mutations through the per-user views
// invalidate the keys they touch.
type CachedUsersStore struct {
	base  core.UsersConnectionRepository
	cache repositorycache.CacheService
}

func NewCachedUsersStore(base core.UsersConnectionRepository, cacheService repositorycache.CacheService) (*CachedUsersStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base users repository is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: users cache service is required")
	}
	return &CachedUsersStore{base: base, cache: cacheService}, nil
}

// ConnectedUsersCacheKey returns the deterministic cache key contract for
// ownership reads: go-connect::connected_users::v1::<provider>::<provider_user_id>
// with each segment URL-path escaped.
func ConnectedUsersCacheKey(key core.ConnectionKey) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}
	segments := []string{key.ProviderID, key.ProviderUserID}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{connectedUsersCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedUsersStore) CreateConnectionRepository(ctx context.Context, userID string) (core.ConnectionRepository, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached users store is not configured")
	}
	repo, err := s.base.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &invalidatingConnectionRepository{base: repo, cache: s.cache}, nil
}

func (s *CachedUsersStore) FindUserIDsWithConnection(ctx context.Context, c core.Connection) ([]string, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached users store is not configured")
	}
	cacheKey, err := ConnectedUsersCacheKey(c.Key)
	if err != nil {
		return nil, err
	}
	fetchedBase := false
	userIDs, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]string, error) {
		fetchedBase = true
		fetched, fetchErr := s.base.FindUserIDsWithConnection(ctx, c)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return append([]string(nil), fetched...), nil
	})
	if err != nil {
		return nil, err
	}
	// An empty owner set served from cache must not short-circuit the
	// zero-match path: the base repository owns sign-up provisioning, so
	// drop the entry and ask it directly. A freshly fetched empty result
	// already went through the base, including its sign-up callback.
	if len(userIDs) == 0 && !fetchedBase {
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return nil, err
		}
		fetched, err := s.base.FindUserIDsWithConnection(ctx, c)
		if err != nil {
			return nil, err
		}
		return append([]string(nil), fetched...), nil
	}
	return append([]string(nil), userIDs...), nil
}

func (s *CachedUsersStore) FindUserIDsConnectedTo(ctx context.Context, providerID string, providerUserIDs []string) ([]string, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached users store is not configured")
	}

	matched := make(map[string]struct{})
	for _, providerUserID := range providerUserIDs {
		trimmed := strings.TrimSpace(providerUserID)
		if trimmed == "" {
			continue
		}
		key := core.NewConnectionKey(providerID, trimmed)
		cacheKey, err := ConnectedUsersCacheKey(key)
		if err != nil {
			return nil, err
		}
		owners, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]string, error) {
			fetched, fetchErr := s.base.FindUserIDsConnectedTo(ctx, key.ProviderID, []string{key.ProviderUserID})
			if fetchErr != nil {
				return nil, fetchErr
			}
			return append([]string(nil), fetched...), nil
		})
		if err != nil {
			return nil, err
		}
		for _, owner := range owners {
			matched[owner] = struct{}{}
		}
	}

	userIDs := make([]string, 0, len(matched))
	for id := range matched {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	return userIDs, nil
}

func (s *CachedUsersStore) SetConnectionSignUp(signUp core.ConnectionSignUp) {
	if s == nil || s.base == nil {
		return
	}
	s.base.SetConnectionSignUp(signUp)
}

// invalidatingConnectionRepository drops the ownership cache entries for every
// key a mutation touches before reporting success.
type invalidatingConnectionRepository struct {
	base  core.ConnectionRepository
	cache repositorycache.CacheService
}

func (r *invalidatingConnectionRepository) UserID() string {
	return r.base.UserID()
}

func (r *invalidatingConnectionRepository) AddConnection(ctx context.Context, c core.Connection) (core.Connection, error) {
	saved, err := r.base.AddConnection(ctx, c)
	if err != nil {
		return core.Connection{}, err
	}
	if err := r.invalidate(ctx, saved.Key); err != nil {
		return core.Connection{}, err
	}
	return saved, nil
}

func (r *invalidatingConnectionRepository) UpdateConnection(ctx context.Context, c core.Connection) (core.Connection, error) {
	updated, err := r.base.UpdateConnection(ctx, c)
	if err != nil {
		return core.Connection{}, err
	}
	if err := r.invalidate(ctx, updated.Key); err != nil {
		return core.Connection{}, err
	}
	return updated, nil
}

func (r *invalidatingConnectionRepository) RemoveConnection(ctx context.Context, key core.ConnectionKey) error {
	if err := r.base.RemoveConnection(ctx, key); err != nil {
		return err
	}
	return r.invalidate(ctx, key)
}

func (r *invalidatingConnectionRepository) RemoveConnections(ctx context.Context, providerID string) error {
	// Capture the keys before the delete so their cache entries can be
	// dropped afterwards.
	connections, err := r.base.FindConnections(ctx, providerID)
	if err != nil {
		return err
	}
	if err := r.base.RemoveConnections(ctx, providerID); err != nil {
		return err
	}
	for _, c := range connections {
		if err := r.invalidate(ctx, c.Key); err != nil {
			return err
		}
	}
	return nil
}

func (r *invalidatingConnectionRepository) GetConnection(ctx context.Context, key core.ConnectionKey) (core.Connection, error) {
	return r.base.GetConnection(ctx, key)
}

func (r *invalidatingConnectionRepository) FindConnections(ctx context.Context, providerID string) ([]core.Connection, error) {
	return r.base.FindConnections(ctx, providerID)
}

func (r *invalidatingConnectionRepository) FindAllConnections(ctx context.Context) (map[string][]core.Connection, error) {
	return r.base.FindAllConnections(ctx)
}

func (r *invalidatingConnectionRepository) FindPrimaryConnection(ctx context.Context, providerID string) (core.Connection, error) {
	return r.base.FindPrimaryConnection(ctx, providerID)
}

func (r *invalidatingConnectionRepository) invalidate(ctx context.Context, key core.ConnectionKey) error {
	cacheKey, err := ConnectedUsersCacheKey(key)
	if err != nil {
		return err
	}
	return r.cache.Delete(ctx, cacheKey)
}

var (
	_ core.UsersConnectionRepository = (*CachedUsersStore)(nil)
	_ core.ConnectionRepository      = (*invalidatingConnectionRepository)(nil)
)
