package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-connect/core"
)

// ConnectionRepository is the durable per-user view over the shared
// user_connections table. Every query is scoped to one user id; rank
// assignment runs inside a transaction so concurrent adds for the same user
// and provider never produce duplicate ranks.
type ConnectionRepository struct {
	db        *bun.DB
	table     string
	userID    string
	locator   core.ConnectionFactoryLocator
	encryptor core.Encryptor
}

func (r *ConnectionRepository) UserID() string {
	if r == nil {
		return ""
	}
	return r.userID
}

func (r *ConnectionRepository) AddConnection(ctx context.Context, c core.Connection) (core.Connection, error) {
	if r == nil || r.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection repository is not configured")
	}
	if err := c.Key.Validate(); err != nil {
		return core.Connection{}, err
	}

	var saved core.Connection
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			TableExpr("? AS uc", bun.Ident(r.table)).
			Where("uc.user_id = ?", r.userID).
			Where("uc.provider_id = ?", c.Key.ProviderID).
			Where("uc.provider_user_id = ?", c.Key.ProviderUserID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return &core.DuplicateConnectionError{Key: c.Key}
		}

		var maxRank int
		if err := tx.NewSelect().
			TableExpr("? AS uc", bun.Ident(r.table)).
			ColumnExpr("coalesce(max(uc.rank), 0)").
			Where("uc.user_id = ?", r.userID).
			Where("uc.provider_id = ?", c.Key.ProviderID).
			Scan(ctx, &maxRank); err != nil {
			return err
		}

		record, err := r.newRecord(c, maxRank+1, time.Now().UTC())
		if err != nil {
			return err
		}
		if _, err := tx.NewInsert().
			Model(record).
			ModelTableExpr("?", bun.Ident(r.table)).
			Exec(ctx); err != nil {
			return err
		}

		saved = c
		saved.Rank = record.Rank
		saved.CreatedAt = record.CreatedAt
		saved.UpdatedAt = record.UpdatedAt
		return nil
	})
	if err != nil {
		return core.Connection{}, err
	}
	return saved, nil
}

func (r *ConnectionRepository) UpdateConnection(ctx context.Context, c core.Connection) (core.Connection, error) {
	if r == nil || r.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection repository is not configured")
	}
	if err := c.Key.Validate(); err != nil {
		return core.Connection{}, err
	}

	var updated core.Connection
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := new(userConnectionRecord)
		err := tx.NewSelect().
			Model(current).
			ModelTableExpr("? AS uc", bun.Ident(r.table)).
			Where("uc.user_id = ?", r.userID).
			Where("uc.provider_id = ?", c.Key.ProviderID).
			Where("uc.provider_user_id = ?", c.Key.ProviderUserID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &core.NoSuchConnectionError{Key: c.Key}
			}
			return err
		}

		record, err := r.newRecord(c, current.Rank, time.Now().UTC())
		if err != nil {
			return err
		}
		record.ID = current.ID
		record.CreatedAt = current.CreatedAt

		if _, err := tx.NewUpdate().
			Model(record).
			ModelTableExpr("? AS uc", bun.Ident(r.table)).
			Column("display_name", "profile_url", "image_url", "access_token", "secret", "refresh_token", "expire_time", "updated_at").
			Where("uc.id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}

		updated = c
		updated.Rank = current.Rank
		updated.CreatedAt = current.CreatedAt.UTC()
		updated.UpdatedAt = record.UpdatedAt
		return nil
	})
	if err != nil {
		return core.Connection{}, err
	}
	return updated, nil
}

func (r *ConnectionRepository) RemoveConnection(ctx context.Context, key core.ConnectionKey) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("sqlstore: connection repository is not configured")
	}
	_, err := r.db.NewDelete().
		Model((*userConnectionRecord)(nil)).
		ModelTableExpr("? AS uc", bun.Ident(r.table)).
		Where("uc.user_id = ?", r.userID).
		Where("uc.provider_id = ?", key.ProviderID).
		Where("uc.provider_user_id = ?", key.ProviderUserID).
		Exec(ctx)
	return err
}

func (r *ConnectionRepository) RemoveConnections(ctx context.Context, providerID string) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("sqlstore: connection repository is not configured")
	}
	_, err := r.db.NewDelete().
		Model((*userConnectionRecord)(nil)).
		ModelTableExpr("? AS uc", bun.Ident(r.table)).
		Where("uc.user_id = ?", r.userID).
		Where("uc.provider_id = ?", strings.TrimSpace(providerID)).
		Exec(ctx)
	return err
}

func (r *ConnectionRepository) GetConnection(ctx context.Context, key core.ConnectionKey) (core.Connection, error) {
	if r == nil || r.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection repository is not configured")
	}
	record := new(userConnectionRecord)
	err := r.db.NewSelect().
		Model(record).
		ModelTableExpr("? AS uc", bun.Ident(r.table)).
		Where("uc.user_id = ?", r.userID).
		Where("uc.provider_id = ?", key.ProviderID).
		Where("uc.provider_user_id = ?", key.ProviderUserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Connection{}, &core.NoSuchConnectionError{Key: key}
		}
		return core.Connection{}, err
	}
	return record.toDomain(r.encryptor, r.locator)
}

func (r *ConnectionRepository) FindConnections(ctx context.Context, providerID string) ([]core.Connection, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("sqlstore: connection repository is not configured")
	}
	var records []userConnectionRecord
	err := r.db.NewSelect().
		Model(&records).
		ModelTableExpr("? AS uc", bun.Ident(r.table)).
		Where("uc.user_id = ?", r.userID).
		Where("uc.provider_id = ?", strings.TrimSpace(providerID)).
		OrderExpr("uc.rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.Connection, 0, len(records))
	for i := range records {
		conn, err := records[i].toDomain(r.encryptor, r.locator)
		if err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, nil
}

func (r *ConnectionRepository) FindAllConnections(ctx context.Context) (map[string][]core.Connection, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("sqlstore: connection repository is not configured")
	}
	var records []userConnectionRecord
	err := r.db.NewSelect().
		Model(&records).
		ModelTableExpr("? AS uc", bun.Ident(r.table)).
		Where("uc.user_id = ?", r.userID).
		OrderExpr("uc.provider_id ASC, uc.rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]core.Connection)
	for i := range records {
		providerID := records[i].ProviderID
		// A missing locator means no factory is registered for anything.
		if r.locator == nil {
			return nil, &core.NoSuchConnectionFactoryError{ProviderID: providerID}
		}
		if _, ok := r.locator.GetConnectionFactory(providerID); !ok {
			return nil, &core.NoSuchConnectionFactoryError{ProviderID: providerID}
		}
		conn, err := records[i].toDomain(r.encryptor, r.locator)
		if err != nil {
			return nil, err
		}
		grouped[providerID] = append(grouped[providerID], conn)
	}
	for _, list := range grouped {
		sort.Slice(list, func(i, j int) bool { return list[i].Rank < list[j].Rank })
	}
	return grouped, nil
}

func (r *ConnectionRepository) FindPrimaryConnection(ctx context.Context, providerID string) (core.Connection, error) {
	if r == nil || r.db == nil {
		return core.Connection{}, fmt.Errorf("sqlstore: connection repository is not configured")
	}
	record := new(userConnectionRecord)
	err := r.db.NewSelect().
		Model(record).
		ModelTableExpr("? AS uc", bun.Ident(r.table)).
		Where("uc.user_id = ?", r.userID).
		Where("uc.provider_id = ?", strings.TrimSpace(providerID)).
		OrderExpr("uc.rank ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Connection{}, &core.NoSuchConnectionError{
				Key: core.ConnectionKey{ProviderID: strings.TrimSpace(providerID)},
			}
		}
		return core.Connection{}, err
	}
	return record.toDomain(r.encryptor, r.locator)
}

func (r *ConnectionRepository) newRecord(c core.Connection, rank int, now time.Time) (*userConnectionRecord, error) {
	encryptor := r.encryptor
	if encryptor == nil {
		encryptor = core.NoOpEncryptor{}
	}

	record := &userConnectionRecord{
		ID:             uuid.NewString(),
		UserID:         r.userID,
		ProviderID:     c.Key.ProviderID,
		ProviderUserID: c.Key.ProviderUserID,
		Rank:           rank,
		DisplayName:    c.DisplayName,
		ProfileURL:     c.ProfileURL,
		ImageURL:       c.ImageURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if c.ExpireTime != nil {
		expires := c.ExpireTime.UTC()
		record.ExpireTime = &expires
	}
	var err error
	if record.AccessToken, err = encryptor.Encrypt(c.AccessToken); err != nil {
		return nil, err
	}
	if record.Secret, err = encryptor.Encrypt(c.Secret); err != nil {
		return nil, err
	}
	if record.RefreshToken, err = encryptor.Encrypt(c.RefreshToken); err != nil {
		return nil, err
	}
	return record, nil
}
