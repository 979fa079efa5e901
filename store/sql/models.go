package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-connect/core"
)

type userConnectionRecord struct {
	bun.BaseModel `bun:"table:user_connections,alias:uc"`

	ID             string     `bun:"id,pk"`
	UserID         string     `bun:"user_id,notnull"`
	ProviderID     string     `bun:"provider_id,notnull"`
	ProviderUserID string     `bun:"provider_user_id,notnull"`
	Rank           int        `bun:"rank,notnull"`
	DisplayName    string     `bun:"display_name"`
	ProfileURL     string     `bun:"profile_url"`
	ImageURL       string     `bun:"image_url"`
	AccessToken    string     `bun:"access_token"`
	Secret         string     `bun:"secret"`
	RefreshToken   string     `bun:"refresh_token"`
	ExpireTime     *time.Time `bun:"expire_time,nullzero"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *userConnectionRecord) toData(encryptor core.Encryptor) (core.ConnectionData, error) {
	data := core.ConnectionData{
		ProviderID:     r.ProviderID,
		ProviderUserID: r.ProviderUserID,
		DisplayName:    r.DisplayName,
		ProfileURL:     r.ProfileURL,
		ImageURL:       r.ImageURL,
	}
	if r.ExpireTime != nil {
		expires := r.ExpireTime.UTC()
		data.ExpireTime = &expires
	}
	if encryptor == nil {
		encryptor = core.NoOpEncryptor{}
	}
	var err error
	if data.AccessToken, err = encryptor.Decrypt(r.AccessToken); err != nil {
		return core.ConnectionData{}, err
	}
	if data.Secret, err = encryptor.Decrypt(r.Secret); err != nil {
		return core.ConnectionData{}, err
	}
	if data.RefreshToken, err = encryptor.Decrypt(r.RefreshToken); err != nil {
		return core.ConnectionData{}, err
	}
	return data, nil
}

func (r *userConnectionRecord) toDomain(encryptor core.Encryptor, locator core.ConnectionFactoryLocator) (core.Connection, error) {
	data, err := r.toData(encryptor)
	if err != nil {
		return core.Connection{}, err
	}
	conn := core.Connection{
		Key:          data.Key(),
		DisplayName:  data.DisplayName,
		ProfileURL:   data.ProfileURL,
		ImageURL:     data.ImageURL,
		AccessToken:  data.AccessToken,
		Secret:       data.Secret,
		RefreshToken: data.RefreshToken,
		ExpireTime:   data.ExpireTime,
		Rank:         r.Rank,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if locator != nil {
		if factory, ok := locator.GetConnectionFactory(r.ProviderID); ok {
			rebuilt, buildErr := factory.CreateConnection(data)
			if buildErr != nil {
				return core.Connection{}, buildErr
			}
			rebuilt.Rank = r.Rank
			rebuilt.CreatedAt = r.CreatedAt.UTC()
			rebuilt.UpdatedAt = r.UpdatedAt.UTC()
			return rebuilt, nil
		}
	}
	return conn, nil
}

type connectionEventRecord struct {
	bun.BaseModel `bun:"table:connection_events,alias:ce"`

	ID             string         `bun:"id,pk"`
	UserID         string         `bun:"user_id,notnull"`
	ProviderID     string         `bun:"provider_id,notnull"`
	ProviderUserID string         `bun:"provider_user_id"`
	EventType      string         `bun:"event_type,notnull"`
	Metadata       map[string]any `bun:"metadata,type:jsonb"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
