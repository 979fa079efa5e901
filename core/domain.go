package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidConnectionKey    = errors.New("core: invalid connection key")
	ErrNoSuchConnection        = errors.New("core: no such connection")
	ErrDuplicateConnection     = errors.New("core: duplicate connection")
	ErrNoSuchConnectionFactory = errors.New("core: no connection factory registered")
)

// ConnectionKey identifies one account at one provider. It is unique within a
// single user's repository but not across users: two local users may both hold
// a connection to the same provider account.
type ConnectionKey struct {
	ProviderID     string
	ProviderUserID string
}

func NewConnectionKey(providerID, providerUserID string) ConnectionKey {
	return ConnectionKey{
		ProviderID:     strings.TrimSpace(providerID),
		ProviderUserID: strings.TrimSpace(providerUserID),
	}
}

func (k ConnectionKey) Validate() error {
	if strings.TrimSpace(k.ProviderID) == "" {
		return fmt.Errorf("%w: empty provider id", ErrInvalidConnectionKey)
	}
	if strings.TrimSpace(k.ProviderUserID) == "" {
		return fmt.Errorf("%w: empty provider user id", ErrInvalidConnectionKey)
	}
	return nil
}

func (k ConnectionKey) String() string {
	return k.ProviderID + ":" + k.ProviderUserID
}

// ConnectionData is the persisted form of a connection, one field per column
// of the durable layout. Credential material is opaque to this package.
type ConnectionData struct {
	ProviderID     string
	ProviderUserID string
	DisplayName    string
	ProfileURL     string
	ImageURL       string
	AccessToken    string
	Secret         string
	RefreshToken   string
	ExpireTime     *time.Time
}

func (d ConnectionData) Key() ConnectionKey {
	return NewConnectionKey(d.ProviderID, d.ProviderUserID)
}

func (d ConnectionData) Validate() error {
	return d.Key().Validate()
}

// Connection is one established link between a local user and a provider
// account. Rank orders a user's connections to the same provider; rank 1 is
// the primary connection. Rank is assigned by the owning repository on add.
type Connection struct {
	Key          ConnectionKey
	DisplayName  string
	ProfileURL   string
	ImageURL     string
	AccessToken  string
	Secret       string
	RefreshToken string
	ExpireTime   *time.Time
	Rank         int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c Connection) Data() ConnectionData {
	return ConnectionData{
		ProviderID:     c.Key.ProviderID,
		ProviderUserID: c.Key.ProviderUserID,
		DisplayName:    c.DisplayName,
		ProfileURL:     c.ProfileURL,
		ImageURL:       c.ImageURL,
		AccessToken:    c.AccessToken,
		Secret:         c.Secret,
		RefreshToken:   c.RefreshToken,
		ExpireTime:     copyTime(c.ExpireTime),
	}
}

func (c Connection) Expired(now time.Time) bool {
	if c.ExpireTime == nil {
		return false
	}
	return now.After(*c.ExpireTime)
}

// NoSuchConnectionError reports a lookup for a key the repository does not
// hold. Matches ErrNoSuchConnection via errors.Is.
type NoSuchConnectionError struct {
	Key ConnectionKey
}

func (e *NoSuchConnectionError) Error() string {
	if e == nil {
		return ErrNoSuchConnection.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNoSuchConnection.Error(), e.Key)
}

func (e *NoSuchConnectionError) Unwrap() error {
	return ErrNoSuchConnection
}

func noSuchConnection(key ConnectionKey) error {
	return &NoSuchConnectionError{Key: key}
}

// DuplicateConnectionError reports an add for a key the user already holds.
// The repository is left unchanged; callers decide whether to update instead.
type DuplicateConnectionError struct {
	Key ConnectionKey
}

func (e *DuplicateConnectionError) Error() string {
	if e == nil {
		return ErrDuplicateConnection.Error()
	}
	return fmt.Sprintf("%s: %s", ErrDuplicateConnection.Error(), e.Key)
}

func (e *DuplicateConnectionError) Unwrap() error {
	return ErrDuplicateConnection
}

func duplicateConnection(key ConnectionKey) error {
	return &DuplicateConnectionError{Key: key}
}

// NoSuchConnectionFactoryError reports stored data for a provider whose
// factory support was removed. Surfaced as a configuration error, never
// silently dropped.
type NoSuchConnectionFactoryError struct {
	ProviderID string
}

func (e *NoSuchConnectionFactoryError) Error() string {
	if e == nil {
		return ErrNoSuchConnectionFactory.Error()
	}
	return fmt.Sprintf("%s: %s", ErrNoSuchConnectionFactory.Error(), e.ProviderID)
}

func (e *NoSuchConnectionFactoryError) Unwrap() error {
	return ErrNoSuchConnectionFactory
}

func noSuchConnectionFactory(providerID string) error {
	return &NoSuchConnectionFactoryError{ProviderID: providerID}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
