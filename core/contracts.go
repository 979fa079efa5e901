package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// ConnectionFactory reconstructs connections for a single provider from their
// persisted form. Implementations normally wrap a provider SDK's profile
// mapping; this package only needs the data round trip.
type ConnectionFactory interface {
	ProviderID() string
	CreateConnection(data ConnectionData) (Connection, error)
}

// ConnectionFactoryLocator resolves the factory registered for a provider id.
type ConnectionFactoryLocator interface {
	GetConnectionFactory(providerID string) (ConnectionFactory, bool)
	RegisteredProviderIDs() []string
}

// ConnectionRepository holds every connection belonging to one local user.
// A repository is internally thread-safe and is the unit of mutual exclusion:
// operations on one user's repository are linearizable, operations on
// different users never block each other.
type ConnectionRepository interface {
	UserID() string

	// AddConnection assigns the next rank for the connection's provider
	// (max existing rank + 1, or 1) and stores it. Fails with
	// DuplicateConnectionError when the key is already present.
	AddConnection(ctx context.Context, c Connection) (Connection, error)

	// UpdateConnection refreshes credential and presentation fields of an
	// existing connection, keeping its rank. Fails with
	// NoSuchConnectionError when the key is absent.
	UpdateConnection(ctx context.Context, c Connection) (Connection, error)

	// RemoveConnection is an idempotent no-op when the key is absent.
	RemoveConnection(ctx context.Context, key ConnectionKey) error

	// RemoveConnections drops every connection held for one provider.
	RemoveConnections(ctx context.Context, providerID string) error

	// GetConnection fails with NoSuchConnectionError when the key is absent.
	GetConnection(ctx context.Context, key ConnectionKey) (Connection, error)

	// FindConnections returns the user's connections for one provider in
	// ascending rank order; an empty slice, not an error, when none exist.
	FindConnections(ctx context.Context, providerID string) ([]Connection, error)

	// FindAllConnections groups every stored connection by provider id. It
	// fails with NoSuchConnectionFactoryError when any stored provider id
	// has no registered factory, guarding against orphaned rows from a
	// provider whose support was removed.
	FindAllConnections(ctx context.Context) (map[string][]Connection, error)

	// FindPrimaryConnection returns the lowest-rank connection for a
	// provider; NoSuchConnectionError when the user has none.
	FindPrimaryConnection(ctx context.Context, providerID string) (Connection, error)
}

// ConnectionSignUp provisions a local user for a connection that matched no
// existing user. Returning an empty user id declines provisioning.
type ConnectionSignUp interface {
	ExecuteSignUp(ctx context.Context, c Connection) (string, error)
}

type ConnectionSignUpFunc func(ctx context.Context, c Connection) (string, error)

func (f ConnectionSignUpFunc) ExecuteSignUp(ctx context.Context, c Connection) (string, error) {
	return f(ctx, c)
}

// UsersConnectionRepository owns the mapping from local user ids to per-user
// connection repositories and answers cross-user ownership queries.
type UsersConnectionRepository interface {
	// CreateConnectionRepository is get-or-create and race-free: two
	// concurrent first-time calls for one user id observe the same
	// repository, never two.
	CreateConnectionRepository(ctx context.Context, userID string) (ConnectionRepository, error)

	// FindUserIDsWithConnection returns every local user id holding a
	// connection with c's key. When the scan yields zero matches and a
	// sign-up callback is configured, the callback runs exactly once; a
	// non-empty new user id provisions that user's repository with c at
	// rank 1 and is returned alone.
	FindUserIDsWithConnection(ctx context.Context, c Connection) ([]string, error)

	// FindUserIDsConnectedTo returns the sorted, deduplicated user ids
	// holding any of the given provider user ids at the named provider.
	FindUserIDsConnectedTo(ctx context.Context, providerID string, providerUserIDs []string) ([]string, error)

	SetConnectionSignUp(signUp ConnectionSignUp)
}

// Encryptor protects credential material at rest in durable backends. The
// default is NoOpEncryptor; real encryption is a deployment concern injected
// from outside this module.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type NoOpEncryptor struct{}

func (NoOpEncryptor) Encrypt(plaintext string) (string, error) { return plaintext, nil }

func (NoOpEncryptor) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }

// ConnectionEvent is an append-only lifecycle record emitted after successful
// mutations: connection.added, connection.updated, connection.removed,
// user.signed_up.
type ConnectionEvent struct {
	ID             string
	UserID         string
	ProviderID     string
	ProviderUserID string
	EventType      string
	Metadata       map[string]any
	CreatedAt      time.Time
}

const (
	EventConnectionAdded   = "connection.added"
	EventConnectionUpdated = "connection.updated"
	EventConnectionRemoved = "connection.removed"
	EventUserSignedUp      = "user.signed_up"
)

// EventSink receives lifecycle events. Sink failures are logged, never
// propagated: event recording must not fail the mutation it follows.
type EventSink interface {
	Record(ctx context.Context, event ConnectionEvent) error
}

type NopEventSink struct{}

func (NopEventSink) Record(context.Context, ConnectionEvent) error { return nil }

// RepositoryStoreFactory builds a durable users-connection repository from a
// persistence client. Implemented by store/sql.
type RepositoryStoreFactory interface {
	BuildUsersRepository(persistenceClient any) (UsersConnectionRepository, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
