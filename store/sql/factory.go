package sqlstore

import (
	"fmt"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-connect/core"
)

type storeSettings struct {
	tablePrefix string
	locator     core.ConnectionFactoryLocator
	encryptor   core.Encryptor
}

type StoreOption func(*storeSettings)

// WithTablePrefix prepends a naming prefix to every table this backend owns,
// e.g. "acct_" yields acct_user_connections.
func WithTablePrefix(prefix string) StoreOption {
	return func(s *storeSettings) {
		s.tablePrefix = strings.TrimSpace(prefix)
	}
}

func WithFactoryLocator(locator core.ConnectionFactoryLocator) StoreOption {
	return func(s *storeSettings) {
		s.locator = locator
	}
}

// WithEncryptor protects credential columns at rest. The default is
// core.NoOpEncryptor.
func WithEncryptor(encryptor core.Encryptor) StoreOption {
	return func(s *storeSettings) {
		s.encryptor = encryptor
	}
}

// RepositoryFactory builds the durable stores from a persistence client or a
// raw bun db. It implements core.RepositoryStoreFactory so it can be handed
// to core.NewService via WithRepositoryFactory.
type RepositoryFactory struct {
	db      *bun.DB
	options []StoreOption

	usersStore *UsersStore
	eventStore *EventStore
}

func NewRepositoryFactory(options ...StoreOption) *RepositoryFactory {
	return &RepositoryFactory{options: options}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, options ...StoreOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(options...)
	if _, err := factory.BuildUsersRepository(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, options ...StoreOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(options...)
	if _, err := factory.BuildUsersRepository(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildUsersRepository(persistenceClient any) (core.UsersConnectionRepository, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.usersStore != nil {
		return f.usersStore, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f.usersStore, nil
}

func (f *RepositoryFactory) UsersStore() *UsersStore {
	if f == nil {
		return nil
	}
	return f.usersStore
}

func (f *RepositoryFactory) EventStore() *EventStore {
	if f == nil {
		return nil
	}
	return f.eventStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	usersStore, err := NewUsersStore(f.db, f.options...)
	if err != nil {
		return err
	}
	eventStore, err := NewEventStore(f.db)
	if err != nil {
		return err
	}
	f.usersStore = usersStore
	f.eventStore = eventStore
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
