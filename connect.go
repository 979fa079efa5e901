// Package connect manages persisted links between local user accounts and
// their accounts on external service providers. The root package re-exports
// the core surface so callers can depend on a single import path.
package connect

import "github.com/goliatone/go-connect/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Connection = core.Connection
type ConnectionData = core.ConnectionData
type ConnectionKey = core.ConnectionKey
type ConnectionEvent = core.ConnectionEvent

type ConnectionFactory = core.ConnectionFactory
type ConnectionFactoryLocator = core.ConnectionFactoryLocator
type ConnectionFactoryRegistry = core.ConnectionFactoryRegistry
type ConnectionRepository = core.ConnectionRepository
type UsersConnectionRepository = core.UsersConnectionRepository
type ConnectionSignUp = core.ConnectionSignUp
type ConnectionSignUpFunc = core.ConnectionSignUpFunc
type Encryptor = core.Encryptor
type EventSink = core.EventSink

var (
	WithLogger                   = core.WithLogger
	WithLoggerProvider           = core.WithLoggerProvider
	WithMetricsRecorder          = core.WithMetricsRecorder
	WithErrorFactory             = core.WithErrorFactory
	WithErrorMapper              = core.WithErrorMapper
	WithConfigProvider           = core.WithConfigProvider
	WithOptionsResolver          = core.WithOptionsResolver
	WithConnectionFactoryLocator = core.WithConnectionFactoryLocator
	WithUsersRepository          = core.WithUsersRepository
	WithRepositoryFactory        = core.WithRepositoryFactory
	WithPersistenceClient        = core.WithPersistenceClient
	WithConnectionSignUp         = core.WithConnectionSignUp
	WithEventSink                = core.WithEventSink
)

func NewConnectionFactoryRegistry() *ConnectionFactoryRegistry {
	return core.NewConnectionFactoryRegistry()
}

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
