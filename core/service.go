package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

var ErrUsersRepositoryRequired = errors.New("core: users connection repository is required")

// Service is the composed entry point: a UsersConnectionRepository with
// configuration, structured logging, metrics, and lifecycle events layered on
// top of the backing repository (in-memory by default, durable via a
// repository factory).
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	factoryLocator    ConnectionFactoryLocator
	users             UsersConnectionRepository
	repositoryFactory any
	persistenceClient any
	eventSink         EventSink
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	FactoryLocator  ConnectionFactoryLocator
	UsersRepository UsersConnectionRepository
	EventSink       EventSink
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("connect", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("connect"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.factoryLocator == nil {
		builder.factoryLocator = NewConnectionFactoryRegistry()
	}
	if builder.eventSink == nil {
		builder.eventSink = NopEventSink{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.usersRepository == nil && builder.repositoryFactory != nil {
		factory, ok := builder.repositoryFactory.(RepositoryStoreFactory)
		if !ok {
			return nil, mapBuildError(builder.errorMapper,
				fmt.Errorf("core: repository factory does not implement RepositoryStoreFactory"))
		}
		users, buildErr := factory.BuildUsersRepository(builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		builder.usersRepository = users
	}
	if builder.usersRepository == nil {
		builder.usersRepository = NewInMemoryUsersConnectionRepository(builder.factoryLocator)
	}
	if builder.connectionSignUp != nil {
		builder.usersRepository.SetConnectionSignUp(builder.connectionSignUp)
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		factoryLocator:    builder.factoryLocator,
		users:             builder.usersRepository,
		repositoryFactory: builder.repositoryFactory,
		persistenceClient: builder.persistenceClient,
		eventSink:         builder.eventSink,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) FactoryLocator() ConnectionFactoryLocator {
	if s == nil {
		return nil
	}
	return s.factoryLocator
}

func (s *Service) UsersRepository() UsersConnectionRepository {
	if s == nil {
		return nil
	}
	return s.users
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		FactoryLocator:  s.factoryLocator,
		UsersRepository: s.users,
		EventSink:       s.eventSink,
	}
}

func (s *Service) CreateConnectionRepository(ctx context.Context, userID string) (ConnectionRepository, error) {
	if s == nil || s.users == nil {
		return nil, ErrUsersRepositoryRequired
	}
	repo, err := s.users.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return repo, nil
}

func (s *Service) FindUserIDsWithConnection(ctx context.Context, c Connection) (userIDs []string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id":      c.Key.ProviderID,
		"provider_user_id": c.Key.ProviderUserID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "find_user_ids_with_connection", err, fields)
	}()

	if s == nil || s.users == nil {
		err = ErrUsersRepositoryRequired
		return nil, err
	}
	userIDs, err = s.users.FindUserIDsWithConnection(ctx, c)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	fields["matched"] = len(userIDs)
	return userIDs, nil
}

func (s *Service) FindUserIDsConnectedTo(ctx context.Context, providerID string, providerUserIDs []string) (userIDs []string, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": providerID,
		"candidates":  len(providerUserIDs),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "find_user_ids_connected_to", err, fields)
	}()

	if s == nil || s.users == nil {
		err = ErrUsersRepositoryRequired
		return nil, err
	}
	userIDs, err = s.users.FindUserIDsConnectedTo(ctx, providerID, providerUserIDs)
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}
	fields["matched"] = len(userIDs)
	return userIDs, nil
}

func (s *Service) SetConnectionSignUp(signUp ConnectionSignUp) {
	if s == nil || s.users == nil {
		return
	}
	s.users.SetConnectionSignUp(signUp)
}

// AddConnection resolves the provider's factory, builds the connection from
// its persisted form, and stores it for the user.
func (s *Service) AddConnection(ctx context.Context, userID string, data ConnectionData) (conn Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":     userID,
		"provider_id": data.ProviderID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "add_connection", err, fields)
	}()

	conn, err = s.buildConnection(data)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	repo, err := s.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return Connection{}, err
	}
	conn, err = repo.AddConnection(ctx, conn)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	s.recordEvent(ctx, EventConnectionAdded, userID, conn.Key)
	return conn, nil
}

// UpdateConnection refreshes credential material after a re-authentication.
func (s *Service) UpdateConnection(ctx context.Context, userID string, data ConnectionData) (conn Connection, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":     userID,
		"provider_id": data.ProviderID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "update_connection", err, fields)
	}()

	conn, err = s.buildConnection(data)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	repo, err := s.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return Connection{}, err
	}
	conn, err = repo.UpdateConnection(ctx, conn)
	if err != nil {
		err = s.mapError(err)
		return Connection{}, err
	}
	s.recordEvent(ctx, EventConnectionUpdated, userID, conn.Key)
	return conn, nil
}

func (s *Service) RemoveConnection(ctx context.Context, userID string, key ConnectionKey) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":     userID,
		"provider_id": key.ProviderID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_connection", err, fields)
	}()

	repo, err := s.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return err
	}
	if err = repo.RemoveConnection(ctx, key); err != nil {
		err = s.mapError(err)
		return err
	}
	s.recordEvent(ctx, EventConnectionRemoved, userID, key)
	return nil
}

func (s *Service) RemoveConnections(ctx context.Context, userID string, providerID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"user_id":     userID,
		"provider_id": providerID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "remove_connections", err, fields)
	}()

	repo, err := s.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return err
	}
	if err = repo.RemoveConnections(ctx, providerID); err != nil {
		err = s.mapError(err)
		return err
	}
	s.recordEvent(ctx, EventConnectionRemoved, userID, ConnectionKey{ProviderID: providerID})
	return nil
}

func (s *Service) GetConnection(ctx context.Context, userID string, key ConnectionKey) (Connection, error) {
	repo, err := s.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return Connection{}, err
	}
	conn, err := repo.GetConnection(ctx, key)
	if err != nil {
		return Connection{}, s.mapError(err)
	}
	return conn, nil
}

func (s *Service) FindConnections(ctx context.Context, userID string, providerID string) ([]Connection, error) {
	repo, err := s.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return nil, err
	}
	list, err := repo.FindConnections(ctx, providerID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return list, nil
}

func (s *Service) FindPrimaryConnection(ctx context.Context, userID string, providerID string) (Connection, error) {
	repo, err := s.CreateConnectionRepository(ctx, userID)
	if err != nil {
		return Connection{}, err
	}
	conn, err := repo.FindPrimaryConnection(ctx, providerID)
	if err != nil {
		return Connection{}, s.mapError(err)
	}
	return conn, nil
}

func (s *Service) buildConnection(data ConnectionData) (Connection, error) {
	if err := data.Validate(); err != nil {
		return Connection{}, err
	}
	if s != nil && s.factoryLocator != nil {
		if factory, ok := s.factoryLocator.GetConnectionFactory(data.ProviderID); ok {
			return factory.CreateConnection(data)
		}
		return Connection{}, noSuchConnectionFactory(strings.TrimSpace(data.ProviderID))
	}
	return Connection{
		Key:          data.Key(),
		DisplayName:  data.DisplayName,
		ProfileURL:   data.ProfileURL,
		ImageURL:     data.ImageURL,
		AccessToken:  data.AccessToken,
		Secret:       data.Secret,
		RefreshToken: data.RefreshToken,
		ExpireTime:   copyTime(data.ExpireTime),
	}, nil
}

func (s *Service) recordEvent(ctx context.Context, eventType string, userID string, key ConnectionKey) {
	if s == nil || s.eventSink == nil {
		return
	}
	event := ConnectionEvent{
		ID:             uuid.NewString(),
		UserID:         strings.TrimSpace(userID),
		ProviderID:     key.ProviderID,
		ProviderUserID: key.ProviderUserID,
		EventType:      eventType,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.eventSink.Record(ctx, event); err != nil {
		s.logError(ctx, "record connection event failed", map[string]any{
			"event_type":  eventType,
			"user_id":     event.UserID,
			"provider_id": event.ProviderID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

var _ UsersConnectionRepository = (*Service)(nil)
