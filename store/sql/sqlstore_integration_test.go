package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-connect/core"
	"github.com/goliatone/go-connect/devkit"
	connectmigrations "github.com/goliatone/go-connect/migrations"
	sqlstore "github.com/goliatone/go-connect/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-connect-tests"
}

type testConnectionFactory struct {
	providerID string
}

func (f testConnectionFactory) ProviderID() string { return f.providerID }

func (f testConnectionFactory) CreateConnection(data core.ConnectionData) (core.Connection, error) {
	return core.Connection{
		Key:          data.Key(),
		DisplayName:  data.DisplayName,
		ProfileURL:   data.ProfileURL,
		ImageURL:     data.ImageURL,
		AccessToken:  data.AccessToken,
		Secret:       data.Secret,
		RefreshToken: data.RefreshToken,
		ExpireTime:   data.ExpireTime,
	}, nil
}

func newTestLocator(t *testing.T, providerIDs ...string) core.ConnectionFactoryLocator {
	t.Helper()
	registry := core.NewConnectionFactoryRegistry()
	for _, providerID := range providerIDs {
		if err := registry.Register(testConnectionFactory{providerID: providerID}); err != nil {
			t.Fatalf("register factory %q: %v", providerID, err)
		}
	}
	return registry
}

func testConnection(providerID, providerUserID string) core.Connection {
	return core.Connection{
		Key: core.ConnectionKey{
			ProviderID:     providerID,
			ProviderUserID: providerUserID,
		},
		DisplayName: "@" + providerUserID,
		ProfileURL:  fmt.Sprintf("https://%s.example.com/%s", providerID, providerUserID),
		AccessToken: providerUserID + "-token",
	}
}

// prefixedEncryptor is reversible on purpose so tests can assert that raw
// rows never hold plaintext.
type prefixedEncryptor struct{}

func (prefixedEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return "enc::" + plaintext, nil
}

func (prefixedEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	value, found := strings.CutPrefix(ciphertext, "enc::")
	if !found {
		return "", fmt.Errorf("prefixedEncryptor: unexpected ciphertext %q", ciphertext)
	}
	return value, nil
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:connect-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = connectmigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != connectmigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, connectmigrations.WithValidationTargets(connectmigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"user_connections", "connection_events"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestConnectionRepository_RankAndLifecycle(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithFactoryLocator(newTestLocator(t, "github", "twitter")),
	)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	users := factory.UsersStore()
	if users == nil {
		t.Fatalf("expected users store from factory")
	}

	repo, err := users.CreateConnectionRepository(ctx, "joe")
	if err != nil {
		t.Fatalf("create connection repository: %v", err)
	}
	if repo.UserID() != "joe" {
		t.Fatalf("expected repository scoped to joe, got %q", repo.UserID())
	}

	first, err := repo.AddConnection(ctx, testConnection("github", "octo_1"))
	if err != nil {
		t.Fatalf("add first connection: %v", err)
	}
	if first.Rank != 1 {
		t.Fatalf("expected rank 1, got %d", first.Rank)
	}
	second, err := repo.AddConnection(ctx, testConnection("github", "octo_2"))
	if err != nil {
		t.Fatalf("add second connection: %v", err)
	}
	if second.Rank != 2 {
		t.Fatalf("expected rank 2, got %d", second.Rank)
	}

	var dup *core.DuplicateConnectionError
	if _, err := repo.AddConnection(ctx, testConnection("github", "octo_1")); !errors.As(err, &dup) {
		t.Fatalf("expected duplicate connection error, got %v", err)
	}

	updated := testConnection("github", "octo_1")
	updated.DisplayName = "Octo Prime"
	updated.AccessToken = "rotated-token"
	saved, err := repo.UpdateConnection(ctx, updated)
	if err != nil {
		t.Fatalf("update connection: %v", err)
	}
	if saved.Rank != 1 {
		t.Fatalf("update should preserve rank, got %d", saved.Rank)
	}
	loaded, err := repo.GetConnection(ctx, updated.Key)
	if err != nil {
		t.Fatalf("get updated connection: %v", err)
	}
	if loaded.DisplayName != "Octo Prime" || loaded.AccessToken != "rotated-token" {
		t.Fatalf("update did not persist, got %+v", loaded)
	}

	missing := core.ConnectionKey{ProviderID: "github", ProviderUserID: "nobody"}
	var notFound *core.NoSuchConnectionError
	if _, err := repo.GetConnection(ctx, missing); !errors.As(err, &notFound) {
		t.Fatalf("expected no-such-connection error, got %v", err)
	}

	primary, err := repo.FindPrimaryConnection(ctx, "github")
	if err != nil {
		t.Fatalf("find primary: %v", err)
	}
	if primary.Key != first.Key {
		t.Fatalf("expected octo_1 as primary, got %v", primary.Key)
	}

	if err := repo.RemoveConnection(ctx, first.Key); err != nil {
		t.Fatalf("remove connection: %v", err)
	}
	if err := repo.RemoveConnection(ctx, first.Key); err != nil {
		t.Fatalf("repeated remove should be idempotent: %v", err)
	}
	primary, err = repo.FindPrimaryConnection(ctx, "github")
	if err != nil {
		t.Fatalf("find primary after remove: %v", err)
	}
	if primary.Key != second.Key {
		t.Fatalf("expected octo_2 promoted to primary, got %v", primary.Key)
	}

	if _, err := repo.AddConnection(ctx, testConnection("twitter", "tweety")); err != nil {
		t.Fatalf("add twitter connection: %v", err)
	}
	grouped, err := repo.FindAllConnections(ctx)
	if err != nil {
		t.Fatalf("find all connections: %v", err)
	}
	if len(grouped) != 2 || len(grouped["github"]) != 1 || len(grouped["twitter"]) != 1 {
		t.Fatalf("unexpected grouping: %v", grouped)
	}
}

func TestConnectionRepository_FindAllGuardsUnregisteredProvider(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	writer, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithFactoryLocator(newTestLocator(t, "github", "legacy")),
	)
	if err != nil {
		t.Fatalf("new writer factory: %v", err)
	}
	repo, err := writer.UsersStore().CreateConnectionRepository(ctx, "joe")
	if err != nil {
		t.Fatalf("create writer repository: %v", err)
	}
	if _, err := repo.AddConnection(ctx, testConnection("legacy", "old_1")); err != nil {
		t.Fatalf("add legacy connection: %v", err)
	}

	// A reader without the legacy factory must refuse to surface its rows.
	reader, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithFactoryLocator(newTestLocator(t, "github")),
	)
	if err != nil {
		t.Fatalf("new reader factory: %v", err)
	}
	readRepo, err := reader.UsersStore().CreateConnectionRepository(ctx, "joe")
	if err != nil {
		t.Fatalf("create reader repository: %v", err)
	}

	var missingFactory *core.NoSuchConnectionFactoryError
	if _, err := readRepo.FindAllConnections(ctx); !errors.As(err, &missingFactory) {
		t.Fatalf("expected no-such-connection-factory error, got %v", err)
	}
	if missingFactory.ProviderID != "legacy" {
		t.Fatalf("expected legacy provider flagged, got %q", missingFactory.ProviderID)
	}

	// Per-provider reads for registered providers stay available.
	connections, err := readRepo.FindConnections(ctx, "github")
	if err != nil {
		t.Fatalf("find github connections: %v", err)
	}
	if len(connections) != 0 {
		t.Fatalf("expected no github connections, got %v", connections)
	}
}

func TestUsersStore_CrossUserQueries(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithFactoryLocator(newTestLocator(t, "github")),
	)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	users := factory.UsersStore()

	shared := testConnection("github", "octo_shared")
	for _, userID := range []string{"mary", "joe"} {
		repo, err := users.CreateConnectionRepository(ctx, userID)
		if err != nil {
			t.Fatalf("create repository for %s: %v", userID, err)
		}
		if _, err := repo.AddConnection(ctx, shared); err != nil {
			t.Fatalf("add shared connection for %s: %v", userID, err)
		}
	}

	userIDs, err := users.FindUserIDsWithConnection(ctx, shared)
	if err != nil {
		t.Fatalf("find users with connection: %v", err)
	}
	if len(userIDs) != 2 || userIDs[0] != "joe" || userIDs[1] != "mary" {
		t.Fatalf("expected sorted [joe mary], got %v", userIDs)
	}

	connected, err := users.FindUserIDsConnectedTo(ctx, "github", []string{"octo_shared", "unknown", " "})
	if err != nil {
		t.Fatalf("find users connected to: %v", err)
	}
	if len(connected) != 2 {
		t.Fatalf("expected both users, got %v", connected)
	}

	connected, err = users.FindUserIDsConnectedTo(ctx, "github", []string{" ", ""})
	if err != nil {
		t.Fatalf("find users connected to with blank ids: %v", err)
	}
	if len(connected) != 0 {
		t.Fatalf("expected empty result for blank ids, got %v", connected)
	}
}

func TestUsersStore_SignUpProvisioning(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithFactoryLocator(newTestLocator(t, "github")),
	)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	users := factory.UsersStore()

	signUpCalls := 0
	users.SetConnectionSignUp(core.ConnectionSignUpFunc(func(_ context.Context, _ core.Connection) (string, error) {
		signUpCalls++
		return "newuser", nil
	}))

	unlinked := testConnection("github", "octo_new")
	userIDs, err := users.FindUserIDsWithConnection(ctx, unlinked)
	if err != nil {
		t.Fatalf("find users with connection: %v", err)
	}
	if len(userIDs) != 1 || userIDs[0] != "newuser" {
		t.Fatalf("expected provisioned [newuser], got %v", userIDs)
	}
	if signUpCalls != 1 {
		t.Fatalf("expected one sign-up invocation, got %d", signUpCalls)
	}

	repo, err := users.CreateConnectionRepository(ctx, "newuser")
	if err != nil {
		t.Fatalf("create repository for newuser: %v", err)
	}
	persisted, err := repo.GetConnection(ctx, unlinked.Key)
	if err != nil {
		t.Fatalf("expected provisioned connection persisted: %v", err)
	}
	if persisted.Rank != 1 {
		t.Fatalf("expected provisioned connection at rank 1, got %d", persisted.Rank)
	}

	// A second lookup now matches the provisioned user without sign-up.
	userIDs, err = users.FindUserIDsWithConnection(ctx, unlinked)
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if len(userIDs) != 1 || userIDs[0] != "newuser" {
		t.Fatalf("expected [newuser], got %v", userIDs)
	}
	if signUpCalls != 1 {
		t.Fatalf("sign-up should not run once the connection is linked, got %d calls", signUpCalls)
	}

	// Declining provisioning leaves the result empty.
	users.SetConnectionSignUp(core.ConnectionSignUpFunc(func(_ context.Context, _ core.Connection) (string, error) {
		return "", nil
	}))
	userIDs, err = users.FindUserIDsWithConnection(ctx, testConnection("github", "octo_declined"))
	if err != nil {
		t.Fatalf("declined lookup: %v", err)
	}
	if len(userIDs) != 0 {
		t.Fatalf("expected empty result when sign-up declines, got %v", userIDs)
	}
}

func TestRepositoryFactory_TablePrefixIsolatesTenants(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	if _, err := client.DB().ExecContext(ctx, `
		CREATE TABLE tenant_user_connections (
			id text PRIMARY KEY,
			user_id text NOT NULL,
			provider_id text NOT NULL,
			provider_user_id text NOT NULL,
			rank integer NOT NULL,
			display_name text,
			profile_url text,
			image_url text,
			access_token text,
			secret text,
			refresh_token text,
			expire_time timestamp,
			created_at timestamp NOT NULL DEFAULT current_timestamp,
			updated_at timestamp NOT NULL DEFAULT current_timestamp,
			UNIQUE (user_id, provider_id, provider_user_id)
		)
	`); err != nil {
		t.Fatalf("create tenant table: %v", err)
	}

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithTablePrefix("tenant_"),
		sqlstore.WithFactoryLocator(newTestLocator(t, "github")),
	)
	if err != nil {
		t.Fatalf("new prefixed factory: %v", err)
	}
	repo, err := factory.UsersStore().CreateConnectionRepository(ctx, "joe")
	if err != nil {
		t.Fatalf("create prefixed repository: %v", err)
	}
	if _, err := repo.AddConnection(ctx, testConnection("github", "octo_tenant")); err != nil {
		t.Fatalf("add prefixed connection: %v", err)
	}

	var tenantCount, defaultCount int
	if err := client.DB().NewRaw("SELECT count(*) FROM tenant_user_connections").Scan(ctx, &tenantCount); err != nil {
		t.Fatalf("count tenant rows: %v", err)
	}
	if err := client.DB().NewRaw("SELECT count(*) FROM user_connections").Scan(ctx, &defaultCount); err != nil {
		t.Fatalf("count default rows: %v", err)
	}
	if tenantCount != 1 || defaultCount != 0 {
		t.Fatalf("expected row in tenant table only, got tenant=%d default=%d", tenantCount, defaultCount)
	}
}

func TestConnectionRepository_EncryptsCredentialsAtRest(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithFactoryLocator(newTestLocator(t, "github")),
		sqlstore.WithEncryptor(prefixedEncryptor{}),
	)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	repo, err := factory.UsersStore().CreateConnectionRepository(ctx, "joe")
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	connection := testConnection("github", "octo_secret")
	connection.AccessToken = "plaintext-token"
	if _, err := repo.AddConnection(ctx, connection); err != nil {
		t.Fatalf("add connection: %v", err)
	}

	var rawToken string
	if err := client.DB().NewRaw(
		"SELECT access_token FROM user_connections WHERE provider_user_id = ?",
		"octo_secret",
	).Scan(ctx, &rawToken); err != nil {
		t.Fatalf("read raw token: %v", err)
	}
	if rawToken != "enc::plaintext-token" {
		t.Fatalf("expected encrypted token at rest, got %q", rawToken)
	}

	loaded, err := repo.GetConnection(ctx, connection.Key)
	if err != nil {
		t.Fatalf("get connection: %v", err)
	}
	if loaded.AccessToken != "plaintext-token" {
		t.Fatalf("expected decrypted token on read, got %q", loaded.AccessToken)
	}
}

func TestEventStore_RecordAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	events := factory.EventStore()
	if events == nil {
		t.Fatalf("expected event store from factory")
	}

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i, eventType := range []string{core.EventConnectionAdded, core.EventConnectionUpdated, core.EventConnectionRemoved} {
		if err := events.Record(ctx, core.ConnectionEvent{
			UserID:         "joe",
			ProviderID:     "github",
			ProviderUserID: "octo_1",
			EventType:      eventType,
			Metadata:       map[string]any{"seq": i},
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("record %s: %v", eventType, err)
		}
	}
	if err := events.Record(ctx, core.ConnectionEvent{UserID: "mary", EventType: core.EventUserSignedUp}); err != nil {
		t.Fatalf("record signup event: %v", err)
	}

	listed, err := events.ListByUser(ctx, "joe", 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 events, got %d", len(listed))
	}
	if listed[0].EventType != core.EventConnectionRemoved || listed[1].EventType != core.EventConnectionUpdated {
		t.Fatalf("expected newest first, got %s then %s", listed[0].EventType, listed[1].EventType)
	}

	if err := events.Record(ctx, core.ConnectionEvent{UserID: "", EventType: core.EventConnectionAdded}); err == nil {
		t.Fatalf("expected missing user id to be rejected")
	}
	if err := events.Record(ctx, core.ConnectionEvent{UserID: "joe", EventType: ""}); err == nil {
		t.Fatalf("expected missing event type to be rejected")
	}
}

func TestSQLStoreConformance(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithFactoryLocator(newTestLocator(t, "github")),
	)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	users := factory.UsersStore()

	repo, err := users.CreateConnectionRepository(ctx, "conformance")
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	if err := devkit.ValidateConnectionRepositoryConformance(ctx, repo, "github"); err != nil {
		t.Fatalf("connection repository conformance: %v", err)
	}
	if err := devkit.ValidateUsersRepositoryConformance(ctx, users, "github", "joe", "mary"); err != nil {
		t.Fatalf("users repository conformance: %v", err)
	}
}
