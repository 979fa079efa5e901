package core_test

import (
	"context"
	"strings"
	"testing"

	"github.com/goliatone/go-connect/core"
	"github.com/goliatone/go-connect/devkit"
)

type conformanceFactory struct {
	providerID string
}

func (f conformanceFactory) ProviderID() string { return f.providerID }

func (f conformanceFactory) CreateConnection(data core.ConnectionData) (core.Connection, error) {
	return core.Connection{
		Key: core.ConnectionKey{
			ProviderID:     strings.TrimSpace(data.ProviderID),
			ProviderUserID: strings.TrimSpace(data.ProviderUserID),
		},
		DisplayName:  data.DisplayName,
		ProfileURL:   data.ProfileURL,
		ImageURL:     data.ImageURL,
		AccessToken:  data.AccessToken,
		Secret:       data.Secret,
		RefreshToken: data.RefreshToken,
	}, nil
}

func conformanceLocator(t *testing.T, providerIDs ...string) core.ConnectionFactoryLocator {
	t.Helper()
	registry := core.NewConnectionFactoryRegistry()
	for _, providerID := range providerIDs {
		if err := registry.Register(conformanceFactory{providerID: providerID}); err != nil {
			t.Fatalf("register factory %q: %v", providerID, err)
		}
	}
	return registry
}

func TestInMemoryConnectionRepositoryConformance(t *testing.T) {
	locator := conformanceLocator(t, "github")
	repo := core.NewInMemoryConnectionRepository("joe", locator)

	if err := devkit.ValidateConnectionRepositoryConformance(context.Background(), repo, "github"); err != nil {
		t.Fatalf("conformance failed: %v", err)
	}
}

func TestInMemoryUsersConnectionRepositoryConformance(t *testing.T) {
	locator := conformanceLocator(t, "github")
	users := core.NewInMemoryUsersConnectionRepository(locator)

	if err := devkit.ValidateUsersRepositoryConformance(context.Background(), users, "github", "joe", "mary"); err != nil {
		t.Fatalf("conformance failed: %v", err)
	}
}
