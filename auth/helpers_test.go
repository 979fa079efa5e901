package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-connect/core"
)

type stubConnectionFactory struct {
	providerID string
}

func (f stubConnectionFactory) ProviderID() string { return f.providerID }

func (f stubConnectionFactory) CreateConnection(data core.ConnectionData) (core.Connection, error) {
	return core.Connection{
		Key:         data.Key(),
		DisplayName: data.DisplayName,
	}, nil
}

type stubAuthService struct {
	providerID  string
	cardinality ConnectionCardinality
	token       *Token
	tokenErr    error
	pending     bool
	addedURL    string
}

func (s *stubAuthService) ProviderID() string { return s.providerID }

func (s *stubAuthService) ConnectionCardinality() ConnectionCardinality {
	if s.cardinality == "" {
		return OneToOne
	}
	return s.cardinality
}

func (s *stubAuthService) ConnectionFactory() core.ConnectionFactory {
	return stubConnectionFactory{providerID: s.providerID}
}

func (s *stubAuthService) AuthToken(w http.ResponseWriter, r *http.Request) (*Token, error) {
	if s.tokenErr != nil {
		return nil, s.tokenErr
	}
	if s.pending {
		http.Redirect(w, r, "https://provider.example.com/oauth", http.StatusFound)
		return nil, nil
	}
	return s.token, nil
}

func (s *stubAuthService) ConnectionAddedRedirectURL(*http.Request, core.Connection) string {
	return s.addedURL
}

func stubConnection(providerID, providerUserID string) core.Connection {
	expires := time.Now().UTC().Add(time.Hour)
	return core.Connection{
		Key:         core.NewConnectionKey(providerID, providerUserID),
		DisplayName: "@" + providerUserID,
		AccessToken: "access-" + providerUserID,
		ExpireTime:  &expires,
	}
}

func acceptAllManager() AuthenticationManager {
	return AuthenticationManagerFunc(func(_ context.Context, token *Token) (*Token, error) {
		accepted := *token
		accepted.Authenticated = true
		return &accepted, nil
	})
}

func rejectAllManager() AuthenticationManager {
	return AuthenticationManagerFunc(func(context.Context, *Token) (*Token, error) {
		return nil, ErrBadCredentials
	})
}

func newLinkedUsers(userID string, connections ...core.Connection) *core.InMemoryUsersConnectionRepository {
	locator := core.NewConnectionFactoryRegistry()
	users := core.NewInMemoryUsersConnectionRepository(locator)
	if userID == "" {
		return users
	}
	repo, err := users.CreateConnectionRepository(context.Background(), userID)
	if err != nil {
		panic(err)
	}
	for _, c := range connections {
		if _, err := repo.AddConnection(context.Background(), c); err != nil {
			panic(err)
		}
	}
	return users
}
