package auth

import (
	"context"
	"net/http"
	"sync"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-connect/core"
)

// ConnectionCardinality governs how many local users may share one provider
// account and how many provider accounts one local user may hold.
type ConnectionCardinality string

const (
	// OneToOne: one provider account maps to one local user and vice versa.
	OneToOne ConnectionCardinality = "one_to_one"
	// OneToMany: a local user may hold several accounts at the provider, but
	// each provider account belongs to at most one local user.
	OneToMany ConnectionCardinality = "one_to_many"
	// ManyToOne: several local users may share one provider account; a local
	// user holds at most one account per provider. Sign-in by provider
	// account is ambiguous under this mode.
	ManyToOne ConnectionCardinality = "many_to_one"
	// ManyToMany places no restriction in either direction.
	ManyToMany ConnectionCardinality = "many_to_many"
)

// MultiUserID reports whether one provider account may be linked to more than
// one local user.
func (c ConnectionCardinality) MultiUserID() bool {
	return c == ManyToOne || c == ManyToMany
}

// MultiConnection reports whether one local user may hold more than one
// account at the same provider.
func (c ConnectionCardinality) MultiConnection() bool {
	return c == OneToMany || c == ManyToMany
}

// AuthenticatePossible reports whether a provider account resolves to at most
// one local user, making sign-in by provider account well defined.
func (c ConnectionCardinality) AuthenticatePossible() bool {
	return !c.MultiUserID()
}

// Token is the authentication credential carried through the filter: the
// provider connection it was derived from, plus the resolved principal once
// the authentication manager accepts it.
type Token struct {
	Connection    core.Connection
	UserID        string
	Principal     any
	Authorities   []string
	Authenticated bool
}

func (t *Token) ProviderID() string {
	if t == nil {
		return ""
	}
	return t.Connection.Key.ProviderID
}

// AuthenticationService is the per-provider handshake collaborator. AuthToken
// owns the redirect round-trip with the provider: a (nil, nil) return means
// the service issued a redirect itself and the handshake continues on a later
// request.
type AuthenticationService interface {
	ProviderID() string
	ConnectionCardinality() ConnectionCardinality
	ConnectionFactory() core.ConnectionFactory
	AuthToken(w http.ResponseWriter, r *http.Request) (*Token, error)

	// ConnectionAddedRedirectURL may return "" to use the filter's
	// configured default.
	ConnectionAddedRedirectURL(r *http.Request, c core.Connection) string
}

// ServiceLocator resolves the handshake service registered for a provider id.
type ServiceLocator interface {
	Lookup(providerID string) (AuthenticationService, bool)
	RegisteredProviderIDs() []string
}

// AuthenticationManager validates a credential and resolves its principal.
// Rejections fail with ErrBadCredentials; any other error is a server fault.
type AuthenticationManager interface {
	Authenticate(ctx context.Context, token *Token) (*Token, error)
}

type AuthenticationManagerFunc func(ctx context.Context, token *Token) (*Token, error)

func (f AuthenticationManagerFunc) Authenticate(ctx context.Context, token *Token) (*Token, error) {
	return f(ctx, token)
}

// UserIDSource resolves the local user id behind an authenticated token.
type UserIDSource interface {
	UserID(token *Token) string
}

type UserIDSourceFunc func(token *Token) string

func (f UserIDSourceFunc) UserID(token *Token) string { return f(token) }

// PrincipalUserIDSource reads the token's own UserID field.
type PrincipalUserIDSource struct{}

func (PrincipalUserIDSource) UserID(token *Token) string {
	if token == nil {
		return ""
	}
	return token.UserID
}

// SecurityContext holds the request's authentication state. Implementations
// back it with session storage; the filter only ever writes a fully
// authenticated token.
type SecurityContext interface {
	Authentication(r *http.Request) *Token
	SetAuthentication(w http.ResponseWriter, r *http.Request, token *Token) error
}

// MemorySecurityContext keeps the authentication in process memory. Suitable
// for tests and single-request composition.
type MemorySecurityContext struct {
	mu    sync.RWMutex
	token *Token
}

func NewMemorySecurityContext() *MemorySecurityContext {
	return &MemorySecurityContext{}
}

func (c *MemorySecurityContext) Authentication(*http.Request) *Token {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *MemorySecurityContext) SetAuthentication(_ http.ResponseWriter, _ *http.Request, token *Token) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

type Logger = glog.Logger
