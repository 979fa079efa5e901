package auth

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-connect/core"
)

// Outcome labels how the filter resolved one matched request.
type Outcome string

const (
	OutcomeAuthenticated    Outcome = "authenticated"
	OutcomeRegisterRedirect Outcome = "register_redirect"
	OutcomeLinkSuccess      Outcome = "link_success"
	OutcomeLinkFailure      Outcome = "link_failure"
	OutcomeHandshakePending Outcome = "handshake_pending"
	OutcomeSkipped          Outcome = "skipped"
	OutcomeError            Outcome = "error"
)

type FilterConfig struct {
	// ProcessPath is the path prefix this filter owns; provider ids are
	// taken from the next path segment, e.g. /auth/github.
	ProcessPath string

	PostLoginURL string

	// SignupURL receives users whose handshake completed but matched no
	// authenticatable local account.
	SignupURL string

	ConnectionAddedRedirectURL         string
	ConnectionAddingFailureRedirectURL string

	// FailureURL receives requests whose handshake or authentication failed
	// with a server fault.
	FailureURL string

	// AlwaysUsePostLoginURL ignores the request's redirect_to parameter and
	// always sends successful logins to PostLoginURL.
	AlwaysUsePostLoginURL bool
}

func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		ProcessPath:                        "/auth",
		PostLoginURL:                       "/",
		SignupURL:                          "/signup",
		ConnectionAddedRedirectURL:         "/",
		ConnectionAddingFailureRedirectURL: "/",
		FailureURL:                         "/signin",
	}
}

// Filter drives the authentication handshake for requests under ProcessPath:
// it completes the provider handshake, signs in or provisions a local user,
// or links an additional provider account to the authenticated session.
// The security context is only written after a fully successful
// authentication; every failure path leaves prior session state untouched.
type Filter struct {
	config          FilterConfig
	manager         AuthenticationManager
	userIDSource    UserIDSource
	users           core.UsersConnectionRepository
	locator         ServiceLocator
	securityContext SecurityContext
	logger          Logger
}

type FilterOption func(*Filter)

func WithAuthenticationManager(manager AuthenticationManager) FilterOption {
	return func(f *Filter) {
		f.manager = manager
	}
}

func WithUserIDSource(source UserIDSource) FilterOption {
	return func(f *Filter) {
		f.userIDSource = source
	}
}

func WithUsersRepository(users core.UsersConnectionRepository) FilterOption {
	return func(f *Filter) {
		f.users = users
	}
}

func WithServiceLocator(locator ServiceLocator) FilterOption {
	return func(f *Filter) {
		f.locator = locator
	}
}

func WithSecurityContext(securityContext SecurityContext) FilterOption {
	return func(f *Filter) {
		f.securityContext = securityContext
	}
}

func WithFilterLogger(logger Logger) FilterOption {
	return func(f *Filter) {
		f.logger = logger
	}
}

func NewFilter(cfg FilterConfig, options ...FilterOption) (*Filter, error) {
	defaults := DefaultFilterConfig()
	if strings.TrimSpace(cfg.ProcessPath) == "" {
		cfg.ProcessPath = defaults.ProcessPath
	}
	if strings.TrimSpace(cfg.PostLoginURL) == "" {
		cfg.PostLoginURL = defaults.PostLoginURL
	}
	if strings.TrimSpace(cfg.SignupURL) == "" {
		cfg.SignupURL = defaults.SignupURL
	}
	if strings.TrimSpace(cfg.ConnectionAddedRedirectURL) == "" {
		cfg.ConnectionAddedRedirectURL = defaults.ConnectionAddedRedirectURL
	}
	if strings.TrimSpace(cfg.ConnectionAddingFailureRedirectURL) == "" {
		cfg.ConnectionAddingFailureRedirectURL = defaults.ConnectionAddingFailureRedirectURL
	}
	if strings.TrimSpace(cfg.FailureURL) == "" {
		cfg.FailureURL = defaults.FailureURL
	}
	cfg.ProcessPath = "/" + strings.Trim(strings.TrimSpace(cfg.ProcessPath), "/")

	f := &Filter{config: cfg}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(f)
	}

	if f.users == nil {
		return nil, fmt.Errorf("auth: users connection repository is required")
	}
	if f.locator == nil {
		return nil, fmt.Errorf("auth: authentication service locator is required")
	}
	if f.userIDSource == nil {
		f.userIDSource = PrincipalUserIDSource{}
	}
	if f.securityContext == nil {
		f.securityContext = NewMemorySecurityContext()
	}
	if f.logger == nil {
		_, logger := glog.Resolve("connect.auth", nil, nil)
		f.logger = glog.Ensure(logger)
	}
	return f, nil
}

func (f *Filter) Config() FilterConfig {
	if f == nil {
		return FilterConfig{}
	}
	return f.config
}

// Wrap returns a handler that processes handshake requests under ProcessPath
// and passes every other request to next.
func (f *Filter) Wrap(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerID, ok := f.providerIDFromPath(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		outcome := f.Process(w, r, providerID)
		if outcome == OutcomeSkipped {
			next.ServeHTTP(w, r)
		}
	})
}

// Process runs the handshake flow for one matched request and reports how it
// resolved. Exposed for composition outside of Wrap.
func (f *Filter) Process(w http.ResponseWriter, r *http.Request, providerID string) Outcome {
	service, ok := f.locator.Lookup(providerID)
	if !ok {
		envelope := unknownProviderEnvelope(providerID)
		f.logOutcome(r, providerID, OutcomeError, map[string]any{"error": envelope.Message})
		http.Error(w, envelope.Message, envelope.Code)
		return OutcomeError
	}

	token, err := service.AuthToken(w, r)
	if err != nil {
		f.logOutcome(r, providerID, OutcomeError, map[string]any{"error": err.Error()})
		f.redirect(w, r, f.config.FailureURL)
		return OutcomeError
	}
	if token == nil {
		// The service issued its own redirect; the handshake resumes on a
		// later request.
		f.logOutcome(r, providerID, OutcomeHandshakePending, nil)
		return OutcomeHandshakePending
	}

	current := f.securityContext.Authentication(r)
	if current != nil && current.Authenticated {
		return f.addConnection(w, r, service, current, token)
	}
	return f.authenticate(w, r, service, token)
}

func (f *Filter) authenticate(w http.ResponseWriter, r *http.Request, service AuthenticationService, token *Token) Outcome {
	providerID := token.ProviderID()
	if !service.ConnectionCardinality().AuthenticatePossible() {
		f.logOutcome(r, providerID, OutcomeSkipped, map[string]any{
			"cardinality": string(service.ConnectionCardinality()),
		})
		return OutcomeSkipped
	}

	userIDs, err := f.users.FindUserIDsWithConnection(r.Context(), token.Connection)
	if err != nil {
		f.logOutcome(r, providerID, OutcomeError, map[string]any{"error": err.Error()})
		f.redirect(w, r, f.config.FailureURL)
		return OutcomeError
	}
	if len(userIDs) != 1 {
		f.logOutcome(r, providerID, OutcomeRegisterRedirect, map[string]any{"matched": len(userIDs)})
		f.redirect(w, r, resolveRedirectURL(r, f.config.SignupURL))
		return OutcomeRegisterRedirect
	}

	if f.manager == nil {
		f.logOutcome(r, providerID, OutcomeError, map[string]any{"error": "authentication manager is not configured"})
		f.redirect(w, r, f.config.FailureURL)
		return OutcomeError
	}
	token.UserID = userIDs[0]
	authenticated, err := f.manager.Authenticate(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrBadCredentials) {
			f.logOutcome(r, providerID, OutcomeRegisterRedirect, map[string]any{"error": err.Error()})
			f.redirect(w, r, resolveRedirectURL(r, f.config.SignupURL))
			return OutcomeRegisterRedirect
		}
		f.logOutcome(r, providerID, OutcomeError, map[string]any{"error": err.Error()})
		f.redirect(w, r, f.config.FailureURL)
		return OutcomeError
	}
	if authenticated == nil || !authenticated.Authenticated {
		f.logOutcome(r, providerID, OutcomeRegisterRedirect, map[string]any{"error": "authentication manager returned an unauthenticated token"})
		f.redirect(w, r, resolveRedirectURL(r, f.config.SignupURL))
		return OutcomeRegisterRedirect
	}

	if err := f.securityContext.SetAuthentication(w, r, authenticated); err != nil {
		f.logOutcome(r, providerID, OutcomeError, map[string]any{"error": err.Error()})
		f.redirect(w, r, f.config.FailureURL)
		return OutcomeError
	}
	f.logOutcome(r, providerID, OutcomeAuthenticated, map[string]any{"user_id": authenticated.UserID})
	f.redirect(w, r, f.postLoginTarget(r))
	return OutcomeAuthenticated
}

func (f *Filter) addConnection(w http.ResponseWriter, r *http.Request, service AuthenticationService, current *Token, token *Token) Outcome {
	providerID := token.ProviderID()
	userID := strings.TrimSpace(f.userIDSource.UserID(current))
	if userID == "" {
		f.logOutcome(r, providerID, OutcomeLinkFailure, map[string]any{"error": "no user id for authenticated session"})
		f.redirect(w, r, f.config.ConnectionAddingFailureRedirectURL)
		return OutcomeLinkFailure
	}

	key := token.Connection.Key
	owners, err := f.users.FindUserIDsConnectedTo(r.Context(), key.ProviderID, []string{key.ProviderUserID})
	if err != nil {
		f.logOutcome(r, providerID, OutcomeError, map[string]any{"error": err.Error()})
		f.redirect(w, r, f.config.FailureURL)
		return OutcomeError
	}

	cardinality := service.ConnectionCardinality()
	if reason, conflict := f.linkConflict(r, cardinality, userID, key, owners); conflict {
		f.logOutcome(r, providerID, OutcomeLinkFailure, map[string]any{
			"user_id": userID,
			"reason":  reason,
		})
		f.redirect(w, r, f.config.ConnectionAddingFailureRedirectURL)
		return OutcomeLinkFailure
	}

	repo, err := f.users.CreateConnectionRepository(r.Context(), userID)
	if err != nil {
		f.logOutcome(r, providerID, OutcomeError, map[string]any{"error": err.Error()})
		f.redirect(w, r, f.config.FailureURL)
		return OutcomeError
	}
	if _, err := repo.AddConnection(r.Context(), token.Connection); err != nil {
		f.logOutcome(r, providerID, OutcomeLinkFailure, map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		f.redirect(w, r, f.config.ConnectionAddingFailureRedirectURL)
		return OutcomeLinkFailure
	}

	redirectURL := strings.TrimSpace(service.ConnectionAddedRedirectURL(r, token.Connection))
	if redirectURL == "" {
		redirectURL = f.config.ConnectionAddedRedirectURL
	}
	f.logOutcome(r, providerID, OutcomeLinkSuccess, map[string]any{"user_id": userID})
	f.redirect(w, r, redirectURL)
	return OutcomeLinkSuccess
}

// linkConflict applies the cardinality policy to an attempted link: the
// current user may not hold the key already, a single-user key may not belong
// to anyone else, and a single-connection provider may not gain a second
// connection for this user.
func (f *Filter) linkConflict(r *http.Request, cardinality ConnectionCardinality, userID string, key core.ConnectionKey, owners []string) (string, bool) {
	for _, owner := range owners {
		if owner == userID {
			return "already_connected", true
		}
	}
	if !cardinality.MultiUserID() && len(owners) > 0 {
		return "connected_to_another_user", true
	}
	if !cardinality.MultiConnection() {
		repo, err := f.users.CreateConnectionRepository(r.Context(), userID)
		if err != nil {
			return err.Error(), true
		}
		existing, err := repo.FindConnections(r.Context(), key.ProviderID)
		if err != nil {
			return err.Error(), true
		}
		if len(existing) > 0 {
			return "provider_already_connected", true
		}
	}
	return "", false
}

func (f *Filter) providerIDFromPath(r *http.Request) (string, bool) {
	if r == nil || r.URL == nil {
		return "", false
	}
	requestPath := r.URL.Path
	if !strings.HasPrefix(requestPath, f.config.ProcessPath) {
		return "", false
	}
	// The prefix must end at a path boundary: /auth/mock matches, /authx
	// and /authors belong to someone else.
	rest := strings.TrimPrefix(requestPath, f.config.ProcessPath)
	if rest != "" && !strings.HasPrefix(rest, "/") {
		return "", false
	}
	rest = strings.Trim(rest, "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

func (f *Filter) postLoginTarget(r *http.Request) string {
	if !f.config.AlwaysUsePostLoginURL && r != nil {
		if target := strings.TrimSpace(r.URL.Query().Get("redirect_to")); strings.HasPrefix(target, "/") {
			return target
		}
	}
	return f.config.PostLoginURL
}

func (f *Filter) redirect(w http.ResponseWriter, r *http.Request, url string) {
	if strings.TrimSpace(url) == "" {
		url = "/"
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func (f *Filter) logOutcome(r *http.Request, providerID string, outcome Outcome, fields map[string]any) {
	if f == nil || f.logger == nil {
		return
	}
	logger := f.logger
	if r != nil {
		logger = logger.WithContext(r.Context())
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := []any{"provider_id", providerID, "outcome", string(outcome)}
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	if outcome == OutcomeError {
		logger.Error("authentication flow failed", args...)
		return
	}
	logger.Info("authentication flow resolved", args...)
}
