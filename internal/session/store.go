// Package session implements the client-side authentication session: the
// token and profile lifecycle, its durable projection, and the
// normalization of backend failures into renderable state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kavia-common/tierdash-client/internal/apierr"
	"github.com/kavia-common/tierdash-client/internal/gateway"
)

// Durable storage keys. Removal of a value removes the key; an empty
// string is never written as a deletion substitute.
const (
	StorageKeyToken = "auth_token"
	StorageKeyUser  = "auth_user"
)

var (
	// ErrUnauthorized is returned by operations that require an
	// authenticated session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingCredentials is returned before any network call when
	// email or password is empty.
	ErrMissingCredentials = errors.New("email and password are required")
)

// Backend is the set of gateway operations the store drives, plus the
// token sink it is the sole writer of. *gateway.Client satisfies it.
type Backend interface {
	Login(ctx context.Context, email, password string) (*gateway.TokenResponse, error)
	Signup(ctx context.Context, email, password string, tier gateway.Tier) (*gateway.TokenResponse, error)
	Me(ctx context.Context) (*gateway.User, error)
	UpdatePlan(ctx context.Context, tier gateway.Tier) (*gateway.Plan, error)
	SetToken(token string)
	ClearToken()
}

// Store is the session state machine. Token and user are always written
// as a pair: any failure mid-authentication rolls both back, so a partial
// session is never observable.
type Store struct {
	backend Backend
	storage Storage
	logger  zerolog.Logger

	mu         sync.Mutex
	token      string
	user       *gateway.User
	loading    bool
	errMsg     string
	validation map[string][]string
}

// Config holds store dependencies.
type Config struct {
	Backend Backend
	Storage Storage
	Logger  *zerolog.Logger
}

// New creates a session store. It performs no I/O; call Restore to
// rehydrate a persisted session.
func New(cfg Config) (*Store, error) {
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Store{
		backend: cfg.Backend,
		storage: cfg.Storage,
		logger:  logger,
	}, nil
}

// Snapshot is a consistent copy of the observable session state.
type Snapshot struct {
	Token            string
	User             *gateway.User
	Loading          bool
	Error            string
	ValidationErrors map[string][]string
	Authenticated    bool
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Token:         s.token,
		Loading:       s.loading,
		Error:         s.errMsg,
		Authenticated: s.token != "",
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if len(s.validation) > 0 {
		snap.ValidationErrors = make(map[string][]string, len(s.validation))
		for k, v := range s.validation {
			snap.ValidationErrors[k] = append([]string(nil), v...)
		}
	}
	return snap
}

// IsAuthenticated reports whether a bearer token is held.
func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// User returns a copy of the current profile, nil when absent.
func (s *Store) User() *gateway.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Err returns the current top-level error message, "" when clear.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Restore rehydrates a persisted session before any network call, then
// verifies the cached token by fetching the profile. A failing fetch here
// forces a full logout: a cached credential that no longer resolves a
// profile cannot be trusted. This is deliberately stricter than
// RefreshProfile, which preserves the session on failure.
func (s *Store) Restore(ctx context.Context) error {
	token, ok := s.storage.Get(StorageKeyToken)
	if !ok || token == "" {
		return nil
	}

	var user *gateway.User
	if raw, ok := s.storage.Get(StorageKeyUser); ok && raw != "" {
		var u gateway.User
		if err := json.Unmarshal([]byte(raw), &u); err == nil {
			user = &u
		} else {
			s.logger.Warn().Err(err).Msg("discarding unreadable persisted profile")
		}
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
	s.backend.SetToken(token)

	fresh, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Info().Msg("persisted token rejected, clearing session")
		s.Logout()
		return err
	}
	s.setAuth(token, fresh)
	return nil
}

// Login authenticates with the backend and loads the profile. On any
// failure at either step, token and user are both cleared; the normalized
// message lands in the session state and the raw failure is returned.
func (s *Store) Login(ctx context.Context, email, password string) error {
	if err := s.requireCredentials(email, password); err != nil {
		return err
	}
	s.begin()
	defer s.finish()

	tok, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.clearAuth()
		s.setError(apierr.ExtractMessage(err, "login failed"))
		return err
	}
	s.backend.SetToken(tok.AccessToken)

	user, err := s.backend.Me(ctx)
	if err != nil {
		// The token was issued but the profile never arrived; a
		// half-authenticated session must not stand.
		s.clearAuth()
		s.setError(apierr.ExtractMessage(err, "login failed"))
		return err
	}

	s.setAuth(tok.AccessToken, user)
	s.logger.Debug().Str("email", user.Email).Msg("session established")
	return nil
}

// Signup registers a new account and authenticates it. On failure the
// structured validation errors, when present, are mapped into session
// state; the top-level message is the joined non-field errors when any
// exist, the generic extracted message otherwise.
func (s *Store) Signup(ctx context.Context, email, password string, tier gateway.Tier) error {
	if err := s.requireCredentials(email, password); err != nil {
		return err
	}
	s.begin()
	defer s.finish()

	tok, err := s.backend.Signup(ctx, email, password, tier)
	if err != nil {
		s.clearAuth()
		s.setSignupError(err)
		return err
	}
	s.backend.SetToken(tok.AccessToken)

	user, err := s.backend.Me(ctx)
	if err != nil {
		s.clearAuth()
		s.setSignupError(err)
		return err
	}

	s.setAuth(tok.AccessToken, user)
	return nil
}

// Logout unconditionally clears the session and its durable projection.
// It is idempotent, synchronous, and performs no network call.
func (s *Store) Logout() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.errMsg = ""
	s.validation = nil
	s.mu.Unlock()

	s.backend.ClearToken()
	s.deleteStored(StorageKeyToken)
	s.deleteStored(StorageKeyUser)
}

// RefreshProfile re-fetches the profile for an authenticated session.
// Unauthenticated, it is a no-op returning nil. On failure it records the
// error but keeps the session: a refresh hiccup does not invalidate a
// token that worked before.
func (s *Store) RefreshProfile(ctx context.Context) (*gateway.User, error) {
	if !s.IsAuthenticated() {
		return nil, nil
	}
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.backend.Me(ctx)
	if err != nil {
		s.setError(apierr.ExtractMessage(err, "failed to refresh profile"))
		return nil, err
	}

	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	s.setAuth(token, user)
	u := *user
	return &u, nil
}

// UpdatePlan changes the subscription tier. Unauthenticated it fails
// immediately, without a network call. On success the returned tier is
// merged into the in-memory profile; no re-fetch occurs. On failure the
// prior profile is untouched.
func (s *Store) UpdatePlan(ctx context.Context, tier gateway.Tier) error {
	if !s.IsAuthenticated() {
		s.setError(apierr.ExtractMessage(ErrUnauthorized, "unauthorized"))
		return ErrUnauthorized
	}
	s.begin()
	defer s.finish()

	plan, err := s.backend.UpdatePlan(ctx, tier)
	if err != nil {
		s.setError(apierr.ExtractMessage(err, "failed to update plan"))
		return err
	}

	s.mu.Lock()
	if s.user != nil {
		u := *s.user
		u.PackageTier = plan.PackageTier
		s.user = &u
	}
	user := s.user
	s.mu.Unlock()
	if user != nil {
		s.persistUser(user)
	}
	return nil
}

// ClearError clears the error and validation state only; token, user and
// loading are untouched.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.validation = nil
	s.mu.Unlock()
}

// =============================================================================
// Internal state transitions
// =============================================================================

func (s *Store) requireCredentials(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		s.mu.Lock()
		s.errMsg = ErrMissingCredentials.Error()
		s.validation = nil
		s.mu.Unlock()
		return ErrMissingCredentials
	}
	return nil
}

// begin starts an attempt: error and validation state is reset, loading
// is raised.
func (s *Store) begin() {
	s.mu.Lock()
	s.errMsg = ""
	s.validation = nil
	s.loading = true
	s.mu.Unlock()
}

func (s *Store) finish() {
	s.setLoading(false)
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
}

func (s *Store) setSignupError(err error) {
	v := apierr.ParseValidationErrors(err)
	s.mu.Lock()
	if len(v.FieldErrors) > 0 {
		s.validation = v.FieldErrors
	}
	if len(v.NonFieldErrors) > 0 {
		s.errMsg = strings.Join(v.NonFieldErrors, "; ")
	} else {
		s.errMsg = apierr.ExtractMessage(err, "signup failed")
	}
	s.mu.Unlock()
}

// setAuth installs token and user as a pair and mirrors both durably.
func (s *Store) setAuth(token string, user *gateway.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	s.backend.SetToken(token)
	if token == "" {
		s.deleteStored(StorageKeyToken)
	} else if err := s.storage.Set(StorageKeyToken, token); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist token")
	}
	s.persistUser(user)
}

// clearAuth rolls token and user back together and purges the durable
// projection.
func (s *Store) clearAuth() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	s.backend.ClearToken()
	s.deleteStored(StorageKeyToken)
	s.deleteStored(StorageKeyUser)
}

func (s *Store) persistUser(user *gateway.User) {
	if user == nil {
		s.deleteStored(StorageKeyUser)
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to serialize profile")
		return
	}
	if err := s.storage.Set(StorageKeyUser, string(raw)); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist profile")
	}
}

func (s *Store) deleteStored(key string) {
	if err := s.storage.Delete(key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to delete stored value")
	}
}
