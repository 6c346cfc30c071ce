// Package session is the single source of truth for "who is logged in" and
// the only component that mutates the credential store in the normal course
// of events.
package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mentorlink/go-mentor-client/credentials"
	"github.com/mentorlink/go-mentor-client/gateway"
	"github.com/mentorlink/go-mentor-client/identity"
	interrors "github.com/mentorlink/go-mentor-client/internal/errors"
)

// State describes the session resolution state. Dependents must not act on
// the identity until the state leaves StatePending.
type State int

const (
	StatePending State = iota
	StateAnonymous
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// AuthError is a user-facing authentication failure. Message is the backend's
// reason when it supplied one, or a generic fallback.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// Listener observes identity changes. A nil user means logged out.
type Listener func(user *identity.User)

// Session owns the current identity snapshot and its lifecycle
type Session struct {
	creds  credentials.Repo
	gw     *gateway.Gateway
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	user      *identity.User
	epoch     uint64
	listeners []Listener
}

// Option defines a function type to modify the Session instance
type Option func(*Session)

// WithLogger sets the session logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a Session over a credential store and a request gateway
func New(creds credentials.Repo, gw *gateway.Gateway, options ...Option) (*Session, error) {
	if creds == nil {
		return nil, errors.New("[session.New] credentials repo is required")
	}
	if gw == nil {
		return nil, errors.New("[session.New] gateway is required")
	}
	s := &Session{
		creds:  creds,
		gw:     gw,
		state:  StatePending,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// State returns the current resolution state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns a copy of the identity snapshot, or nil when logged out or
// still pending
func (s *Session) Current() *identity.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	copied := *s.user
	return &copied
}

// OnChange registers a listener invoked after every identity change
func (s *Session) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Restore resolves the session from persisted credentials on startup. Its
// failures are never surfaced to the user; they degrade to the anonymous
// state. A logout that lands while the identity fetch is in flight wins: the
// stale result is discarded.
func (s *Session) Restore(ctx context.Context) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	stored, err := s.creds.Load()
	if err != nil || stored.AccessToken() == "" {
		// No token: make sure no stale identity snapshot survives
		if err := s.creds.Clear(); err != nil {
			s.logger.Err(err).Msg("failed to clear stale credentials")
		}
		s.apply(epoch, nil)
		return
	}

	var user identity.User
	if err := s.gw.Do(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		s.logger.Debug().Err(err).Msg("restore failed, degrading to logged out")
		s.Logout()
		return
	}

	// Persist the fresh snapshot next to whichever pair is current now (the
	// gateway may have rotated it during the fetch)
	if stored, err = s.creds.Load(); err == nil {
		stored.User = &user
		if err := s.creds.Save(stored); err != nil {
			s.logger.Err(err).Msg("failed to persist identity snapshot")
		}
	}
	if !s.apply(epoch, &user) {
		// A logout raced the fetch; the re-saved record must not outlive it
		if err := s.creds.Clear(); err != nil {
			s.logger.Err(err).Msg("failed to clear credentials")
		}
	}
}

type authPayload struct {
	User         *identity.User `json:"user"`
	AccessToken  string         `json:"accessToken"`
	RefreshToken string         `json:"refreshToken"`
}

// Login authenticates with the backend. On success the credential pair and
// identity are stored atomically before the identity becomes observable. On
// failure nothing is mutated and a user-facing AuthError is returned.
func (s *Session) Login(ctx context.Context, email, password string) error {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	var payload authPayload
	body := map[string]string{"email": email, "password": password}
	if err := s.gw.Do(ctx, http.MethodPost, "/auth/login", body, &payload); err != nil {
		return authError(err, "Login failed")
	}
	if payload.User == nil || payload.AccessToken == "" {
		return &AuthError{Message: "Login failed"}
	}

	if err := s.creds.Save(&credentials.Stored{
		Token: credentials.NewPair(payload.AccessToken, payload.RefreshToken),
		User:  payload.User,
	}); err != nil {
		return errors.Wrap(err, "[Session.Login] save credentials")
	}
	if !s.apply(epoch, payload.User) {
		// A logout raced this login; do not leave orphaned credentials behind
		if err := s.creds.Clear(); err != nil {
			s.logger.Err(err).Msg("failed to clear credentials")
		}
	}
	return nil
}

// Register creates an account. Mentor registrations enter PENDING_APPROVAL
// and yield no usable credentials; signedIn reports whether the caller is now
// authenticated.
func (s *Session) Register(ctx context.Context, name, email, password string, role identity.Role) (user *identity.User, signedIn bool, err error) {
	if role == "" {
		role = identity.RoleMentee
	}
	if !identity.ValidRole(role) {
		return nil, false, &AuthError{Message: "Registration failed"}
	}

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	var payload authPayload
	body := map[string]string{"name": name, "email": email, "password": password, "role": string(role)}
	if err := s.gw.Do(ctx, http.MethodPost, "/auth/register", body, &payload); err != nil {
		return nil, false, authError(err, "Registration failed")
	}
	if payload.User == nil {
		return nil, false, &AuthError{Message: "Registration failed"}
	}

	// Pending mentors get no tokens back; the account exists but the caller
	// is not signed in
	if role == identity.RoleMentor || payload.AccessToken == "" || payload.RefreshToken == "" {
		return payload.User, false, nil
	}

	if err := s.creds.Save(&credentials.Stored{
		Token: credentials.NewPair(payload.AccessToken, payload.RefreshToken),
		User:  payload.User,
	}); err != nil {
		return nil, false, errors.Wrap(err, "[Session.Register] save credentials")
	}
	if !s.apply(epoch, payload.User) {
		if err := s.creds.Clear(); err != nil {
			s.logger.Err(err).Msg("failed to clear credentials")
		}
		return payload.User, false, nil
	}
	return payload.User, true, nil
}

// Logout clears the credential store and identity synchronously. Safe to call
// when already logged out.
func (s *Session) Logout() {
	s.mu.Lock()
	s.epoch++
	s.user = nil
	s.state = StateAnonymous
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	if err := s.creds.Clear(); err != nil {
		s.logger.Err(err).Msg("failed to clear credentials")
	}
	for _, l := range listeners {
		l(nil)
	}
}

// UpdateProfile sends a partial profile update and replaces the cached
// identity with the server's full record, never a client-side merge.
func (s *Session) UpdateProfile(ctx context.Context, partial map[string]interface{}) (*identity.User, error) {
	current := s.Current()
	if current == nil {
		return nil, interrors.ErrNotAuthenticated
	}

	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	var updated identity.User
	if err := s.gw.Do(ctx, http.MethodPut, "/users/"+current.ID+"/profile", partial, &updated); err != nil {
		return nil, authError(err, "Profile update failed")
	}

	if stored, err := s.creds.Load(); err == nil {
		stored.User = &updated
		if err := s.creds.Save(stored); err != nil {
			s.logger.Err(err).Msg("failed to persist identity snapshot")
		}
	}
	s.apply(epoch, &updated)
	return &updated, nil
}

// apply installs an identity result unless the session moved on (logout or a
// later login bumped the epoch) while the call was in flight.
func (s *Session) apply(epoch uint64, user *identity.User) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug().Msg("discarding stale session result")
		return false
	}
	s.user = user
	if user == nil {
		s.state = StateAnonymous
	} else {
		s.state = StateAuthenticated
	}
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(user)
	}
	return true
}

// authError maps a gateway failure to a user-facing AuthError, preferring the
// backend's message
func authError(err error, fallback string) error {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return &AuthError{Message: apiErr.Message}
	}
	return &AuthError{Message: fallback}
}
