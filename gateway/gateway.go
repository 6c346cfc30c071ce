// Package gateway is the uniform request/response transport to the platform
// backend. It attaches the current access token to every call and retries a
// call exactly once after a transparent token refresh on 401.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mentorlink/go-mentor-client/credentials"
	interrors "github.com/mentorlink/go-mentor-client/internal/errors"
)

// Envelope is the backend's uniform response wrapper
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// APIError carries a non-2xx backend response. Message is the human-readable
// reason from the response payload, when present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// Gateway performs JSON calls against the backend API
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	creds      credentials.Repo
	logger     zerolog.Logger

	// onSessionInvalid is invoked after a failed refresh has cleared the
	// credential store. This is the transport layer's only session teardown
	// path; it must route the user back to sign-in.
	onSessionInvalid func()

	refreshGroup singleflight.Group
}

// Option defines a function type to modify the Gateway instance
type Option func(*Gateway)

// WithHTTPClient overrides the underlying HTTP client (primarily for testing)
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// WithLogger sets the gateway logger
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway. onSessionInvalid may be nil when no teardown hook is
// needed (e.g. short-lived CLI invocations).
func New(baseURL string, creds credentials.Repo, onSessionInvalid func(), options ...Option) (*Gateway, error) {
	if baseURL == "" {
		return nil, errors.New("[gateway.New] baseURL is required")
	}
	if creds == nil {
		return nil, errors.New("[gateway.New] credentials repo is required")
	}
	g := &Gateway{
		baseURL:          strings.TrimRight(baseURL, "/"),
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		creds:            creds,
		onSessionInvalid: onSessionInvalid,
		logger:           zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Do performs a JSON call and unmarshals the envelope's data field into out
// (out may be nil). On the first 401 for this call it refreshes the credential
// pair and re-issues the call once with whichever pair is current at that
// moment.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out interface{}) error {
	requestID := uuid.New().String()
	logger := g.logger.With().Str("request_id", requestID).Str("method", method).Str("path", path).Logger()

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrap(err, "[Gateway.Do] marshal body")
		}
	}

	status, respBody, err := g.issue(ctx, method, path, payload, requestID)
	if err != nil {
		return errors.Wrap(err, "[Gateway.Do] issue")
	}

	// Single-shot refresh and retry. The retried call re-reads the store so
	// an intervening logout wins: it finds no credentials and fails closed.
	if status == http.StatusUnauthorized {
		if refreshErr := g.refresh(ctx); refreshErr != nil {
			logger.Debug().Err(refreshErr).Msg("token refresh failed")
			// Only an absent refresh token leaves the original failure
			// standing; a failed renewal has already invalidated the session
			// and surfaces as such
			if interrors.Is(refreshErr, interrors.ErrNoRefreshToken) {
				return g.responseError(status, respBody)
			}
			return refreshErr
		}
		stored, loadErr := g.creds.Load()
		if loadErr != nil || stored.AccessToken() == "" {
			return interrors.ErrSessionExpired
		}
		if status, respBody, err = g.issue(ctx, method, path, payload, requestID); err != nil {
			return errors.Wrap(err, "[Gateway.Do] retry")
		}
	}

	if status < 200 || status > 299 {
		return g.responseError(status, respBody)
	}
	if out == nil {
		return nil
	}

	var envelope Envelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return errors.Wrap(err, "[Gateway.Do] unmarshal envelope")
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return errors.Wrap(err, "[Gateway.Do] unmarshal data")
	}
	return nil
}

func (g *Gateway) issue(ctx context.Context, method, path string, payload []byte, requestID string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if stored, err := g.creds.Load(); err == nil {
		if token := stored.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func (g *Gateway) responseError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status}
	var envelope Envelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		apiErr.Message = envelope.Message
	}
	return apiErr
}

// refreshResult is the renewal endpoint's payload
type refreshResult struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// refresh renews the credential pair. Concurrent callers are coalesced into a
// single renewal so one burst of 401s consumes the refresh token once. On
// failure all credential state is cleared and the session teardown hook runs.
func (g *Gateway) refresh(ctx context.Context) error {
	_, err, _ := g.refreshGroup.Do("refresh", func() (interface{}, error) {
		stored, err := g.creds.Load()
		if err != nil || stored.RefreshToken() == "" {
			return nil, interrors.ErrNoRefreshToken
		}

		body, _ := json.Marshal(map[string]string{"refreshToken": stored.RefreshToken()})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/auth/refresh", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, g.invalidateSession(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, g.invalidateSession(interrors.ErrSessionExpired)
		}

		var envelope Envelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, g.invalidateSession(err)
		}
		var renewed refreshResult
		if err := json.Unmarshal(envelope.Data, &renewed); err != nil || renewed.AccessToken == "" {
			return nil, g.invalidateSession(interrors.ErrSessionExpired)
		}

		// Replace both tokens atomically, keeping the identity snapshot
		stored.Token = credentials.NewPair(renewed.AccessToken, renewed.RefreshToken)
		if err := g.creds.Save(stored); err != nil {
			return nil, errors.Wrap(err, "[Gateway.refresh] save")
		}
		return nil, nil
	})
	return err
}

// invalidateSession clears all credential state and forces
// re-authentication. The returned error always carries ErrSessionExpired so
// callers can match the terminal state regardless of the underlying cause.
func (g *Gateway) invalidateSession(cause error) error {
	if err := g.creds.Clear(); err != nil {
		g.logger.Err(err).Msg("failed to clear credentials")
	}
	if g.onSessionInvalid != nil {
		g.onSessionInvalid()
	}
	if !interrors.Is(cause, interrors.ErrSessionExpired) {
		cause = interrors.Wrapf(interrors.ErrSessionExpired, "%v", cause)
	}
	return errors.Wrap(cause, "[Gateway.refresh] session invalidated")
}
