package gateway_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mentorlink/go-mentor-client/credentials"
	"github.com/mentorlink/go-mentor-client/credentials/repofake"
	"github.com/mentorlink/go-mentor-client/gateway"
	"github.com/mentorlink/go-mentor-client/internal/errors"
)

// fakeBackend serves /ping guarded by a rotating access token and the
// renewal endpoint
type fakeBackend struct {
	mu           sync.Mutex
	validAccess  string
	validRefresh string
	rotation     int
	refreshCalls int
	refreshDelay time.Duration
	failRefresh  bool
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", b.handleRefresh)
	mux.HandleFunc("GET /ping", b.handlePing)
	return mux
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshCalls++
	delay := b.refreshDelay
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failRefresh || body.RefreshToken != b.validRefresh {
		writeEnvelope(w, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	b.rotation++
	b.validAccess = fmt.Sprintf("access-%d", b.rotation)
	b.validRefresh = fmt.Sprintf("refresh-%d", b.rotation)
	writeEnvelope(w, http.StatusOK, "", map[string]string{
		"accessToken":  b.validAccess,
		"refreshToken": b.validRefresh,
	})
}

func (b *fakeBackend) handlePing(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	valid := "Bearer " + b.validAccess
	b.mu.Unlock()
	if r.Header.Get("Authorization") != valid {
		writeEnvelope(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, "", map[string]bool{"ok": true})
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	envelope := map[string]interface{}{"success": status < 300}
	if message != "" {
		envelope["message"] = message
	}
	if data != nil {
		envelope["data"] = data
	}
	_ = json.NewEncoder(w).Encode(envelope)
}

type fixture struct {
	backend   *fakeBackend
	server    *httptest.Server
	creds     *repofake.FakeCredentialsRepo
	gw        *gateway.Gateway
	teardowns int
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: &fakeBackend{validAccess: "access-0", validRefresh: "refresh-0"},
		creds:   repofake.NewFakeCredentialsRepo(),
	}
	f.server = httptest.NewServer(f.backend.handler())
	t.Cleanup(f.server.Close)

	gw, err := gateway.New(f.server.URL, f.creds, func() { f.teardowns++ })
	require.NoError(t, err)
	f.gw = gw
	return f
}

func (f *fixture) store(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, f.creds.Save(&credentials.Stored{Token: credentials.NewPair(access, refresh)}))
}

func TestDoAttachesBearer(t *testing.T) {
	f := setup(t)
	f.store(t, "access-0", "refresh-0")

	var out map[string]bool
	require.NoError(t, f.gw.Do(t.Context(), http.MethodGet, "/ping", nil, &out))
	require.True(t, out["ok"])
}

func TestRefreshAndRetryOnce(t *testing.T) {
	f := setup(t)
	// Stale access token, valid refresh token
	f.store(t, "expired", "refresh-0")

	var out map[string]bool
	require.NoError(t, f.gw.Do(t.Context(), http.MethodGet, "/ping", nil, &out))
	require.True(t, out["ok"])
	require.Equal(t, 1, f.backend.refreshCalls)

	// Both tokens were replaced atomically
	stored, err := f.creds.Load()
	require.NoError(t, err)
	require.Equal(t, "access-1", stored.AccessToken())
	require.Equal(t, "refresh-1", stored.RefreshToken())
}

func TestMissingRefreshTokenPropagatesOriginalFailure(t *testing.T) {
	f := setup(t)
	f.store(t, "expired", "")

	err := f.gw.Do(t.Context(), http.MethodGet, "/ping", nil, nil)
	var apiErr *gateway.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	// No teardown: the stored state is untouched
	require.Equal(t, 0, f.teardowns)
	require.Equal(t, 0, f.creds.ClearCount)
}

func TestRefreshFailureTearsDownSession(t *testing.T) {
	f := setup(t)
	f.backend.failRefresh = true
	f.store(t, "expired", "refresh-0")

	err := f.gw.Do(t.Context(), http.MethodGet, "/ping", nil, nil)
	// The terminal state, not the original 401, is what callers observe
	require.ErrorIs(t, err, errors.ErrSessionExpired)
	require.Equal(t, 1, f.teardowns)
	require.Equal(t, 1, f.creds.ClearCount)
	_, loadErr := f.creds.Load()
	require.ErrorIs(t, loadErr, errors.ErrNotFound)
}

// A burst of concurrent 401s shares one renewal round trip and ends with one
// consistent credential pair
func TestConcurrent401BurstSingleRefresh(t *testing.T) {
	f := setup(t)
	f.backend.refreshDelay = 200 * time.Millisecond
	f.store(t, "expired", "refresh-0")

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.gw.Do(t.Context(), http.MethodGet, "/ping", nil, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "caller %d", i)
	}
	require.Equal(t, 1, f.backend.refreshCalls)

	stored, err := f.creds.Load()
	require.NoError(t, err)
	require.Equal(t, "access-1", stored.AccessToken())
	require.Equal(t, "refresh-1", stored.RefreshToken())
}

// logoutOnSaveRepo simulates a logout landing between a successful refresh
// and the retry: the save goes through, then the store is immediately cleared
type logoutOnSaveRepo struct {
	*repofake.FakeCredentialsRepo
	once sync.Once
}

func (r *logoutOnSaveRepo) Save(stored *credentials.Stored) error {
	if err := r.FakeCredentialsRepo.Save(stored); err != nil {
		return err
	}
	r.once.Do(func() { _ = r.FakeCredentialsRepo.Clear() })
	return nil
}

func TestRetryAfterLogoutFailsClosed(t *testing.T) {
	backend := &fakeBackend{validAccess: "access-0", validRefresh: "refresh-0"}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	creds := &logoutOnSaveRepo{FakeCredentialsRepo: repofake.NewFakeCredentialsRepo()}
	require.NoError(t, creds.FakeCredentialsRepo.Save(&credentials.Stored{Token: credentials.NewPair("expired", "refresh-0")}))

	gw, err := gateway.New(server.URL, creds, nil)
	require.NoError(t, err)

	doErr := gw.Do(t.Context(), http.MethodGet, "/ping", nil, nil)
	require.ErrorIs(t, doErr, errors.ErrSessionExpired)
}
