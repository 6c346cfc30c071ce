package notifications_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mentorlink/go-mentor-client/credentials/repofake"
	"github.com/mentorlink/go-mentor-client/gateway"
	"github.com/mentorlink/go-mentor-client/internal/errors"
	"github.com/mentorlink/go-mentor-client/notifications"
)

type notifBackend struct {
	mu      sync.Mutex
	durable []notifications.Durable
}

func (b *notifBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /notifications", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeEnvelope(w, b.durable)
	})

	mux.HandleFunc("GET /notifications/unread-count", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		count := 0
		for _, n := range b.durable {
			if !n.Read {
				count++
			}
		}
		writeEnvelope(w, map[string]int{"count": count})
	})

	mux.HandleFunc("PUT /notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("id")
		for i := range b.durable {
			if b.durable[i].ID == id {
				b.durable[i].Read = true
			}
		}
		writeEnvelope(w, nil)
	})

	mux.HandleFunc("PUT /notifications/mark-all-read", func(w http.ResponseWriter, _ *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i := range b.durable {
			b.durable[i].Read = true
		}
		writeEnvelope(w, nil)
	})

	return mux
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	envelope := map[string]interface{}{"success": true}
	if data != nil {
		envelope["data"] = data
	}
	_ = json.NewEncoder(w).Encode(envelope)
}

func setup(t *testing.T, durable ...notifications.Durable) (*notifications.Feed, *notifBackend) {
	t.Helper()
	backend := &notifBackend{durable: durable}
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	gw, err := gateway.New(server.URL, repofake.NewFakeCredentialsRepo(), nil)
	require.NoError(t, err)
	feed, err := notifications.NewFeed(gw)
	require.NoError(t, err)
	return feed, backend
}

func durableSet() []notifications.Durable {
	now := time.Now()
	return []notifications.Durable{
		{ID: "n1", Title: "Session booked", Message: "Tomorrow at 10", Kind: "info", CreatedAt: now},
		{ID: "n2", Title: "Session cancelled", Message: "Sorry", Kind: "warning", CreatedAt: now.Add(-time.Hour)},
		{ID: "n3", Title: "Welcome", Message: "Hello", Kind: "success", Read: true, CreatedAt: now.Add(-2 * time.Hour)},
	}
}

// The composite count equals durable-unread + ephemeral-length at every step
func TestUnreadCountInvariant(t *testing.T) {
	feed, _ := setup(t, durableSet()...)

	require.NoError(t, feed.Refresh(t.Context()))
	require.Equal(t, 2, feed.UnreadCount())

	feed.Push("Live", "one", "info")
	feed.Push("Live", "two", "info")
	require.Equal(t, 4, feed.UnreadCount())

	require.NoError(t, feed.MarkRead(t.Context(), "n1"))
	require.Equal(t, 3, feed.UnreadCount())

	require.NoError(t, feed.MarkAllRead(t.Context()))
	require.Equal(t, 0, feed.UnreadCount())

	feed.Push("Live", "three", "info")
	require.Equal(t, 1, feed.UnreadCount())
}

func TestRefreshUnreadCountEndpoint(t *testing.T) {
	feed, _ := setup(t, durableSet()...)
	require.NoError(t, feed.RefreshUnreadCount(t.Context()))
	require.Equal(t, 2, feed.UnreadCount())
}

func TestEntriesOrderEphemeralFirst(t *testing.T) {
	feed, _ := setup(t, durableSet()...)
	require.NoError(t, feed.Refresh(t.Context()))
	feed.Push("Live", "now", "info")

	entries := feed.Entries()
	require.Len(t, entries, 4)
	require.True(t, entries[0].JustNow)
	require.Equal(t, "Live", entries[0].Title)
	// Durable entries keep server order
	require.Equal(t, "n1", entries[1].Key)
	require.Equal(t, "n2", entries[2].Key)
	require.Equal(t, "n3", entries[3].Key)
}

func TestMarkReadEphemeralRejected(t *testing.T) {
	feed, _ := setup(t)
	require.NoError(t, feed.Refresh(t.Context()))
	feed.Push("Live", "now", "info")

	key := feed.Entries()[0].Key
	require.ErrorIs(t, feed.MarkRead(t.Context(), key), errors.ErrNotDurable)
	require.Equal(t, 1, feed.UnreadCount())
}

func TestMarkReadUnknownID(t *testing.T) {
	feed, _ := setup(t, durableSet()...)
	require.NoError(t, feed.Refresh(t.Context()))
	require.ErrorIs(t, feed.MarkRead(t.Context(), "nope"), errors.ErrNotFound)
}

func TestMarkReadAlreadyReadIsNoOp(t *testing.T) {
	feed, _ := setup(t, durableSet()...)
	require.NoError(t, feed.Refresh(t.Context()))
	require.NoError(t, feed.MarkRead(t.Context(), "n3"))
	require.Equal(t, 2, feed.UnreadCount())
}

// Three durable unread plus two ephemeral: mark-all-read zeroes the count,
// clears the live list and keeps the durable entries, flagged read
func TestMarkAllRead(t *testing.T) {
	durable := []notifications.Durable{
		{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"},
	}
	feed, backend := setup(t, durable...)
	require.NoError(t, feed.Refresh(t.Context()))
	feed.Push("Live", "one", "info")
	feed.Push("Live", "two", "info")
	require.Equal(t, 5, feed.UnreadCount())

	require.NoError(t, feed.MarkAllRead(t.Context()))

	require.Equal(t, 0, feed.UnreadCount())
	entries := feed.Entries()
	require.Len(t, entries, 3)
	for _, e := range entries {
		require.False(t, e.JustNow)
		require.True(t, e.Read)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	for _, n := range backend.durable {
		require.True(t, n.Read)
	}
}

func TestDisplayCountSaturates(t *testing.T) {
	feed, _ := setup(t)
	require.NoError(t, feed.Refresh(t.Context()))
	for i := 0; i < 120; i++ {
		feed.Push("Live", "spam", "info")
	}
	require.Equal(t, "99+", feed.DisplayCount())
	// The underlying count is not altered by the cap
	require.Equal(t, 120, feed.UnreadCount())
}
