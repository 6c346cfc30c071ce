// Package notifications merges two disjoint notification sources into one
// unread count and one ordered feed: durable entries persisted server-side
// and individually acknowledgeable, and ephemeral entries pushed over the
// real-time channel that only a bulk clear can remove.
package notifications

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mentorlink/go-mentor-client/gateway"
	interrors "github.com/mentorlink/go-mentor-client/internal/errors"
)

// Durable is a server-persisted notification
type Durable struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ephemeral is a push-delivered, session-local notification. Key is assigned
// locally so feed consumers can key list entries; it is never a durable id.
type Ephemeral struct {
	Key     string
	Title   string
	Message string
	Kind    string
}

// Entry is one row of the merged feed
type Entry struct {
	Key       string
	Title     string
	Message   string
	Kind      string
	Read      bool
	JustNow   bool // true for ephemeral entries, rendered as "Just now"
	CreatedAt time.Time
}

// Feed is the notification merge view
type Feed struct {
	gw *gateway.Gateway

	mu            sync.Mutex
	durable       []Durable
	durableUnread int
	ephemeral     []Ephemeral
}

// NewFeed creates a Feed over the request gateway
func NewFeed(gw *gateway.Gateway) (*Feed, error) {
	if gw == nil {
		return nil, errors.New("[notifications.NewFeed] gateway is required")
	}
	return &Feed{gw: gw}, nil
}

// RefreshUnreadCount fetches the durable unread count. Called once at mount
// and again on demand.
func (f *Feed) RefreshUnreadCount(ctx context.Context) error {
	var payload struct {
		Count int `json:"count"`
	}
	if err := f.gw.Do(ctx, http.MethodGet, "/notifications/unread-count", nil, &payload); err != nil {
		return errors.Wrap(err, "[Feed.RefreshUnreadCount]")
	}
	f.mu.Lock()
	f.durableUnread = payload.Count
	f.mu.Unlock()
	return nil
}

// Refresh fetches the durable notification list in server order and
// recomputes the durable unread count from the read flags
func (f *Feed) Refresh(ctx context.Context) error {
	var durable []Durable
	if err := f.gw.Do(ctx, http.MethodGet, "/notifications", nil, &durable); err != nil {
		return errors.Wrap(err, "[Feed.Refresh]")
	}
	unread := 0
	for _, n := range durable {
		if !n.Read {
			unread++
		}
	}
	f.mu.Lock()
	f.durable = durable
	f.durableUnread = unread
	f.mu.Unlock()
	return nil
}

// Push appends an ephemeral notification from the live channel
func (f *Feed) Push(title, message, kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ephemeral = append(f.ephemeral, Ephemeral{
		Key:     uuid.New().String(),
		Title:   title,
		Message: message,
		Kind:    kind,
	})
}

// UnreadCount is always durable-unread + ephemeral-length
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.durableUnread + len(f.ephemeral)
}

// DisplayCount renders the unread count for a badge, saturating at "99+"
// without altering the underlying count
func (f *Feed) DisplayCount() string {
	count := f.UnreadCount()
	if count > 99 {
		return "99+"
	}
	return strconv.Itoa(count)
}

// Entries returns the merged feed: ephemeral entries first (most-recent live
// events lead), then durable entries in server order
func (f *Feed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make([]Entry, 0, len(f.ephemeral)+len(f.durable))
	for _, n := range f.ephemeral {
		entries = append(entries, Entry{
			Key:     n.Key,
			Title:   n.Title,
			Message: n.Message,
			Kind:    n.Kind,
			JustNow: true,
		})
	}
	for _, n := range f.durable {
		entries = append(entries, Entry{
			Key:       n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Kind:      n.Kind,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	return entries
}

// MarkRead acknowledges one durable notification and flips its local read
// flag. Ephemeral entries are not individually acknowledgeable and yield
// ErrNotDurable.
func (f *Feed) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	var target *Durable
	for i := range f.durable {
		if f.durable[i].ID == id {
			target = &f.durable[i]
			break
		}
	}
	if target == nil {
		for _, n := range f.ephemeral {
			if n.Key == id {
				f.mu.Unlock()
				return interrors.ErrNotDurable
			}
		}
		f.mu.Unlock()
		return interrors.ErrNotFound
	}
	if target.Read {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	if err := f.gw.Do(ctx, http.MethodPut, "/notifications/"+id+"/read", nil, nil); err != nil {
		return errors.Wrap(err, "[Feed.MarkRead]")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.durable {
		if f.durable[i].ID == id && !f.durable[i].Read {
			f.durable[i].Read = true
			if f.durableUnread > 0 {
				f.durableUnread--
			}
		}
	}
	return nil
}

// MarkAllRead acknowledges every durable entry in one call, flips all local
// flags and clears the ephemeral list. This is the only operation allowed to
// touch the ephemeral list's contents.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	if err := f.gw.Do(ctx, http.MethodPut, "/notifications/mark-all-read", nil, nil); err != nil {
		return errors.Wrap(err, "[Feed.MarkAllRead]")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.durable {
		f.durable[i].Read = true
	}
	f.durableUnread = 0
	f.ephemeral = nil
	return nil
}

// Clear drops all local state, e.g. on logout
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durable = nil
	f.durableUnread = 0
	f.ephemeral = nil
}
