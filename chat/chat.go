// Package chat merges the durable message history with the live push stream
// into one de-duplicated, arrival-ordered conversation view.
package chat

import (
	"context"
	"net/http"
	"sync"

	"github.com/pkg/errors"

	"github.com/mentorlink/go-mentor-client/gateway"
	"github.com/mentorlink/go-mentor-client/realtime"
)

// Partner is a user the current identity can chat with
type Partner struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Role   string  `json:"role"`
	Avatar *string `json:"avatar,omitempty"`
}

// Service fetches durable chat data over the request gateway
type Service struct {
	gw *gateway.Gateway
}

// NewService creates a chat service
func NewService(gw *gateway.Gateway) (*Service, error) {
	if gw == nil {
		return nil, errors.New("[chat.NewService] gateway is required")
	}
	return &Service{gw: gw}, nil
}

// Partners lists the users available to chat with
func (s *Service) Partners(ctx context.Context) ([]Partner, error) {
	var partners []Partner
	if err := s.gw.Do(ctx, http.MethodGet, "/messages/users", nil, &partners); err != nil {
		return nil, errors.Wrap(err, "[Service.Partners]")
	}
	return partners, nil
}

// DirectHistory fetches the durable history of a direct conversation
func (s *Service) DirectHistory(ctx context.Context, userID string) ([]realtime.Message, error) {
	var msgs []realtime.Message
	if err := s.gw.Do(ctx, http.MethodGet, "/messages/direct/"+userID, nil, &msgs); err != nil {
		return nil, errors.Wrap(err, "[Service.DirectHistory]")
	}
	return msgs, nil
}

// GroupHistory fetches the durable history of a group conversation
func (s *Service) GroupHistory(ctx context.Context, groupID string) ([]realtime.Message, error) {
	var msgs []realtime.Message
	if err := s.gw.Do(ctx, http.MethodGet, "/messages/group/"+groupID, nil, &msgs); err != nil {
		return nil, errors.Wrap(err, "[Service.GroupHistory]")
	}
	return msgs, nil
}

// MessageLog holds the in-memory message list for the current session.
// Messages are unique by id regardless of whether they arrived from a durable
// fetch or the push stream, and keep their arrival order.
type MessageLog struct {
	mu   sync.Mutex
	seen map[string]struct{}
	msgs []realtime.Message
}

// NewMessageLog creates an empty log
func NewMessageLog() *MessageLog {
	return &MessageLog{seen: make(map[string]struct{})}
}

// Append adds one message and reports whether it was new
func (l *MessageLog) Append(m realtime.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.append(m)
}

// Merge adds a durable history batch, skipping ids already present
func (l *MessageLog) Merge(history []realtime.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range history {
		l.append(m)
	}
}

func (l *MessageLog) append(m realtime.Message) bool {
	if _, ok := l.seen[m.ID]; ok {
		return false
	}
	l.seen[m.ID] = struct{}{}
	l.msgs = append(l.msgs, m)
	return true
}

// All returns a copy of the message list in arrival order
func (l *MessageLog) All() []realtime.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]realtime.Message(nil), l.msgs...)
}

// Len returns the number of distinct messages held
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}

// Reset drops all messages, e.g. when the session identity changes
func (l *MessageLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{})
	l.msgs = nil
}
