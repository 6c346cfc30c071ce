// Package realtime maintains the single push connection to the platform.
// A channel may only be opened for a resolved, eligible identity and is torn
// down before any successor opens.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mentorlink/go-mentor-client/identity"
	interrors "github.com/mentorlink/go-mentor-client/internal/errors"
)

// State is the channel connection state
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// Handlers receive inbound events. They are invoked from the channel's
// dispatch loop in arrival order and are detached before the channel closes,
// so none of them can fire against a torn-down identity.
type Handlers struct {
	OnMessage       func(Message)
	OnNotification  func(Notification)
	OnTyping        func(Typing)
	OnStoppedTyping func(Typing)
	// OnDisconnect observes a transport-level drop. The channel is already
	// back in StateClosed when it fires; reconnecting is the owner's call.
	OnDisconnect func(err error)
}

// Channel is one live push connection
type Channel struct {
	logger zerolog.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	handlers Handlers
	done     chan struct{}
}

// Option defines a function type to modify the Channel instance
type Option func(*Channel)

// WithLogger sets the channel logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// Open dials the push endpoint for the given identity. It refuses to connect
// for a nil or ineligible identity or without an access token; the access
// token is the connection credential.
func Open(ctx context.Context, socketURL string, user *identity.User, accessToken string, handlers Handlers, options ...Option) (*Channel, error) {
	if user == nil || !user.ChannelEligible() {
		return nil, interrors.ErrChannelIneligible
	}
	if accessToken == "" {
		return nil, interrors.ErrNoAccessToken
	}

	c := &Channel{
		state:    StateConnecting,
		handlers: handlers,
		done:     make(chan struct{}),
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, socketURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.state = StateClosed
		return nil, interrors.Wrapf(err, "[realtime.Open] dial %s", socketURL)
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()
	c.logger.Debug().Str("user_id", user.ID).Msg("channel open")

	go c.dispatchLoop(conn)
	return c, nil
}

// State returns the current connection state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close detaches all handlers and tears the connection down. Idempotent.
// After Close returns no handler will fire again.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.handlers = Handlers{}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
		_ = conn.Close()
	}
	<-c.done
}

// SendMessage emits a chat message. Exactly one of receiverID or groupID must
// be set.
func (c *Channel) SendMessage(content string, receiverID, groupID *string) error {
	return c.emit(EventSendMessage, sendMessagePayload{
		Content:    content,
		ReceiverID: receiverID,
		GroupID:    groupID,
	})
}

// JoinRoom subscribes this connection to a chat room
func (c *Channel) JoinRoom(roomID string) error {
	return c.emit(EventJoinRoom, joinRoomPayload{RoomID: roomID})
}

func (c *Channel) emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return interrors.Wrapf(err, "[Channel.emit] marshal %s", event)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.conn == nil {
		return interrors.ErrChannelClosed
	}
	return c.conn.WriteJSON(Frame{Event: event, Data: data})
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

// dispatchLoop reads frames and applies them in arrival order. It exits on
// any transport error, flipping the channel back to closed.
func (c *Channel) dispatchLoop(conn *websocket.Conn) {
	defer close(c.done)
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			c.handleDisconnect(err)
			return
		}
		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame Frame) {
	c.mu.Lock()
	handlers := c.handlers
	c.mu.Unlock()

	switch frame.Event {
	case EventNewMessage, EventMessageSent:
		var msg Message
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			c.logger.Err(err).Str("event", frame.Event).Msg("bad message payload")
			return
		}
		if handlers.OnMessage != nil {
			handlers.OnMessage(msg)
		}
	case EventNewNotification:
		var n Notification
		if err := json.Unmarshal(frame.Data, &n); err != nil {
			c.logger.Err(err).Msg("bad notification payload")
			return
		}
		if handlers.OnNotification != nil {
			handlers.OnNotification(n)
		}
	case EventUserTyping:
		var t Typing
		if err := json.Unmarshal(frame.Data, &t); err != nil {
			return
		}
		if handlers.OnTyping != nil {
			handlers.OnTyping(t)
		}
	case EventUserStoppedTyping:
		var t Typing
		if err := json.Unmarshal(frame.Data, &t); err != nil {
			return
		}
		if handlers.OnStoppedTyping != nil {
			handlers.OnStoppedTyping(t)
		}
	default:
		c.logger.Debug().Str("event", frame.Event).Msg("ignoring unknown event")
	}
}

// handleDisconnect handles a transport-level drop: the channel returns to the
// closed state and the (still attached) disconnect handler is told once.
func (c *Channel) handleDisconnect(err error) {
	c.mu.Lock()
	alreadyClosed := c.state == StateClosed
	onDisconnect := c.handlers.OnDisconnect
	c.state = StateClosed
	c.handlers = Handlers{}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if alreadyClosed {
		// Proactive Close already ran; nothing to report
		return
	}
	c.logger.Debug().Err(err).Msg("channel disconnected")
	if onDisconnect != nil {
		onDisconnect(err)
	}
}
