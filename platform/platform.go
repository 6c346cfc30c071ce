// Package platform is the explicit session-context object: it wires the
// credential store, identity session, request gateway, real-time channel and
// notification feed together, constructed once at process start and handed to
// dependents by reference.
package platform

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/mentorlink/go-mentor-client/access"
	"github.com/mentorlink/go-mentor-client/chat"
	"github.com/mentorlink/go-mentor-client/credentials"
	"github.com/mentorlink/go-mentor-client/gateway"
	"github.com/mentorlink/go-mentor-client/identity"
	"github.com/mentorlink/go-mentor-client/internal/config"
	"github.com/mentorlink/go-mentor-client/notifications"
	"github.com/mentorlink/go-mentor-client/realtime"
	"github.com/mentorlink/go-mentor-client/session"
)

// Platform owns the client's coordination layer lifecycle
type Platform struct {
	Creds    credentials.Repo
	Gateway  *gateway.Gateway
	Session  *session.Session
	Feed     *notifications.Feed
	Chat     *chat.Service
	Messages *chat.MessageLog
	Rules    access.Rules

	socketURL   string
	logger      zerolog.Logger
	gatewayOpts []gateway.Option

	// lifecycleMu serializes whole close-then-open sequences across identity
	// changes so two overlapping logins can never leave both channels live;
	// mu guards only the channel field
	lifecycleMu sync.Mutex
	mu          sync.Mutex
	channel     *realtime.Channel

	// OnForcedLogout fires when the transport invalidates the session (failed
	// refresh); the view layer routes back to sign-in.
	OnForcedLogout func()
	// OnTyping and OnStoppedTyping surface transient presence signals
	OnTyping        func(realtime.Typing)
	OnStoppedTyping func(realtime.Typing)
}

// Option defines a function type to modify the Platform instance
type Option func(*Platform)

// WithLogger sets the platform logger, shared by all components
func WithLogger(l zerolog.Logger) Option {
	return func(p *Platform) { p.logger = l }
}

// WithCredentialsRepo overrides the file-backed credential store
func WithCredentialsRepo(repo credentials.Repo) Option {
	return func(p *Platform) { p.Creds = repo }
}

// WithGatewayOptions forwards options to the request gateway
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(p *Platform) { p.gatewayOpts = opts }
}

// New builds the session-context object. Nothing talks to the network until
// Start.
func New(cfg config.Config, options ...Option) (*Platform, error) {
	p := &Platform{
		Rules:     access.DefaultRules,
		Messages:  chat.NewMessageLog(),
		socketURL: cfg.GetSocketURL(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range options {
		opt(p)
	}

	if p.Creds == nil {
		repo, err := credentials.NewFileRepo(cfg.GetDataFolder(), cfg.GetCredentialsKey())
		if err != nil {
			return nil, errors.Wrap(err, "[platform.New] credential store")
		}
		p.Creds = repo
	}

	gwOpts := append([]gateway.Option{gateway.WithLogger(p.logger)}, p.gatewayOpts...)
	gw, err := gateway.New(cfg.GetAPIBaseURL(), p.Creds, p.forcedLogout, gwOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "[platform.New] gateway")
	}
	p.Gateway = gw

	sess, err := session.New(p.Creds, gw, session.WithLogger(p.logger))
	if err != nil {
		return nil, errors.Wrap(err, "[platform.New] session")
	}
	p.Session = sess

	feed, err := notifications.NewFeed(gw)
	if err != nil {
		return nil, errors.Wrap(err, "[platform.New] feed")
	}
	p.Feed = feed

	chatSvc, err := chat.NewService(gw)
	if err != nil {
		return nil, errors.Wrap(err, "[platform.New] chat")
	}
	p.Chat = chatSvc

	// The channel follows every identity change: the old connection closes
	// before any successor opens
	p.Session.OnChange(p.onIdentityChange)

	return p, nil
}

// Start resolves the persisted session and, once the identity is known and
// eligible, opens the real-time channel. Dependents must not consult the
// session before Start returns.
func (p *Platform) Start(ctx context.Context) {
	p.Session.Restore(ctx)
	if p.Session.State() == session.StateAuthenticated {
		if err := p.Feed.RefreshUnreadCount(ctx); err != nil {
			p.logger.Debug().Err(err).Msg("initial unread count fetch failed")
		}
	}
}

// Shutdown tears the coordination layer down deterministically
func (p *Platform) Shutdown() {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	p.closeChannel()
}

// Channel returns the live channel, or nil when closed
func (p *Platform) Channel() *realtime.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channel
}

// onIdentityChange enforces the at-most-one-channel invariant across logins,
// logouts and identity switches
func (p *Platform) onIdentityChange(user *identity.User) {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	p.closeChannel()
	if user == nil {
		p.Feed.Clear()
		p.Messages.Reset()
		return
	}
	if !user.ChannelEligible() {
		return
	}

	stored, err := p.Creds.Load()
	if err != nil || stored.AccessToken() == "" {
		return
	}

	ch, err := realtime.Open(context.Background(), p.socketURL, user, stored.AccessToken(), realtime.Handlers{
		OnMessage: func(m realtime.Message) {
			p.Messages.Append(m)
		},
		OnNotification: func(n realtime.Notification) {
			p.Feed.Push(n.Title, n.Message, n.Kind)
		},
		OnTyping: func(t realtime.Typing) {
			if p.OnTyping != nil {
				p.OnTyping(t)
			}
		},
		OnStoppedTyping: func(t realtime.Typing) {
			if p.OnStoppedTyping != nil {
				p.OnStoppedTyping(t)
			}
		},
		OnDisconnect: func(err error) {
			p.logger.Debug().Err(err).Msg("real-time channel dropped")
			p.mu.Lock()
			p.channel = nil
			p.mu.Unlock()
		},
	}, realtime.WithLogger(p.logger))
	if err != nil {
		p.logger.Err(err).Msg("failed to open real-time channel")
		return
	}

	p.mu.Lock()
	p.channel = ch
	p.mu.Unlock()
}

func (p *Platform) closeChannel() {
	p.mu.Lock()
	ch := p.channel
	p.channel = nil
	p.mu.Unlock()
	if ch != nil {
		ch.Close()
	}
}

// forcedLogout is the gateway's session-invalidation hook: the store is
// already cleared, so only the in-memory identity and channel remain to drop
func (p *Platform) forcedLogout() {
	p.Session.Logout()
	if p.OnForcedLogout != nil {
		p.OnForcedLogout()
	}
}
