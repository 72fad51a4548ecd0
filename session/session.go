// Package session wires one notification store, dispatcher and connection
// supervisor together for an authenticated user.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/moyoez/fleet-notify/dispatch"
	"github.com/moyoez/fleet-notify/notify"
	"github.com/moyoez/fleet-notify/present"
	"github.com/moyoez/fleet-notify/rest"
	"github.com/moyoez/fleet-notify/store"
	"github.com/moyoez/fleet-notify/supervisor"
	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/transport"
	"github.com/moyoez/fleet-notify/types"
)

var (
	ErrNotFound = errors.New("notification not found")
	ErrClosed   = errors.New("session closed")
	ErrStarted  = errors.New("session already started")
)

// ConnectionListener is told about every connection state transition.
type ConnectionListener interface {
	OnConnectionChanged(status types.ConnectionStatus)
}

type Options struct {
	Config types.AppConfig
	Alerts notify.AlertSink
	// Dialer overrides the websocket dialer built from Config.
	Dialer     transport.Dialer
	HTTPClient *http.Client
	// ExpiryInterval is how often unconfirmed reads are checked.
	ExpiryInterval time.Duration
}

// Session is the per-process replacement for a global notification manager.
type Session struct {
	cfg            types.AppConfig
	rest           *rest.Client
	store          *store.Store
	dispatcher     *dispatch.Dispatcher
	supervisor     *supervisor.Supervisor
	expiryInterval time.Duration

	listenersMu sync.Mutex
	listeners   []ConnectionListener

	mu      sync.Mutex
	started bool
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(opts Options) (*Session, error) {
	cfg := opts.Config
	baseURL, err := tool.BuildRESTBaseURL(cfg.ServerURL, cfg.RESTBasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to build REST base URL: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = tool.NewHTTPClient(cfg.InsecureTLS)
	}
	client := rest.NewClient(rest.Options{
		BaseURL:     baseURL,
		Token:       cfg.Token,
		CSRFToken:   cfg.CSRFToken,
		RecentLimit: cfg.Capacity,
		ConfirmRate: cfg.ConfirmRate,
		HTTPClient:  httpClient,
	})

	dialer := opts.Dialer
	if dialer == nil {
		wsURL, err := tool.BuildWebSocketURL(cfg.ServerURL, cfg.WebSocketPath)
		if err != nil {
			return nil, fmt.Errorf("failed to build websocket URL: %w", err)
		}
		header := http.Header{}
		if cfg.Token != "" {
			header.Set("Authorization", "Bearer "+cfg.Token)
		}
		header.Set(rest.HeaderClientID, client.ClientID())
		dialer = &transport.WebSocketDialer{
			URL:         wsURL,
			Header:      header,
			InsecureTLS: cfg.InsecureTLS,
		}
	}

	pendingTimeout := time.Duration(cfg.PendingTimeout) * time.Second
	expiry := opts.ExpiryInterval
	if expiry <= 0 {
		expiry = min(max(pendingTimeout/3, time.Second), 10*time.Second)
	}

	s := &Session{
		cfg:            cfg,
		rest:           client,
		expiryInterval: expiry,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.store = store.New(client, client, store.Options{
		Capacity:       cfg.Capacity,
		PendingTimeout: pendingTimeout,
	})
	s.dispatcher = dispatch.New(s.store, opts.Alerts)
	s.supervisor = supervisor.New(dialer, s.dispatcher, supervisor.Options{
		Backoff:     tool.BackoffFromConfig(cfg.Reconnect),
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		Observer:    s.connectionChanged,
	})
	return s, nil
}

// Subscribe registers a store change listener. Call it before Start.
func (s *Session) Subscribe(l store.Listener) {
	s.store.Subscribe(l)
}

// SubscribeConnection registers a connection state listener.
func (s *Session) SubscribeConnection(l ConnectionListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Session) connectionChanged(status types.ConnectionStatus) {
	tool.DefaultLogger.Debugf("[Session] Connection %s (attempt %d)", status.State, status.Attempt)
	s.listenersMu.Lock()
	listeners := append([]ConnectionListener(nil), s.listeners...)
	s.listenersMu.Unlock()
	for _, l := range listeners {
		l.OnConnectionChanged(status)
	}
}

// Start checks the session token, loads the recent baseline and opens the
// channel. Pushes received afterwards are applied on top of the baseline.
//
// The baseline fetch runs before the dial and blocks for as long as ctx allows.
// LoadRecent replaces the whole list, so fetching after the channel opened
// could drop a push that arrived mid-fetch. A fetch cut short by ctx leaves an
// empty baseline and Start still connects.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrStarted
	}
	s.started = true
	s.mu.Unlock()

	if s.cfg.Token != "" {
		info, err := tool.InspectToken(s.cfg.Token, time.Now())
		switch {
		case errors.Is(err, tool.ErrTokenExpired):
			return fmt.Errorf("cannot start notification session: %w (expired at %s)", err, info.ExpiresAt.Format(time.RFC3339))
		case err != nil:
			tool.DefaultLogger.Debugf("[Session] Using opaque session token: %v", err)
		default:
			tool.DefaultLogger.Infof("[Session] Authenticated as %q", info.Subject)
		}
	} else {
		tool.DefaultLogger.Warnf("[Session] No session token configured, relying on cookies or an open server")
	}

	s.store.LoadRecent(ctx)
	s.supervisor.Connect(s.ctx)

	s.wg.Add(1)
	go s.expireLoop()
	return nil
}

func (s *Session) expireLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.expiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.ExpirePending(); n > 0 {
				tool.DefaultLogger.Debugf("[Session] Rolled back %d unconfirmed reads", n)
			}
		}
	}
}

// Stop closes the channel and destroys the store. It is safe to call twice.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.supervisor.Close()
	s.store.Close()
	s.wg.Wait()
	tool.DefaultLogger.Infof("[Session] Notification session stopped")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reconnect restarts the connection loop with a fresh attempt budget.
func (s *Session) Reconnect() error {
	if s.isClosed() {
		return ErrClosed
	}
	s.supervisor.Connect(s.ctx)
	return nil
}

// Open marks a notification read and returns where it leads.
func (s *Session) Open(id string) (types.Target, error) {
	if s.isClosed() {
		return types.Target{}, ErrClosed
	}
	n, ok := s.store.Lookup(id)
	if !ok {
		return types.Target{}, ErrNotFound
	}
	s.store.MarkRead(id)
	return present.Route(n.Type, n.Data), nil
}

func (s *Session) MarkRead(id string) error {
	if s.isClosed() {
		return ErrClosed
	}
	if _, ok := s.store.Lookup(id); !ok {
		return ErrNotFound
	}
	s.store.MarkRead(id)
	return nil
}

func (s *Session) MarkAllRead() error {
	if s.isClosed() {
		return ErrClosed
	}
	s.store.MarkAllRead()
	return nil
}

// Refresh reloads the recent baseline from the server.
func (s *Session) Refresh(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.store.LoadRecent(ctx)
	return nil
}

// EnsureLoaded loads the baseline when nothing is cached yet.
func (s *Session) EnsureLoaded(ctx context.Context) {
	if s.isClosed() || s.store.Len() > 0 {
		return
	}
	s.store.LoadRecent(ctx)
}

func (s *Session) Lookup(id string) (types.Notification, bool) {
	return s.store.Lookup(id)
}

func (s *Session) Snapshot() types.Snapshot {
	return s.store.Snapshot()
}

func (s *Session) Status() types.ConnectionStatus {
	return s.supervisor.Status()
}

func (s *Session) Stats() dispatch.Stats {
	return s.dispatcher.Stats()
}

func (s *Session) Config() types.AppConfig {
	return s.cfg
}
