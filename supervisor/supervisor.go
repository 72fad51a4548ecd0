// Package supervisor keeps the notification channel open: it dials, subscribes,
// feeds inbound frames to the dispatcher and reconnects with backoff until the
// attempt cap is reached.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moyoez/fleet-notify/dispatch"
	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/transport"
	"github.com/moyoez/fleet-notify/types"
)

// DefaultMaxAttempts is the reconnect cap of the web client.
const DefaultMaxAttempts = 10

var ErrNotConnected = errors.New("notification channel is not open")

// FrameHandler consumes inbound frames. *dispatch.Dispatcher implements it.
type FrameHandler interface {
	HandleFrame(raw []byte)
}

type Options struct {
	Backoff     tool.Backoff
	MaxAttempts int
	// Observer is told about every state transition, in order.
	Observer func(types.ConnectionStatus)
}

type Supervisor struct {
	dialer      transport.Dialer
	handler     FrameHandler
	backoff     tool.Backoff
	maxAttempts int
	observer    func(types.ConnectionStatus)

	connectMu sync.Mutex // serialises Connect and Close

	mu      sync.Mutex
	status  types.ConnectionStatus
	channel transport.Channel
	cancel  context.CancelFunc
	done    chan struct{}

	observerMu sync.Mutex
}

func New(dialer transport.Dialer, handler FrameHandler, opts Options) *Supervisor {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &Supervisor{
		dialer:      dialer,
		handler:     handler,
		backoff:     opts.Backoff,
		maxAttempts: opts.MaxAttempts,
		observer:    opts.Observer,
		status:      types.ConnectionStatus{State: types.ConnectionIdle, ChangedAt: time.Now()},
	}
}

// Connect (re)starts the connection loop with attempt reset to 0. Any running
// loop and its channel are torn down first, so at most one channel is open.
// The loop lives until ctx is cancelled, Close is called or the cap is hit.
func (s *Supervisor) Connect(ctx context.Context) {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.stop()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.setStatus(types.ConnectionConnecting, 0, nil)
	go s.run(ctx, loopCtx, done)
}

// Close stops the loop, closes the channel and returns to idle.
func (s *Supervisor) Close() {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()
	s.stop()
	s.setStatus(types.ConnectionIdle, 0, nil)
}

// stop cancels the running loop and waits for it to exit.
func (s *Supervisor) stop() {
	// cancel under mu: session either registered its channel already or will
	// see the cancelled context when it tries to
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	if cancel != nil {
		cancel()
	}
	ch := s.channel
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	if ch != nil {
		// unblocks Receive
		_ = ch.Close()
	}
	<-done
}

func (s *Supervisor) run(parent, ctx context.Context, done chan struct{}) {
	defer func() {
		// Close and Connect set their own state after stop
		if parent.Err() != nil {
			s.setStatus(types.ConnectionIdle, 0, nil)
		}
		close(done)
	}()

	attempt := 0
	for {
		err := s.session(ctx, attempt)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			// the channel was open, consecutive failures start over
			attempt = 0
		}

		next := attempt + 1
		if next >= s.maxAttempts {
			tool.DefaultLogger.Errorf("[Supervisor] Max reconnection attempts reached (%d): %v", s.maxAttempts, err)
			s.setStatus(types.ConnectionFailed, next, err)
			return
		}
		delay := s.backoff.Delay(attempt)
		s.setStatus(types.ConnectionReconnecting, next, err)
		tool.DefaultLogger.Infof("[Supervisor] Reconnecting in %v (%d/%d)", delay, next, s.maxAttempts)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		attempt = next
	}
}

// session dials once and, if that works, reads until the channel dies.
// It returns a non-nil error only when the dial or subscribe failed; a channel
// that opened and later closed returns nil so the attempt counter resets.
func (s *Supervisor) session(ctx context.Context, attempt int) error {
	ch, err := s.dialer.Dial(ctx)
	if err != nil {
		tool.DefaultLogger.Warnf("[Supervisor] Connect attempt %d failed: %v", attempt, err)
		return err
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		s.mu.Unlock()
		_ = ch.Close()
		return ctx.Err()
	}
	s.channel = ch
	s.mu.Unlock()
	defer s.dropChannel(ch)

	// close the channel on cancel so Receive returns
	released := make(chan struct{})
	defer close(released)
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Close()
		case <-released:
		}
	}()

	s.setStatus(types.ConnectionOpen, 0, nil)
	tool.DefaultLogger.Infof("[Supervisor] Notification channel connected")

	if err := s.sendOn(ctx, ch, types.SubscribeMessage{Channel: types.NotificationsChannel}); err != nil {
		tool.DefaultLogger.Warnf("[Supervisor] Failed to subscribe: %v", err)
		return fmt.Errorf("subscribe failed: %w", err)
	}

	for {
		frame, err := ch.Receive()
		if err != nil {
			if ctx.Err() == nil {
				tool.DefaultLogger.Infof("[Supervisor] Notification channel disconnected: %v", err)
				s.mu.Lock()
				s.status.LastError = err.Error()
				s.mu.Unlock()
			}
			return nil
		}
		s.handler.HandleFrame(frame)
	}
}

func (s *Supervisor) dropChannel(ch transport.Channel) {
	s.mu.Lock()
	if s.channel == ch {
		s.channel = nil
	}
	s.mu.Unlock()
	_ = ch.Close()
}

// Send writes an outbound message on the open channel.
func (s *Supervisor) Send(ctx context.Context, msg types.Message) error {
	s.mu.Lock()
	ch := s.channel
	open := s.status.State == types.ConnectionOpen
	s.mu.Unlock()
	if ch == nil || !open {
		return ErrNotConnected
	}
	return s.sendOn(ctx, ch, msg)
}

func (s *Supervisor) sendOn(ctx context.Context, ch transport.Channel, msg types.Message) error {
	frame, err := dispatch.Encode(msg)
	if err != nil {
		return err
	}
	return ch.Send(ctx, frame)
}

// Status returns the current connection status.
func (s *Supervisor) Status() types.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Supervisor) setStatus(state types.ConnectionState, attempt int, err error) {
	// observerMu is taken first so observers see transitions in order
	s.observerMu.Lock()
	defer s.observerMu.Unlock()

	s.mu.Lock()
	s.status.State = state
	s.status.Attempt = attempt
	s.status.ChangedAt = time.Now()
	if err != nil {
		s.status.LastError = err.Error()
	} else if state == types.ConnectionOpen || state == types.ConnectionConnecting {
		s.status.LastError = ""
	}
	status := s.status
	s.mu.Unlock()

	if s.observer != nil {
		s.observer(status)
	}
}
