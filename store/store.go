// Package store is the client-side cache of recent notifications, their read
// states and the unread counter. Local reads are optimistic and reconciled
// against server confirmations.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/types"
)

const (
	DefaultCapacity       = 10
	DefaultPendingTimeout = 30 * time.Second
	DefaultConfirmTimeout = 10 * time.Second
)

var errNoFetcher = errors.New("no recent-notifications fetcher configured")

// Confirmer persists reads on the server.
type Confirmer interface {
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
}

// Fetcher loads the recent-notifications baseline.
type Fetcher interface {
	RecentNotifications(ctx context.Context) (types.RecentNotifications, error)
}

// Listener is told about every change, in mutation order. It runs outside the
// store lock but must not mutate the store synchronously.
type Listener interface {
	OnStoreChanged(snapshot types.Snapshot)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(types.Snapshot)

func (f ListenerFunc) OnStoreChanged(s types.Snapshot) { f(s) }

type Options struct {
	Capacity       int
	PendingTimeout time.Duration // how long a read may stay read-pending
	ConfirmTimeout time.Duration // per REST confirmation
}

type Store struct {
	capacity       int
	pendingTimeout time.Duration
	confirmTimeout time.Duration
	confirmer      Confirmer
	fetcher        Fetcher

	// time each read-pending entry was marked, keyed by id
	pending *ttlworker.Cache[string, time.Time]

	emitMu    sync.Mutex // held while mutating and emitting, keeps events ordered
	listeners []Listener

	mu     sync.Mutex
	items  []types.Notification // newest first
	unread int
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(confirmer Confirmer, fetcher Fetcher, opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = DefaultPendingTimeout
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		capacity:       opts.Capacity,
		pendingTimeout: opts.PendingTimeout,
		confirmTimeout: opts.ConfirmTimeout,
		confirmer:      confirmer,
		fetcher:        fetcher,
		pending:        ttlworker.NewCache[string, time.Time](opts.PendingTimeout),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Subscribe registers a change listener. Call it before the store is shared.
func (s *Store) Subscribe(l Listener) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// mutate runs fn under the lock and, if fn reports a change, emits the
// resulting snapshot to every listener.
func (s *Store) mutate(fn func() bool) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	changed := fn()
	var snap types.Snapshot
	if changed {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if changed {
		for _, l := range s.listeners {
			l.OnStoreChanged(snap)
		}
	}
	return changed
}

// Ingest prepends a pushed notification as unread and bumps the counter.
// The oldest entry is evicted beyond capacity, whatever its state.
func (s *Store) Ingest(n types.Notification) bool {
	if n.ID == "" {
		return false
	}
	n = n.Clone()
	n.ReadState = types.ReadStateUnread
	n.Read = false
	n.Priority = n.Priority.Normalize()
	return s.mutate(func() bool {
		s.items = append([]types.Notification{n}, s.items...)
		if len(s.items) > s.capacity {
			for _, evicted := range s.items[s.capacity:] {
				s.pending.Delete(evicted.ID)
			}
			s.items = s.items[:s.capacity]
		}
		s.unread++
		return true
	})
}

// MarkRead optimistically marks an unread notification as read and asks the
// server to persist it. It reports whether anything changed; repeated calls
// are no-ops.
func (s *Store) MarkRead(id string) bool {
	changed := s.mutate(func() bool {
		i := s.indexLocked(id)
		if i < 0 || s.items[i].ReadState != types.ReadStateUnread {
			return false
		}
		s.items[i].ReadState = types.ReadStateReadPending
		s.decrementLocked()
		s.pending.Set(id, time.Now())
		return true
	})
	if changed && s.confirmer != nil {
		s.spawn(func(ctx context.Context) {
			err := s.confirmer.MarkRead(ctx, id)
			if s.ctx.Err() != nil {
				// store closed
				return
			}
			if err != nil {
				tool.DefaultLogger.Warnf("[Store] Failed to mark notification %s as read: %v", id, err)
				s.rollback(id)
				return
			}
			s.settle(id)
		})
	}
	return changed
}

// ConfirmRead applies a server read confirmation. A notification read
// elsewhere (still unread here) also decrements the counter.
func (s *Store) ConfirmRead(id string) {
	s.mutate(func() bool {
		i := s.indexLocked(id)
		if i < 0 {
			return false
		}
		switch s.items[i].ReadState {
		case types.ReadStateReadPending:
			s.pending.Delete(id)
		case types.ReadStateUnread:
			s.decrementLocked()
		default:
			return false
		}
		s.items[i].ReadState = types.ReadStateRead
		s.items[i].Read = true
		return true
	})
}

// settle turns a successful REST confirmation into read without touching the counter.
func (s *Store) settle(id string) {
	s.mutate(func() bool {
		i := s.indexLocked(id)
		if i < 0 || s.items[i].ReadState != types.ReadStateReadPending {
			return false
		}
		s.pending.Delete(id)
		s.items[i].ReadState = types.ReadStateRead
		s.items[i].Read = true
		return true
	})
}

// rollback returns a read-pending notification to unread.
func (s *Store) rollback(id string) bool {
	return s.mutate(func() bool {
		i := s.indexLocked(id)
		if i < 0 || s.items[i].ReadState != types.ReadStateReadPending {
			return false
		}
		s.pending.Delete(id)
		s.items[i].ReadState = types.ReadStateUnread
		s.unread++
		return true
	})
}

// MarkAllRead marks everything read, zeroes the counter and asks the server to
// do the same. A failed confirmation is only logged.
func (s *Store) MarkAllRead() bool {
	changed := s.mutate(func() bool {
		for i := range s.items {
			if s.items[i].ReadState != types.ReadStateRead {
				s.pending.Delete(s.items[i].ID)
				s.items[i].ReadState = types.ReadStateRead
				s.items[i].Read = true
			}
		}
		s.unread = 0
		return true
	})
	if changed && s.confirmer != nil {
		s.spawn(func(ctx context.Context) {
			if err := s.confirmer.MarkAllRead(ctx); err != nil && s.ctx.Err() == nil {
				tool.DefaultLogger.Warnf("[Store] Failed to mark all notifications as read: %v", err)
			}
		})
	}
	return changed
}

// ReplaceUnreadCount overwrites the counter with the server's value.
func (s *Store) ReplaceUnreadCount(count int) {
	s.mutate(func() bool {
		s.unread = max(count, 0)
		return true
	})
}

// LoadRecent replaces the list and counter with the server baseline. A failed
// fetch leaves an empty baseline; the caller never sees the error.
func (s *Store) LoadRecent(ctx context.Context) {
	var (
		recent types.RecentNotifications
		err    error
	)
	if s.fetcher == nil {
		err = errNoFetcher
	} else {
		recent, err = s.fetcher.RecentNotifications(ctx)
	}
	if err != nil {
		tool.DefaultLogger.Warnf("[Store] Failed to load recent notifications: %v", err)
		recent = types.RecentNotifications{}
	}

	items := make([]types.Notification, 0, min(len(recent.Notifications), s.capacity))
	for _, n := range recent.Notifications {
		if len(items) == s.capacity {
			break
		}
		if n.ID == "" {
			continue
		}
		n = n.Clone()
		n.Priority = n.Priority.Normalize()
		if n.Read {
			n.ReadState = types.ReadStateRead
		} else {
			n.ReadState = types.ReadStateUnread
		}
		items = append(items, n)
	}

	s.mutate(func() bool {
		for _, old := range s.items {
			s.pending.Delete(old.ID)
		}
		s.items = items
		s.unread = max(recent.UnreadCount, 0)
		return true
	})
	tool.DefaultLogger.Debugf("[Store] Loaded %d recent notifications, %d unread", len(items), recent.UnreadCount)
}

// ExpirePending rolls back every read-pending entry whose confirmation window
// elapsed and returns how many were rolled back.
func (s *Store) ExpirePending() int {
	now := time.Now()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	var expired []string
	for _, n := range s.items {
		if n.ReadState != types.ReadStateReadPending {
			continue
		}
		// Get refreshes the entry, so the stored mark time decides
		marked := s.pending.Get(n.ID)
		if marked.IsZero() || now.Sub(marked) >= s.pendingTimeout {
			expired = append(expired, n.ID)
		}
	}
	s.mu.Unlock()

	rolled := 0
	for _, id := range expired {
		if s.rollback(id) {
			tool.DefaultLogger.Infof("[Store] Read of notification %s was never confirmed, marking unread again", id)
			rolled++
		}
	}
	return rolled
}

func (s *Store) Snapshot() types.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Lookup returns a copy of the notification with the given id.
func (s *Store) Lookup(id string) (types.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return types.Notification{}, false
	}
	return s.items[i].Clone(), true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Close destroys the store: in-flight confirmations are cancelled and waited
// for, and every later call is a no-op.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.pending.Destroy()
}

func (s *Store) spawn(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.confirmTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Store) indexLocked(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) decrementLocked() {
	if s.unread > 0 {
		s.unread--
	}
}

func (s *Store) snapshotLocked() types.Snapshot {
	list := make([]types.Notification, len(s.items))
	for i, n := range s.items {
		list[i] = n.Clone()
	}
	return types.Snapshot{Notifications: list, UnreadCount: s.unread}
}
