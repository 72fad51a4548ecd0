package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/moyoez/fleet-notify/types"
)

// fakeConfirmer records REST confirmations. When gate is set, MarkRead blocks
// until it is closed.
type fakeConfirmer struct {
	mu       sync.Mutex
	reads    []string
	allReads int
	err      error
	gate     chan struct{}
}

func (f *fakeConfirmer) MarkRead(ctx context.Context, id string) error {
	f.mu.Lock()
	f.reads = append(f.reads, id)
	gate, err := f.gate, f.err
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeConfirmer) MarkAllRead(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allReads++
	return f.err
}

func (f *fakeConfirmer) readCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reads...)
}

type fakeFetcher struct {
	recent types.RecentNotifications
	err    error
}

func (f fakeFetcher) RecentNotifications(context.Context) (types.RecentNotifications, error) {
	return f.recent, f.err
}

type eventRecorder struct {
	mu     sync.Mutex
	events []types.Snapshot
}

func (r *eventRecorder) OnStoreChanged(s types.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func notification(id string) types.Notification {
	return types.Notification{
		ID:        id,
		Type:      types.NotifyTypeRoute,
		Subject:   "Route " + id,
		Message:   "Bus delayed",
		Priority:  types.PriorityNormal,
		CreatedAt: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		Data:      map[string]any{"route_id": id},
	}
}

func stateOf(t *testing.T, s *Store, id string) types.ReadState {
	t.Helper()
	n, ok := s.Lookup(id)
	if !ok {
		t.Fatalf("notification %s not found", id)
	}
	return n.ReadState
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestIngestThree(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{})
	defer s.Close()
	rec := &eventRecorder{}
	s.Subscribe(rec)

	for _, id := range []string{"n1", "n2", "n3"} {
		if !s.Ingest(notification(id)) {
			t.Fatalf("ingest %s rejected", id)
		}
	}

	snap := s.Snapshot()
	if len(snap.Notifications) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(snap.Notifications))
	}
	for i, want := range []string{"n3", "n2", "n1"} {
		if snap.Notifications[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, snap.Notifications[i].ID)
		}
		if snap.Notifications[i].ReadState != types.ReadStateUnread {
			t.Errorf("%s should be unread, got %s", want, snap.Notifications[i].ReadState)
		}
	}
	if snap.UnreadCount != 3 {
		t.Errorf("expected unread 3, got %d", snap.UnreadCount)
	}
	if rec.count() != 3 {
		t.Errorf("expected one change event per ingest, got %d", rec.count())
	}
}

func TestIngestTwelveKeepsTenNewest(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{})
	defer s.Close()

	for i := 1; i <= 12; i++ {
		s.Ingest(notification(fmt.Sprintf("n%d", i)))
		if s.Len() > DefaultCapacity {
			t.Fatalf("length %d exceeds capacity after ingest %d", s.Len(), i)
		}
	}

	snap := s.Snapshot()
	if len(snap.Notifications) != 10 {
		t.Fatalf("expected 10 notifications, got %d", len(snap.Notifications))
	}
	if first, last := snap.Notifications[0].ID, snap.Notifications[9].ID; first != "n12" || last != "n3" {
		t.Errorf("expected n12..n3, got %s..%s", first, last)
	}
	if _, ok := s.Lookup("n1"); ok {
		t.Error("n1 should have been evicted")
	}
	if _, ok := s.Lookup("n2"); ok {
		t.Error("n2 should have been evicted")
	}
	// eviction never touches the counter
	if snap.UnreadCount != 12 {
		t.Errorf("expected unread 12, got %d", snap.UnreadCount)
	}
}

func TestEvictionIgnoresReadState(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{Capacity: 2})
	defer s.Close()

	s.Ingest(notification("a"))
	s.MarkRead("a")
	s.Ingest(notification("b"))
	s.Ingest(notification("c"))

	if _, ok := s.Lookup("a"); ok {
		t.Error("oldest entry must be evicted even when read-pending")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
}

func TestIngestRejectsMissingID(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{})
	defer s.Close()

	if s.Ingest(types.Notification{Subject: "no id"}) {
		t.Error("notification without id should be rejected")
	}
	if s.Len() != 0 || s.Unread() != 0 {
		t.Errorf("store should be untouched, len=%d unread=%d", s.Len(), s.Unread())
	}
}

func TestIngestNormalizesPriorityAndCopiesData(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{})
	defer s.Close()

	n := notification("x")
	n.Priority = "medium"
	s.Ingest(n)
	n.Data["route_id"] = "mutated"

	got, _ := s.Lookup("x")
	if got.Priority != types.PriorityNormal {
		t.Errorf("expected normal priority, got %s", got.Priority)
	}
	if got.Data["route_id"] != "x" {
		t.Errorf("store shares the caller's data map: %v", got.Data)
	}
}

func TestMarkReadThenServerConfirm(t *testing.T) {
	t.Parallel()
	confirmer := &fakeConfirmer{gate: make(chan struct{})}
	s := New(confirmer, nil, Options{})
	defer s.Close()

	s.Ingest(notification("7"))
	s.ReplaceUnreadCount(5)

	if !s.MarkRead("7") {
		t.Fatal("mark read should change an unread notification")
	}
	if got := stateOf(t, s, "7"); got != types.ReadStateReadPending {
		t.Errorf("expected read-pending, got %s", got)
	}
	if s.Unread() != 4 {
		t.Errorf("expected unread 4, got %d", s.Unread())
	}
	waitFor(t, "REST mark-read", func() bool { return len(confirmer.readCalls()) == 1 })

	s.ConfirmRead("7")
	if got := stateOf(t, s, "7"); got != types.ReadStateRead {
		t.Errorf("expected read, got %s", got)
	}
	if s.Unread() != 4 {
		t.Errorf("confirmation must not change the counter, got %d", s.Unread())
	}

	// the REST reply arriving afterwards is a no-op
	close(confirmer.gate)
	time.Sleep(10 * time.Millisecond)
	if got := stateOf(t, s, "7"); got != types.ReadStateRead || s.Unread() != 4 {
		t.Errorf("late REST reply changed state: %s / %d", got, s.Unread())
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	t.Parallel()
	confirmer := &fakeConfirmer{gate: make(chan struct{})}
	s := New(confirmer, nil, Options{})
	defer s.Close()
	rec := &eventRecorder{}

	s.Ingest(notification("7"))
	s.Ingest(notification("8"))
	s.Subscribe(rec)

	s.MarkRead("7")
	before := s.Snapshot()
	if s.MarkRead("7") {
		t.Error("second mark read should be a no-op")
	}
	if s.MarkRead("missing") {
		t.Error("mark read of an absent id should be a no-op")
	}
	after := s.Snapshot()
	if before.UnreadCount != after.UnreadCount || after.UnreadCount != 1 {
		t.Errorf("counter changed by repeated mark read: %d -> %d", before.UnreadCount, after.UnreadCount)
	}
	if rec.count() != 1 {
		t.Errorf("expected a single change event, got %d", rec.count())
	}
	waitFor(t, "REST mark-read", func() bool { return len(confirmer.readCalls()) == 1 })
	time.Sleep(5 * time.Millisecond)
	if calls := confirmer.readCalls(); len(calls) != 1 {
		t.Errorf("expected one REST call, got %v", calls)
	}
	close(confirmer.gate)
}

func TestMarkReadRestSuccessSettles(t *testing.T) {
	t.Parallel()
	s := New(&fakeConfirmer{}, nil, Options{})
	defer s.Close()

	s.Ingest(notification("7"))
	s.MarkRead("7")
	waitFor(t, "read state", func() bool { return stateOf(t, s, "7") == types.ReadStateRead })
	if s.Unread() != 0 {
		t.Errorf("expected unread 0, got %d", s.Unread())
	}
}

func TestMarkReadRestFailureRollsBack(t *testing.T) {
	t.Parallel()
	s := New(&fakeConfirmer{err: errors.New("500 internal server error")}, nil, Options{})
	defer s.Close()
	rec := &eventRecorder{}
	s.Subscribe(rec)

	s.Ingest(notification("7"))
	s.MarkRead("7")
	waitFor(t, "rollback", func() bool { return stateOf(t, s, "7") == types.ReadStateUnread })
	if s.Unread() != 1 {
		t.Errorf("expected unread restored to 1, got %d", s.Unread())
	}
	// ingest, mark read, rollback
	waitFor(t, "three events", func() bool { return rec.count() == 3 })
}

func TestConfirmReadOutOfBand(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{})
	defer s.Close()

	s.Ingest(notification("a"))
	s.Ingest(notification("b"))

	s.ConfirmRead("a")
	if got := stateOf(t, s, "a"); got != types.ReadStateRead {
		t.Errorf("expected read, got %s", got)
	}
	if s.Unread() != 1 {
		t.Errorf("read elsewhere should decrement, got %d", s.Unread())
	}

	s.ConfirmRead("a")
	s.ConfirmRead("missing")
	if s.Unread() != 1 {
		t.Errorf("repeated or unknown confirmations must be no-ops, got %d", s.Unread())
	}
}

func TestCounterNeverNegative(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{})
	defer s.Close()

	s.Ingest(notification("a"))
	s.Ingest(notification("b"))
	s.ReplaceUnreadCount(0)
	s.MarkRead("a")
	s.ConfirmRead("b")
	if s.Unread() != 0 {
		t.Errorf("expected 0, got %d", s.Unread())
	}
	s.ReplaceUnreadCount(-3)
	if s.Unread() != 0 {
		t.Errorf("negative server count should clamp to 0, got %d", s.Unread())
	}
}

func TestServerCountIsAuthoritative(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{})
	defer s.Close()

	for _, id := range []string{"a", "b", "c"} {
		s.Ingest(notification(id))
	}
	s.MarkRead("a")
	s.ReplaceUnreadCount(9)
	if s.Unread() != 9 {
		t.Errorf("expected server count 9, got %d", s.Unread())
	}
	s.ReplaceUnreadCount(0)
	if s.Unread() != 0 {
		t.Errorf("expected server count 0, got %d", s.Unread())
	}
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()
	confirmer := &fakeConfirmer{gate: make(chan struct{})}
	s := New(confirmer, nil, Options{})
	defer s.Close()
	rec := &eventRecorder{}

	for _, id := range []string{"a", "b", "c"} {
		s.Ingest(notification(id))
	}
	s.MarkRead("a")
	s.Subscribe(rec)

	s.MarkAllRead()
	for _, n := range s.Snapshot().Notifications {
		if n.ReadState != types.ReadStateRead {
			t.Errorf("%s should be read, got %s", n.ID, n.ReadState)
		}
	}
	if s.Unread() != 0 {
		t.Errorf("expected unread 0, got %d", s.Unread())
	}
	if rec.count() != 1 {
		t.Errorf("expected exactly one change event, got %d", rec.count())
	}
	waitFor(t, "REST mark-all-read", func() bool {
		confirmer.mu.Lock()
		defer confirmer.mu.Unlock()
		return confirmer.allReads == 1
	})
	close(confirmer.gate)
}

func TestMarkAllReadFailureDoesNotRollBack(t *testing.T) {
	t.Parallel()
	confirmer := &fakeConfirmer{err: errors.New("timeout")}
	s := New(confirmer, nil, Options{})

	s.Ingest(notification("a"))
	s.MarkAllRead()
	waitFor(t, "REST mark-all-read", func() bool {
		confirmer.mu.Lock()
		defer confirmer.mu.Unlock()
		return confirmer.allReads == 1
	})
	s.Close()

	if got := stateOf(t, s, "a"); got != types.ReadStateRead {
		t.Errorf("expected read to stick, got %s", got)
	}
	if s.Unread() != 0 {
		t.Errorf("expected 0, got %d", s.Unread())
	}
}

func TestExpirePendingRollsBack(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{PendingTimeout: 20 * time.Millisecond})
	defer s.Close()

	s.Ingest(notification("a"))
	s.Ingest(notification("b"))
	s.MarkRead("a")
	if n := s.ExpirePending(); n != 0 {
		t.Errorf("nothing should expire yet, got %d", n)
	}

	time.Sleep(40 * time.Millisecond)
	s.MarkRead("b")
	if n := s.ExpirePending(); n != 1 {
		t.Fatalf("expected one rollback, got %d", n)
	}
	if got := stateOf(t, s, "a"); got != types.ReadStateUnread {
		t.Errorf("expected a unread again, got %s", got)
	}
	if got := stateOf(t, s, "b"); got != types.ReadStateReadPending {
		t.Errorf("b is still inside its window, got %s", got)
	}
	if s.Unread() != 1 {
		t.Errorf("expected unread 1, got %d", s.Unread())
	}
}

func TestLoadRecent(t *testing.T) {
	t.Parallel()
	read := notification("r1")
	read.Read = true
	fetcher := fakeFetcher{recent: types.RecentNotifications{
		Notifications: []types.Notification{notification("u1"), read, {Subject: "no id"}},
		UnreadCount:   4,
	}}
	s := New(nil, fetcher, Options{})
	defer s.Close()

	s.Ingest(notification("stale"))
	s.LoadRecent(context.Background())

	snap := s.Snapshot()
	if len(snap.Notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(snap.Notifications))
	}
	if snap.Notifications[0].ID != "u1" || snap.Notifications[0].ReadState != types.ReadStateUnread {
		t.Errorf("unexpected first entry %+v", snap.Notifications[0])
	}
	if snap.Notifications[1].ID != "r1" || snap.Notifications[1].ReadState != types.ReadStateRead {
		t.Errorf("unexpected second entry %+v", snap.Notifications[1])
	}
	if snap.UnreadCount != 4 {
		t.Errorf("expected server count 4, got %d", snap.UnreadCount)
	}
}

func TestLoadRecentTruncatesToCapacity(t *testing.T) {
	t.Parallel()
	var list []types.Notification
	for i := 0; i < 15; i++ {
		list = append(list, notification(fmt.Sprintf("n%d", i)))
	}
	s := New(nil, fakeFetcher{recent: types.RecentNotifications{Notifications: list, UnreadCount: 15}}, Options{})
	defer s.Close()

	s.LoadRecent(context.Background())
	snap := s.Snapshot()
	if len(snap.Notifications) != 10 {
		t.Fatalf("expected 10, got %d", len(snap.Notifications))
	}
	if snap.Notifications[0].ID != "n0" || snap.Notifications[9].ID != "n9" {
		t.Errorf("source order not kept: %s..%s", snap.Notifications[0].ID, snap.Notifications[9].ID)
	}
}

func TestLoadRecentFailureFallsBackToEmpty(t *testing.T) {
	t.Parallel()
	s := New(nil, fakeFetcher{err: errors.New("connection refused")}, Options{})
	defer s.Close()
	rec := &eventRecorder{}
	s.Subscribe(rec)

	s.Ingest(notification("a"))
	s.LoadRecent(context.Background())

	snap := s.Snapshot()
	if len(snap.Notifications) != 0 || snap.UnreadCount != 0 {
		t.Errorf("expected empty baseline, got %+v", snap)
	}
	if rec.count() != 2 {
		t.Errorf("expected an event for the baseline, got %d events", rec.count())
	}
}

func TestLoadRecentReconcilesPending(t *testing.T) {
	t.Parallel()
	confirmer := &fakeConfirmer{gate: make(chan struct{})}
	read := notification("7")
	read.Read = true
	s := New(confirmer, fakeFetcher{recent: types.RecentNotifications{
		Notifications: []types.Notification{read},
	}}, Options{})
	defer s.Close()

	s.Ingest(notification("7"))
	s.MarkRead("7")
	s.LoadRecent(context.Background())
	if got := stateOf(t, s, "7"); got != types.ReadStateRead {
		t.Errorf("server baseline should settle the pending read, got %s", got)
	}
	if n := s.ExpirePending(); n != 0 {
		t.Errorf("nothing should be pending after reconciliation, got %d", n)
	}
	close(confirmer.gate)
}

func TestClosedStoreIsNoOp(t *testing.T) {
	t.Parallel()
	confirmer := &fakeConfirmer{gate: make(chan struct{})}
	s := New(confirmer, nil, Options{})
	rec := &eventRecorder{}
	s.Subscribe(rec)

	s.Ingest(notification("a"))
	s.MarkRead("a")
	waitFor(t, "REST mark-read", func() bool { return len(confirmer.readCalls()) == 1 })

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not cancel the in-flight confirmation")
	}

	events := rec.count()
	if s.Ingest(notification("b")) {
		t.Error("ingest after close should be rejected")
	}
	s.ReplaceUnreadCount(7)
	s.ConfirmRead("a")
	s.MarkAllRead()
	s.LoadRecent(context.Background())
	if n := s.ExpirePending(); n != 0 {
		t.Errorf("closed store expired %d entries", n)
	}
	if rec.count() != events {
		t.Errorf("closed store emitted %d events", rec.count()-events)
	}
	// the cancelled confirmation neither rolled back nor settled
	if got := stateOf(t, s, "a"); got != types.ReadStateReadPending {
		t.Errorf("expected state frozen at read-pending, got %s", got)
	}
	// the pending cache is already destroyed, a second close must not touch it
	s.Close()
}

func TestEventsReflectMutationOrder(t *testing.T) {
	t.Parallel()
	s := New(nil, nil, Options{})
	defer s.Close()
	rec := &eventRecorder{}
	s.Subscribe(rec)

	s.Ingest(notification("a"))
	s.ReplaceUnreadCount(5)
	s.MarkRead("a")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	counts := []int{rec.events[0].UnreadCount, rec.events[1].UnreadCount, rec.events[2].UnreadCount}
	if counts[0] != 1 || counts[1] != 5 || counts[2] != 4 {
		t.Errorf("unexpected event sequence %v", counts)
	}
}
