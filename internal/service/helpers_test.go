package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/memstore"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// stepClock advances one millisecond per reading so every timestamp is distinct.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []model.Notification
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, note model.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return n.err
}

func (n *recordingNotifier) kinds(userID string) []model.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []model.NotificationKind
	for _, note := range n.notes {
		if note.UserID == userID {
			out = append(out, note.Kind)
		}
	}
	return out
}

// countingStore counts SaveEvent calls made through the event lock.
type countingStore struct {
	store.Store
	saves atomic.Int64
}

func (c *countingStore) WithEventLock(ctx context.Context, eventID string, fn func(tx store.Tx) error) error {
	return c.Store.WithEventLock(ctx, eventID, func(tx store.Tx) error {
		return fn(&countingTx{Tx: tx, saves: &c.saves})
	})
}

type countingTx struct {
	store.Tx
	saves *atomic.Int64
}

func (c *countingTx) SaveEvent(ctx context.Context, event *model.Event) error {
	c.saves.Add(1)
	return c.Tx.SaveEvent(ctx, event)
}

type fixture struct {
	svc      *EventService
	mem      *memstore.Store
	counting *countingStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mem := memstore.New(time.Second)
	counting := &countingStore{Store: mem}
	notifier := &recordingNotifier{}
	clock := newStepClock()
	var seq atomic.Int64
	base := []Option{
		WithClock(clock.Now),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%04d", seq.Add(1)) }),
		WithNotifier(notifier),
	}
	svc := NewEventService(counting, append(base, opts...)...)
	return &fixture{svc: svc, mem: mem, counting: counting, notifier: notifier}
}

func intPtr(n int) *int { return &n }

// bookingResult is the outcome of one concurrent registration attempt.
type bookingResult struct {
	UserID       string
	Registration *model.Registration
	Error        error
}

func (f *fixture) event(t *testing.T, capacity *int) *model.Event {
	t.Helper()
	ev, err := f.svc.CreateEvent(context.Background(), model.CreateEventRequest{
		Name:        "Spring meetup",
		MaxCapacity: capacity,
	})
	require.NoError(t, err)
	return ev
}

// fill confirms n users named prefix-0..prefix-(n-1).
func (f *fixture) fill(t *testing.T, eventID, prefix string, n int) []*model.Registration {
	t.Helper()
	regs := make([]*model.Registration, 0, n)
	for i := 0; i < n; i++ {
		reg, err := f.svc.RegisterForEvent(context.Background(), fmt.Sprintf("%s-%d", prefix, i), eventID)
		require.NoError(t, err)
		regs = append(regs, reg)
	}
	return regs
}

func (f *fixture) reload(t *testing.T, eventID string) *model.Event {
	t.Helper()
	ev, err := f.svc.GetEvent(context.Background(), eventID)
	require.NoError(t, err)
	return ev
}

func (f *fixture) registration(t *testing.T, id string) *model.Registration {
	t.Helper()
	reg, err := f.svc.GetRegistrationByID(context.Background(), id)
	require.NoError(t, err)
	return reg
}

// setStatus overwrites the stored event status, as an admin would.
func (f *fixture) setStatus(t *testing.T, eventID string, status model.EventStatus) {
	t.Helper()
	err := f.mem.WithEventLock(context.Background(), eventID, func(tx store.Tx) error {
		ev := tx.Event().Clone()
		ev.Status = status
		return tx.SaveEvent(context.Background(), ev)
	})
	require.NoError(t, err)
}

var errSinkDown = errors.New("sink down")
