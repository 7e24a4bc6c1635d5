package memstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

func seed(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for i, id := range ids {
		capacity := 10
		require.NoError(t, s.CreateEvent(context.Background(), &model.Event{
			ID:          id,
			Name:        id,
			MaxCapacity: &capacity,
			Status:      model.EventOpen,
			CreatedAt:   time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC),
		}))
	}
}

func registration(id, user, event string, status model.RegistrationStatus, at time.Time) *model.Registration {
	return &model.Registration{ID: id, UserID: user, EventID: event, Status: status, RequestedAt: at}
}

func TestWithEventLock_UnknownEvent(t *testing.T) {
	s := New(time.Second)
	called := false
	err := s.WithEventLock(context.Background(), "nope", func(store.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, called)
}

func TestWithEventLock_UnknownEventsAllocateNoLocks(t *testing.T) {
	s := New(time.Second)
	seed(t, s, "known")

	for i := 0; i < 100; i++ {
		err := s.WithEventLock(context.Background(), fmt.Sprintf("nope-%d", i), func(store.Tx) error { return nil })
		require.ErrorIs(t, err, store.ErrNotFound)
	}
	assert.Empty(t, s.locks)

	require.NoError(t, s.WithEventLock(context.Background(), "known", func(store.Tx) error { return nil }))
	assert.Len(t, s.locks, 1)
}

func TestWithEventLock_RollsBackOnError(t *testing.T) {
	s := New(time.Second)
	seed(t, s, "e1")
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithEventLock(ctx, "e1", func(tx store.Tx) error {
		ev := tx.Event().Clone()
		ev.CurrentRegistrations = 3
		require.NoError(t, tx.SaveEvent(ctx, ev))
		require.NoError(t, tx.InsertRegistration(ctx, registration("r1", "u1", "e1", model.StatusConfirmed, time.Now())))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ev, err := s.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, ev.CurrentRegistrations)
	_, err = s.GetRegistration(ctx, "r1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, s.EventSaves("e1"))
}

func TestWithEventLock_CommitsStagedWrites(t *testing.T) {
	s := New(time.Second)
	seed(t, s, "e1")
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := s.WithEventLock(ctx, "e1", func(tx store.Tx) error {
		require.NoError(t, tx.InsertRegistration(ctx, registration("r1", "u1", "e1", model.StatusConfirmed, at)))

		// Staged rows are visible inside the transaction.
		active, err := tx.ActiveRegistration(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "r1", active.ID)

		assert.ErrorIs(t,
			tx.InsertRegistration(ctx, registration("r2", "u1", "e1", model.StatusWaitlisted, at)),
			store.ErrDuplicate)

		ev := tx.Event().Clone()
		ev.CurrentRegistrations = 1
		return tx.SaveEvent(ctx, ev)
	})
	require.NoError(t, err)

	ev, err := s.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, ev.CurrentRegistrations)
	assert.Equal(t, 1, s.EventSaves("e1"))

	regs, err := s.ListByEvent(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "r1", regs[0].ID)
}

func TestWithEventLock_TimesOut(t *testing.T) {
	s := New(20 * time.Millisecond)
	seed(t, s, "e1", "e2")
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.WithEventLock(ctx, "e1", func(store.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err := s.WithEventLock(ctx, "e1", func(store.Tx) error { return nil })
	assert.ErrorIs(t, err, store.ErrLockTimeout)

	// Other events are not blocked.
	err = s.WithEventLock(ctx, "e2", func(store.Tx) error { return nil })
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)
	assert.NoError(t, s.WithEventLock(ctx, "e1", func(store.Tx) error { return nil }))
}

func TestWithEventLock_CallerCancellation(t *testing.T) {
	s := New(time.Second)
	seed(t, s, "e1")

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithEventLock(context.Background(), "e1", func(store.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.WithEventLock(ctx, "e1", func(store.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, store.ErrLockTimeout)
}

func TestTx_WaitlistQueries(t *testing.T) {
	s := New(time.Second)
	seed(t, s, "e1")
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	pos := func(n int) *int { return &n }

	err := s.WithEventLock(ctx, "e1", func(tx store.Tx) error {
		for i, p := range []int{3, 1, 1} {
			reg := registration(string(rune('a'+i)), string(rune('A'+i)), "e1", model.StatusWaitlisted, base.Add(time.Duration(i)*time.Second))
			reg.WaitlistedPosition = pos(p)
			require.NoError(t, tx.InsertRegistration(ctx, reg))
		}
		return nil
	})
	require.NoError(t, err)

	err = s.WithEventLock(ctx, "e1", func(tx store.Tx) error {
		count, maxPos, err := tx.WaitlistStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.Equal(t, 3, maxPos)

		next, err := tx.NextWaitlisted(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", next.ID, "lowest position, earliest request")
		return nil
	})
	require.NoError(t, err)
}

func TestLatestRegistration(t *testing.T) {
	s := New(time.Second)
	seed(t, s, "e1")
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	err := s.WithEventLock(ctx, "e1", func(tx store.Tx) error {
		require.NoError(t, tx.InsertRegistration(ctx, registration("old", "u1", "e1", model.StatusCancelled, base)))
		return tx.InsertRegistration(ctx, registration("new", "u1", "e1", model.StatusConfirmed, base.Add(time.Minute)))
	})
	require.NoError(t, err)

	latest, err := s.LatestRegistration(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	_, err = s.LatestRegistration(ctx, "u2", "e1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	regs, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "old", regs[0].ID)
}

func TestListEvents_NewestFirst(t *testing.T) {
	s := New(time.Second)
	seed(t, s, "first", "second")

	events, err := s.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].ID)
}

func TestUsers(t *testing.T) {
	s := New(time.Second)
	s.AddUser("alice")

	ok, err := s.UserExists(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UserExists(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}
