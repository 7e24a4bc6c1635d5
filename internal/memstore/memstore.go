// Package memstore is an in-process implementation of store.Store.
//
// Each event is guarded by its own weighted semaphore, so work on different
// events never contends. Writes made inside WithEventLock are staged on the
// transaction and applied in one step when the callback succeeds.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// DefaultLockTimeout bounds how long WithEventLock waits for an event lock.
const DefaultLockTimeout = 5 * time.Second

// Store keeps events and registrations in memory.
type Store struct {
	lockTimeout time.Duration

	locksMu sync.Mutex
	locks   map[string]*semaphore.Weighted

	mu            sync.RWMutex
	events        map[string]*model.Event
	registrations map[string]*model.Registration
	byEvent       map[string][]string
	users         map[string]struct{}

	// saves counts committed event writes; tests use it to assert no-op updates.
	saves map[string]int
}

// New constructs an empty Store. A non-positive lockTimeout uses DefaultLockTimeout.
func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{
		lockTimeout:   lockTimeout,
		locks:         make(map[string]*semaphore.Weighted),
		events:        make(map[string]*model.Event),
		registrations: make(map[string]*model.Registration),
		byEvent:       make(map[string][]string),
		users:         make(map[string]struct{}),
		saves:         make(map[string]int),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) lockFor(eventID string) *semaphore.Weighted {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[eventID]
	if !ok {
		l = semaphore.NewWeighted(1)
		s.locks[eventID] = l
	}
	return l
}

// WithEventLock implements store.Store.
func (s *Store) WithEventLock(ctx context.Context, eventID string, fn func(tx store.Tx) error) error {
	// Events are never deleted, so an unknown ID never needs a lock entry.
	s.mu.RLock()
	_, known := s.events[eventID]
	s.mu.RUnlock()
	if !known {
		return store.ErrNotFound
	}
	lock := s.lockFor(eventID)

	acquireCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	if err := lock.Acquire(acquireCtx, 1); err != nil {
		// Caller cancellation is not contention.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return store.ErrLockTimeout
	}
	defer lock.Release(1)

	s.mu.RLock()
	ev, ok := s.events[eventID]
	var snapshot *model.Event
	if ok {
		snapshot = ev.Clone()
	}
	s.mu.RUnlock()
	if !ok {
		return store.ErrNotFound
	}

	tx := &tx{store: s, event: snapshot, staged: make(map[string]*model.Registration)}
	if err := fn(tx); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.eventDirty {
		s.events[t.event.ID] = t.event.Clone()
		s.saves[t.event.ID]++
	}
	for _, id := range t.order {
		reg := t.staged[id]
		if _, exists := s.registrations[id]; !exists {
			s.byEvent[reg.EventID] = append(s.byEvent[reg.EventID], id)
		}
		s.registrations[id] = reg.Clone()
	}
}

// CreateEvent implements store.Store.
func (s *Store) CreateEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.events[event.ID]; exists {
		return fmt.Errorf("event %s already exists", event.ID)
	}
	s.events[event.ID] = event.Clone()
	return nil
}

// GetEvent implements store.Store.
func (s *Store) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ev.Clone(), nil
}

// ListEvents returns all events ordered by creation time descending.
func (s *Store) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, *ev.Clone())
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

// GetRegistration implements store.Store.
func (s *Store) GetRegistration(_ context.Context, id string) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registrations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return reg.Clone(), nil
}

// LatestRegistration implements store.Store.
func (s *Store) LatestRegistration(_ context.Context, userID, eventID string) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestLocked(userID, eventID, nil)
}

func (s *Store) latestLocked(userID, eventID string, staged map[string]*model.Registration) (*model.Registration, error) {
	var latest *model.Registration
	consider := func(reg *model.Registration) {
		if reg.UserID != userID || reg.EventID != eventID {
			return
		}
		if latest == nil || !reg.RequestedAt.Before(latest.RequestedAt) {
			latest = reg
		}
	}
	for _, id := range s.byEvent[eventID] {
		if reg, ok := staged[id]; ok {
			consider(reg)
			continue
		}
		consider(s.registrations[id])
	}
	for id, reg := range staged {
		if _, committed := s.registrations[id]; !committed {
			consider(reg)
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest.Clone(), nil
}

// ListByUser returns a user's registrations, oldest first.
func (s *Store) ListByUser(_ context.Context, userID string) ([]model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var regs []model.Registration
	for _, reg := range s.registrations {
		if reg.UserID == userID {
			regs = append(regs, *reg.Clone())
		}
	}
	sortByRequested(regs)
	return regs, nil
}

// ListByEvent returns an event's registrations, oldest first.
func (s *Store) ListByEvent(_ context.Context, eventID string) ([]model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regs := make([]model.Registration, 0, len(s.byEvent[eventID]))
	for _, id := range s.byEvent[eventID] {
		regs = append(regs, *s.registrations[id].Clone())
	}
	sortByRequested(regs)
	return regs, nil
}

func sortByRequested(regs []model.Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		return regs[i].RequestedAt.Before(regs[j].RequestedAt)
	})
}

// AddUser registers a known user ID for UserExists.
func (s *Store) AddUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

// UserExists reports whether the user was added with AddUser.
func (s *Store) UserExists(_ context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok, nil
}

// EventSaves returns how many committed writes the event has received.
func (s *Store) EventSaves(eventID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[eventID]
}

// tx stages writes for one locked event.
type tx struct {
	store      *Store
	event      *model.Event
	eventDirty bool
	staged     map[string]*model.Registration
	order      []string
}

func (t *tx) Event() *model.Event { return t.event }

func (t *tx) SaveEvent(_ context.Context, event *model.Event) error {
	if event.ID != t.event.ID {
		return fmt.Errorf("save event %s outside lock of %s", event.ID, t.event.ID)
	}
	t.event = event.Clone()
	t.eventDirty = true
	return nil
}

// registrations returns the current view of the locked event's registrations.
func (t *tx) registrations() []*model.Registration {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	ids := t.store.byEvent[t.event.ID]
	out := make([]*model.Registration, 0, len(ids)+len(t.order))
	for _, id := range ids {
		if reg, ok := t.staged[id]; ok {
			out = append(out, reg)
			continue
		}
		out = append(out, t.store.registrations[id])
	}
	for _, id := range t.order {
		if _, committed := t.store.registrations[id]; !committed {
			out = append(out, t.staged[id])
		}
	}
	return out
}

func (t *tx) ActiveRegistration(_ context.Context, userID string) (*model.Registration, error) {
	for _, reg := range t.registrations() {
		if reg.UserID == userID && reg.Status.Active() {
			return reg.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) LatestRegistration(_ context.Context, userID string) (*model.Registration, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.latestLocked(userID, t.event.ID, t.staged)
}

func (t *tx) WaitlistStats(_ context.Context) (int, int, error) {
	count, maxPos := 0, 0
	for _, reg := range t.registrations() {
		if reg.Status != model.StatusWaitlisted {
			continue
		}
		count++
		if reg.WaitlistedPosition != nil && *reg.WaitlistedPosition > maxPos {
			maxPos = *reg.WaitlistedPosition
		}
	}
	return count, maxPos, nil
}

func (t *tx) NextWaitlisted(_ context.Context) (*model.Registration, error) {
	var next *model.Registration
	for _, reg := range t.registrations() {
		if reg.Status != model.StatusWaitlisted {
			continue
		}
		if next == nil || model.WaitlistedBefore(reg, next) {
			next = reg
		}
	}
	if next == nil {
		return nil, store.ErrNotFound
	}
	return next.Clone(), nil
}

func (t *tx) GroupRegistrations(_ context.Context, groupID string) ([]*model.Registration, error) {
	var out []*model.Registration
	for _, reg := range t.registrations() {
		if reg.RegistrationGroupID != nil && *reg.RegistrationGroupID == groupID {
			out = append(out, reg.Clone())
		}
	}
	return out, nil
}

func (t *tx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	if reg.EventID != t.event.ID {
		return fmt.Errorf("insert registration for event %s outside lock of %s", reg.EventID, t.event.ID)
	}
	if reg.Status.Active() {
		if _, err := t.ActiveRegistration(ctx, reg.UserID); err == nil {
			return store.ErrDuplicate
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	t.staged[reg.ID] = reg.Clone()
	t.order = append(t.order, reg.ID)
	return nil
}

func (t *tx) UpdateRegistration(_ context.Context, reg *model.Registration) error {
	if reg.EventID != t.event.ID {
		return fmt.Errorf("update registration for event %s outside lock of %s", reg.EventID, t.event.ID)
	}
	if _, ok := t.staged[reg.ID]; !ok {
		t.store.mu.RLock()
		_, exists := t.store.registrations[reg.ID]
		t.store.mu.RUnlock()
		if !exists {
			return store.ErrNotFound
		}
		t.order = append(t.order, reg.ID)
	}
	t.staged[reg.ID] = reg.Clone()
	return nil
}
