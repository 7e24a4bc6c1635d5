// Package service implements the registration core: seat accounting, the
// registration lifecycle, waitlist promotion and group admission, all of which
// run under the per-event lock provided by the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/logging"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/metrics"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// MaxEventCapacity is the largest capacity an event may be created with.
const MaxEventCapacity = 100_000

// Notifier receives registration notifications after the change commits.
// Errors are logged and never fail the operation that produced them.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// UserDirectory answers whether a user exists.
type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// EventService orchestrates registration operations.
type EventService struct {
	store    store.Store
	users    UserDirectory
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an EventService.
type Option func(*EventService)

// WithUserDirectory enables user existence checks before registration.
func WithUserDirectory(users UserDirectory) Option {
	return func(s *EventService) { s.users = users }
}

// WithNotifier sets the notification sink.
func WithNotifier(n Notifier) Option {
	return func(s *EventService) { s.notifier = n }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *EventService) { s.metrics = m }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(s *EventService) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *EventService) { s.now = now }
}

// WithIDGenerator overrides registration, group and event ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *EventService) { s.newID = gen }
}

// NewEventService constructs an EventService backed by st.
func NewEventService(st store.Store, opts ...Option) *EventService {
	s := &EventService{
		store:  st,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EventService) log(ctx context.Context) *slog.Logger {
	if l := logging.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// CreateEvent validates the request and stores a new event.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrInvalidInput)
	}
	if req.MaxCapacity != nil {
		if *req.MaxCapacity <= 0 {
			return nil, fmt.Errorf("%w: capacity must be a positive integer", ErrInvalidInput)
		}
		if *req.MaxCapacity > MaxEventCapacity {
			return nil, fmt.Errorf("%w: capacity cannot exceed 100,000", ErrInvalidInput)
		}
	}

	event := &model.Event{
		ID:          s.newID(),
		Name:        req.Name,
		Description: req.Description,
		MaxCapacity: req.MaxCapacity,
		Status:      DeriveStatus(0, req.MaxCapacity),
		CreatedAt:   s.now(),
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return event, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// CompleteEvent marks an event as ended. Completing a completed event is a no-op.
func (s *EventService) CompleteEvent(ctx context.Context, id string) (*model.Event, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}
	var out *model.Event
	err := s.withEventLock(ctx, id, "complete", func(tx store.Tx) error {
		ev := tx.Event()
		if ev.IsCompleted() {
			out = ev.Clone()
			return nil
		}
		next := ev.Clone()
		next.Status = model.EventCompleted
		if err := tx.SaveEvent(ctx, next); err != nil {
			return fmt.Errorf("save event: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log(ctx).Info("event completed", "event_id", id)
	return out, nil
}

// GetUserRegistrations returns every registration of a user, oldest first.
func (s *EventService) GetUserRegistrations(ctx context.Context, userID string) ([]model.Registration, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	regs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}
	return regs, nil
}

// GetRegistrationByID returns a single registration.
func (s *EventService) GetRegistrationByID(ctx context.Context, id string) (*model.Registration, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: registration id is required", ErrInvalidInput)
	}
	reg, err := s.store.GetRegistration(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// ListEventRegistrations returns all registrations for an event.
func (s *EventService) ListEventRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	regs, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list event registrations: %w", err)
	}
	return regs, nil
}

// withEventLock runs fn under the event lock and translates lock-level store
// errors into service errors. Errors returned by fn pass through unchanged.
func (s *EventService) withEventLock(ctx context.Context, eventID, op string, fn func(tx store.Tx) error) error {
	start := s.now()
	var (
		entered bool
		fnErr   error
	)
	err := s.store.WithEventLock(ctx, eventID, func(tx store.Tx) error {
		entered = true
		s.metrics.ObserveLockWait(op, s.now().Sub(start))
		fnErr = fn(tx)
		return fnErr
	})
	switch {
	case err == nil:
		return nil
	case fnErr != nil:
		return fnErr
	case !entered && errors.Is(err, store.ErrNotFound):
		return ErrEventNotFound
	case errors.Is(err, store.ErrLockTimeout):
		s.metrics.LockContention(op)
		s.log(ctx).Warn("event lock contention", "event_id", eventID, "op", op)
		return fmt.Errorf("%s: %w", op, ErrContention)
	case errors.Is(err, store.ErrDuplicate):
		return ErrAlreadyRegistered
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// dispatch hands notifications to the sink. It runs after commit, outside the lock.
func (s *EventService) dispatch(ctx context.Context, notes []model.Notification) {
	if s.notifier == nil {
		return
	}
	for _, n := range notes {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.metrics.NotificationFailed(string(n.Kind))
			s.log(ctx).Error("notification failed",
				"user_id", n.UserID, "event_id", n.EventID, "kind", n.Kind, "error", err)
		}
	}
}

func (s *EventService) checkUser(ctx context.Context, userID string) error {
	if s.users == nil {
		return nil
	}
	ok, err := s.users.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return nil
}

// checkEvent rejects unknown and completed events before taking the lock.
func (s *EventService) checkEvent(ctx context.Context, eventID string) error {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrEventNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if ev.IsCompleted() {
		return ErrEventCompleted
	}
	return nil
}

func (s *EventService) notification(reg *model.Registration, kind model.NotificationKind) model.Notification {
	return model.Notification{
		UserID:         reg.UserID,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		Kind:           kind,
		At:             s.now(),
	}
}
