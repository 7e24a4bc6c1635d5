// Package store defines the persistence contract of the registration core,
// including the per-event lock every capacity mutation runs under.
package store

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write would create a second active
// registration for the same user and event.
var ErrDuplicate = errors.New("active registration already exists")

// ErrLockTimeout is returned when the event lock could not be acquired
// within the configured wait. Callers may retry.
var ErrLockTimeout = errors.New("event lock wait timed out")

// Store is implemented by every backend the registration core can run on.
type Store interface {
	// WithEventLock runs fn while holding an exclusive lock on eventID.
	// Writes staged through tx are committed only if fn returns nil.
	// Returns ErrNotFound if the event does not exist and ErrLockTimeout if
	// the lock could not be acquired in time. It never retries.
	WithEventLock(ctx context.Context, eventID string, fn func(tx Tx) error) error

	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)

	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	// LatestRegistration returns the most recently requested registration
	// for the pair, whatever its status.
	LatestRegistration(ctx context.Context, userID, eventID string) (*model.Registration, error)
	ListByUser(ctx context.Context, userID string) ([]model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
}

// Tx is the view of one event available while its lock is held.
type Tx interface {
	// Event returns the locked snapshot. Mutations become visible to other
	// callers only after SaveEvent and commit.
	Event() *model.Event
	SaveEvent(ctx context.Context, event *model.Event) error

	ActiveRegistration(ctx context.Context, userID string) (*model.Registration, error)
	LatestRegistration(ctx context.Context, userID string) (*model.Registration, error)
	// WaitlistStats returns the number of waitlisted registrations and the
	// highest position among them (0 when the waitlist is empty).
	WaitlistStats(ctx context.Context) (count, maxPosition int, err error)
	// NextWaitlisted returns the waitlisted registration with the smallest
	// position, earliest request first, or ErrNotFound.
	NextWaitlisted(ctx context.Context) (*model.Registration, error)
	GroupRegistrations(ctx context.Context, groupID string) ([]*model.Registration, error)

	InsertRegistration(ctx context.Context, reg *model.Registration) error
	UpdateRegistration(ctx context.Context, reg *model.Registration) error
}
