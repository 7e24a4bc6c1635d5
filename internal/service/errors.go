package service

import (
	"errors"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// Not-found and validation errors. No state is mutated when these are returned.
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidInput         = errors.New("invalid input")
)

// Business-rule rejections.
var (
	ErrAlreadyRegistered    = errors.New("user already registered for this event")
	ErrEventCompleted       = errors.New("event has already completed")
	ErrInsufficientCapacity = errors.New("not enough seats remaining for the whole group")
)

// ErrContention is returned when the event lock could not be acquired in
// time. It is the only error worth retrying.
var ErrContention = errors.New("event is busy, retry later")

// Kind classifies errors returned by EventService.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindContention
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindContention:
		return "contention"
	default:
		return "internal"
	}
}

// KindOf reports the kind of err. Anything unrecognised, including store
// failures, is KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrEventNotFound),
		errors.Is(err, ErrRegistrationNotFound),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrInvalidInput):
		return KindValidation
	case errors.Is(err, ErrAlreadyRegistered),
		errors.Is(err, ErrEventCompleted),
		errors.Is(err, ErrInsufficientCapacity):
		return KindConflict
	case errors.Is(err, ErrContention), errors.Is(err, store.ErrLockTimeout):
		return KindContention
	default:
		return KindInternal
	}
}

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindContention
}
