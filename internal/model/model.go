// Package model defines the core domain types for the event registration system.
package model

import "time"

// EventStatus is the display status of an event, derived from its seat counters.
type EventStatus string

const (
	EventOpen       EventStatus = "OPEN"
	EventNearlyFull EventStatus = "NEARLY_FULL"
	EventFull       EventStatus = "FULL"
	// EventCompleted is set by the event lifecycle and overrides the derived value.
	EventCompleted EventStatus = "COMPLETED"
)

// Event is the capacity view of an event.
type Event struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	Description          string      `json:"description"`
	MaxCapacity          *int        `json:"max_capacity"`
	CurrentRegistrations int         `json:"current_registrations"`
	Status               EventStatus `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
}

// Unlimited reports whether the event has no capacity limit.
func (e *Event) Unlimited() bool {
	return e.MaxCapacity == nil
}

// IsCompleted reports whether the event has ended.
func (e *Event) IsCompleted() bool {
	return e.Status == EventCompleted
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	c := *e
	if e.MaxCapacity != nil {
		v := *e.MaxCapacity
		c.MaxCapacity = &v
	}
	return &c
}

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	StatusRequested  RegistrationStatus = "REQUESTED"
	StatusConfirmed  RegistrationStatus = "CONFIRMED"
	StatusWaitlisted RegistrationStatus = "WAITLISTED"
	StatusCancelled  RegistrationStatus = "CANCELLED"
)

// Active reports whether a registration in this state holds or awaits a seat.
func (s RegistrationStatus) Active() bool {
	return s == StatusRequested || s == StatusConfirmed || s == StatusWaitlisted
}

// Registration represents a user's registration for an event.
type Registration struct {
	ID                  string             `json:"id"`
	UserID              string             `json:"user_id"`
	EventID             string             `json:"event_id"`
	Status              RegistrationStatus `json:"status"`
	RequestedAt         time.Time          `json:"requested_at"`
	ConfirmedAt         *time.Time         `json:"confirmed_at,omitempty"`
	CancelledAt         *time.Time         `json:"cancelled_at,omitempty"`
	WaitlistedPosition  *int               `json:"waitlisted_position,omitempty"`
	RegistrationGroupID *string            `json:"registration_group_id,omitempty"`
	PrimaryUserID       *string            `json:"primary_user_id,omitempty"`
}

// Clone returns a deep copy of the registration.
func (r *Registration) Clone() *Registration {
	c := *r
	c.ConfirmedAt = cloneTime(r.ConfirmedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	if r.WaitlistedPosition != nil {
		v := *r.WaitlistedPosition
		c.WaitlistedPosition = &v
	}
	if r.RegistrationGroupID != nil {
		v := *r.RegistrationGroupID
		c.RegistrationGroupID = &v
	}
	if r.PrimaryUserID != nil {
		v := *r.PrimaryUserID
		c.PrimaryUserID = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// WaitlistedBefore orders waitlisted registrations: smallest position first,
// earliest request breaking ties.
func WaitlistedBefore(a, b *Registration) bool {
	pa, pb := positionOf(a), positionOf(b)
	if pa != pb {
		return pa < pb
	}
	return a.RequestedAt.Before(b.RequestedAt)
}

func positionOf(r *Registration) int {
	if r.WaitlistedPosition == nil {
		return int(^uint(0) >> 1)
	}
	return *r.WaitlistedPosition
}

// NotificationKind identifies the message a registrant should receive.
type NotificationKind string

const (
	NotifyRegistrationConfirmation NotificationKind = "REGISTRATION_CONFIRMATION"
	NotifyWaitlistPromotion        NotificationKind = "WAITLIST_PROMOTION"
	NotifyCancellation             NotificationKind = "CANCELLATION"
)

// Notification is handed to the notification sink after a change commits.
type Notification struct {
	UserID         string           `json:"user_id"`
	EventID        string           `json:"event_id"`
	RegistrationID string           `json:"registration_id"`
	Kind           NotificationKind `json:"kind"`
	At             time.Time        `json:"at"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxCapacity *int   `json:"max_capacity"`
}

// RegisterRequest is the payload for registering for an event.
type RegisterRequest struct {
	UserID string `json:"user_id"`
}

// CancelRequest is the payload for cancelling a registration.
type CancelRequest struct {
	UserID string `json:"user_id"`
}

// GroupRegisterRequest is the payload for registering a primary user with family members.
type GroupRegisterRequest struct {
	PrimaryUserID string   `json:"primary_user_id"`
	MemberUserIDs []string `json:"member_user_ids"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
