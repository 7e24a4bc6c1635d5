package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// RegisterForEvent requests a seat for userID. The registration comes back
// CONFIRMED if a seat is free and WAITLISTED otherwise.
//
// Eligibility is the caller's concern; this only enforces one active
// registration per user and event.
func (s *EventService) RegisterForEvent(ctx context.Context, userID, eventID string) (*model.Registration, error) {
	userID, eventID = strings.TrimSpace(userID), strings.TrimSpace(eventID)
	if userID == "" || eventID == "" {
		return nil, fmt.Errorf("%w: user id and event id are required", ErrInvalidInput)
	}
	if err := s.checkUser(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.checkNotRegistered(ctx, userID, eventID); err != nil {
		s.countRejection(err)
		return nil, err
	}
	if err := s.checkEvent(ctx, eventID); err != nil {
		s.countRejection(err)
		return nil, err
	}

	var reg *model.Registration
	err := s.withEventLock(ctx, eventID, "register", func(tx store.Tx) error {
		if tx.Event().IsCompleted() {
			return ErrEventCompleted
		}
		if err := ensureNoActive(ctx, tx, userID); err != nil {
			return err
		}

		ledger := newLedger(tx)
		reg = s.newRegistration(userID, eventID)
		if ledger.Admits() {
			s.confirm(reg)
			if err := ledger.Increment(ctx, 1); err != nil {
				return err
			}
		} else {
			position, err := ledger.NextWaitlistPosition(ctx)
			if err != nil {
				return err
			}
			s.waitlist(reg, position)
		}
		return insertRegistration(ctx, tx, reg)
	})
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	s.metrics.Registration(strings.ToLower(string(reg.Status)))
	s.log(ctx).Info("registration created",
		"registration_id", reg.ID, "user_id", userID, "event_id", eventID, "status", reg.Status)
	if reg.Status == model.StatusConfirmed {
		s.dispatch(ctx, []model.Notification{s.notification(reg, model.NotifyRegistrationConfirmation)})
	}
	return reg, nil
}

// CancelRegistration cancels the user's registration for the event. If it
// held a seat, the first waitlisted registrant is promoted before the lock is
// released. Cancelling a cancelled registration returns it unchanged.
func (s *EventService) CancelRegistration(ctx context.Context, userID, eventID string) (*model.Registration, error) {
	userID, eventID = strings.TrimSpace(userID), strings.TrimSpace(eventID)
	if userID == "" || eventID == "" {
		return nil, fmt.Errorf("%w: user id and event id are required", ErrInvalidInput)
	}

	latest, err := s.store.LatestRegistration(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	if latest.Status == model.StatusCancelled {
		return latest, nil
	}

	var (
		out   *model.Registration
		notes []model.Notification
	)
	err = s.withEventLock(ctx, eventID, "cancel", func(tx store.Tx) error {
		current, err := tx.LatestRegistration(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRegistrationNotFound
			}
			return fmt.Errorf("find registration: %w", err)
		}
		// A concurrent cancel won the lock first.
		if current.Status == model.StatusCancelled {
			out = current
			return nil
		}

		freed, err := s.cancelRecord(ctx, tx, current)
		if err != nil {
			return err
		}
		out = current
		notes = append(notes, s.notification(current, model.NotifyCancellation))
		if !freed {
			return nil
		}

		if err := newLedger(tx).Decrement(ctx, 1); err != nil {
			return err
		}
		promoted, err := s.promoteNext(ctx, tx)
		if err != nil {
			return err
		}
		if promoted != nil {
			notes = append(notes, s.notification(promoted, model.NotifyWaitlistPromotion))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(notes) > 0 {
		s.metrics.Cancellation()
		s.log(ctx).Info("registration cancelled",
			"registration_id", out.ID, "user_id", userID, "event_id", eventID)
	}
	s.dispatch(ctx, notes)
	return out, nil
}

func (s *EventService) countRejection(err error) {
	if KindOf(err) == KindConflict {
		s.metrics.Registration("rejected")
	}
}

func (s *EventService) checkNotRegistered(ctx context.Context, userID, eventID string) error {
	latest, err := s.store.LatestRegistration(ctx, userID, eventID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("find registration: %w", err)
	case latest.Status.Active():
		return ErrAlreadyRegistered
	default:
		return nil
	}
}

func ensureNoActive(ctx context.Context, tx store.Tx, userID string) error {
	_, err := tx.ActiveRegistration(ctx, userID)
	switch {
	case err == nil:
		return ErrAlreadyRegistered
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("find active registration: %w", err)
	}
}

func insertRegistration(ctx context.Context, tx store.Tx, reg *model.Registration) error {
	if err := tx.InsertRegistration(ctx, reg); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *EventService) newRegistration(userID, eventID string) *model.Registration {
	return &model.Registration{
		ID:          s.newID(),
		UserID:      userID,
		EventID:     eventID,
		Status:      model.StatusRequested,
		RequestedAt: s.now(),
	}
}

func (s *EventService) confirm(reg *model.Registration) {
	now := s.now()
	reg.Status = model.StatusConfirmed
	reg.ConfirmedAt = &now
	reg.WaitlistedPosition = nil
}

func (s *EventService) waitlist(reg *model.Registration, position int) {
	reg.Status = model.StatusWaitlisted
	reg.WaitlistedPosition = &position
}

// cancelRecord moves reg to CANCELLED and stages the write. It reports whether
// the registration held a seat; the caller adjusts the ledger.
func (s *EventService) cancelRecord(ctx context.Context, tx store.Tx, reg *model.Registration) (bool, error) {
	if reg.Status == model.StatusCancelled {
		return false, nil
	}
	held := reg.Status == model.StatusConfirmed
	now := s.now()
	reg.Status = model.StatusCancelled
	reg.CancelledAt = &now
	reg.WaitlistedPosition = nil
	if err := tx.UpdateRegistration(ctx, reg); err != nil {
		return false, fmt.Errorf("update registration: %w", err)
	}
	return held, nil
}
