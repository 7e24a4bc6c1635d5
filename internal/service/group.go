package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// RegisterGroup admits a primary user and their family members as one unit.
// Either every member is confirmed, or nothing is written and
// ErrInsufficientCapacity is returned. Group members never join the waitlist.
//
// The returned slice starts with the primary user's registration.
func (s *EventService) RegisterGroup(ctx context.Context, primaryUserID, eventID string, memberUserIDs []string) ([]*model.Registration, error) {
	primaryUserID, eventID = strings.TrimSpace(primaryUserID), strings.TrimSpace(eventID)
	if primaryUserID == "" || eventID == "" {
		return nil, fmt.Errorf("%w: primary user id and event id are required", ErrInvalidInput)
	}
	userIDs, err := groupUserIDs(primaryUserID, memberUserIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		if err := s.checkUser(ctx, id); err != nil {
			return nil, err
		}
		if err := s.checkNotRegistered(ctx, id, eventID); err != nil {
			s.countRejection(err)
			return nil, err
		}
	}
	if err := s.checkEvent(ctx, eventID); err != nil {
		s.countRejection(err)
		return nil, err
	}

	var regs []*model.Registration
	err = s.withEventLock(ctx, eventID, "register_group", func(tx store.Tx) error {
		ev := tx.Event()
		if ev.IsCompleted() {
			return ErrEventCompleted
		}
		for _, id := range userIDs {
			if err := ensureNoActive(ctx, tx, id); err != nil {
				return err
			}
		}

		ledger := newLedger(tx)
		if !ev.Unlimited() {
			if remaining := ledger.Remaining(); remaining < len(userIDs) {
				return fmt.Errorf("%w: %d requested, %d remaining", ErrInsufficientCapacity, len(userIDs), remaining)
			}
		}

		groupID := s.newID()
		regs = make([]*model.Registration, 0, len(userIDs))
		for _, id := range userIDs {
			reg := s.newRegistration(id, eventID)
			g, p := groupID, primaryUserID
			reg.RegistrationGroupID = &g
			reg.PrimaryUserID = &p
			s.confirm(reg)
			if err := insertRegistration(ctx, tx, reg); err != nil {
				return err
			}
			regs = append(regs, reg)
		}
		return ledger.Increment(ctx, len(regs))
	})
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	s.metrics.GroupRegistration(len(regs))
	s.log(ctx).Info("group registered",
		"group_id", *regs[0].RegistrationGroupID, "primary_user_id", primaryUserID,
		"event_id", eventID, "members", len(regs))

	notes := make([]model.Notification, 0, len(regs))
	for _, reg := range regs {
		notes = append(notes, s.notification(reg, model.NotifyRegistrationConfirmation))
	}
	s.dispatch(ctx, notes)
	return regs, nil
}

// CancelGroup cancels every active registration of a group under one lock,
// then promotes one waitlisted registrant per freed seat, in position order.
// Cancelling an already-cancelled group returns its records unchanged.
func (s *EventService) CancelGroup(ctx context.Context, eventID, groupID string) ([]*model.Registration, error) {
	eventID, groupID = strings.TrimSpace(eventID), strings.TrimSpace(groupID)
	if eventID == "" || groupID == "" {
		return nil, fmt.Errorf("%w: event id and group id are required", ErrInvalidInput)
	}

	var (
		regs  []*model.Registration
		notes []model.Notification
	)
	err := s.withEventLock(ctx, eventID, "cancel_group", func(tx store.Tx) error {
		var err error
		regs, err = tx.GroupRegistrations(ctx, groupID)
		if err != nil {
			return fmt.Errorf("load group: %w", err)
		}
		if len(regs) == 0 {
			return ErrRegistrationNotFound
		}

		freed := 0
		for _, reg := range regs {
			if !reg.Status.Active() {
				continue
			}
			held, err := s.cancelRecord(ctx, tx, reg)
			if err != nil {
				return err
			}
			if held {
				freed++
			}
			notes = append(notes, s.notification(reg, model.NotifyCancellation))
		}
		if freed == 0 {
			return nil
		}

		if err := newLedger(tx).Decrement(ctx, freed); err != nil {
			return err
		}
		promoted, err := s.promoteFreed(ctx, tx, freed)
		if err != nil {
			return err
		}
		for _, p := range promoted {
			notes = append(notes, s.notification(p, model.NotifyWaitlistPromotion))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(notes) > 0 {
		s.metrics.Cancellation()
		s.log(ctx).Info("group cancelled", "group_id", groupID, "event_id", eventID)
	}
	s.dispatch(ctx, notes)
	return regs, nil
}

// groupUserIDs returns the primary followed by the members, rejecting blanks
// and duplicates.
func groupUserIDs(primaryUserID string, members []string) ([]string, error) {
	ids := make([]string, 0, len(members)+1)
	seen := map[string]struct{}{primaryUserID: {}}
	ids = append(ids, primaryUserID)
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" {
			return nil, fmt.Errorf("%w: member user id is empty", ErrInvalidInput)
		}
		if _, dup := seen[m]; dup {
			return nil, fmt.Errorf("%w: user %s listed twice in group", ErrInvalidInput, m)
		}
		seen[m] = struct{}{}
		ids = append(ids, m)
	}
	return ids, nil
}
