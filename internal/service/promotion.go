package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// promoteNext fills one vacated seat from the waitlist. It must run under the
// event lock, after the ledger has released the seat. It returns the promoted
// registration, or nil when nobody is waiting, no seat is free or the event
// has completed.
func (s *EventService) promoteNext(ctx context.Context, tx store.Tx) (*model.Registration, error) {
	if tx.Event().IsCompleted() {
		return nil, nil
	}
	ledger := newLedger(tx)
	if ledger.Remaining() == 0 {
		return nil, nil
	}

	next, err := tx.NextWaitlisted(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find next waitlisted: %w", err)
	}

	s.confirm(next)
	if err := tx.UpdateRegistration(ctx, next); err != nil {
		return nil, fmt.Errorf("promote registration: %w", err)
	}
	if err := ledger.Increment(ctx, 1); err != nil {
		return nil, err
	}

	s.metrics.Promotion()
	s.log(ctx).Info("waitlisted registration promoted",
		"registration_id", next.ID, "user_id", next.UserID, "event_id", next.EventID)
	return next, nil
}

// promoteFreed runs promoteNext once per freed seat, stopping early when the
// waitlist runs dry.
func (s *EventService) promoteFreed(ctx context.Context, tx store.Tx, freed int) ([]*model.Registration, error) {
	var promoted []*model.Registration
	for i := 0; i < freed; i++ {
		reg, err := s.promoteNext(ctx, tx)
		if err != nil {
			return nil, err
		}
		if reg == nil {
			break
		}
		promoted = append(promoted, reg)
	}
	return promoted, nil
}
