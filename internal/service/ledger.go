package service

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// DeriveStatus computes the display status from the seat counters.
// Unlimited events are always OPEN. NEARLY_FULL starts at ceil(80%) of capacity.
func DeriveStatus(current int, maxCapacity *int) model.EventStatus {
	if maxCapacity == nil {
		return model.EventOpen
	}
	capacity := *maxCapacity
	switch {
	case current >= capacity:
		return model.EventFull
	case current >= nearlyFullThreshold(capacity):
		return model.EventNearlyFull
	default:
		return model.EventOpen
	}
}

// nearlyFullThreshold is ceil(0.8 * capacity) in integer arithmetic.
func nearlyFullThreshold(capacity int) int {
	return (4*capacity + 4) / 5
}

// Ledger owns the seat counters of one locked event.
type Ledger struct {
	tx store.Tx
}

func newLedger(tx store.Tx) *Ledger {
	return &Ledger{tx: tx}
}

// ConfirmedCount returns the number of confirmed seats.
func (l *Ledger) ConfirmedCount() int {
	return l.tx.Event().CurrentRegistrations
}

// WaitlistedCount returns the number of waitlisted registrations. It is a
// read; new positions come from NextWaitlistPosition, which survives gaps.
func (l *Ledger) WaitlistedCount(ctx context.Context) (int, error) {
	count, _, err := l.tx.WaitlistStats(ctx)
	return count, err
}

// NextWaitlistPosition returns the rank for a new waitlist entry: one past
// the highest position still waiting.
func (l *Ledger) NextWaitlistPosition(ctx context.Context) (int, error) {
	_, maxPosition, err := l.tx.WaitlistStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("read waitlist: %w", err)
	}
	return maxPosition + 1, nil
}

// Remaining returns the free seats, or -1 when capacity is unlimited.
// An event showing FULL has none, whatever the counter says.
func (l *Ledger) Remaining() int {
	ev := l.tx.Event()
	if ev.Unlimited() {
		return -1
	}
	if ev.Status == model.EventFull {
		return 0
	}
	if left := *ev.MaxCapacity - ev.CurrentRegistrations; left > 0 {
		return left
	}
	return 0
}

// Admits reports whether a single new registrant may be confirmed.
// An event showing FULL never admits, whatever the counter says.
func (l *Ledger) Admits() bool {
	if l.tx.Event().Unlimited() {
		return true
	}
	return l.Remaining() > 0
}

// Increment adds n confirmed seats.
func (l *Ledger) Increment(ctx context.Context, n int) error {
	return l.adjust(ctx, n)
}

// Decrement releases n confirmed seats, never going below zero.
func (l *Ledger) Decrement(ctx context.Context, n int) error {
	return l.adjust(ctx, -n)
}

func (l *Ledger) adjust(ctx context.Context, delta int) error {
	cur := l.tx.Event()
	next := cur.CurrentRegistrations + delta
	if next < 0 {
		next = 0
	}
	if cur.MaxCapacity != nil && next > *cur.MaxCapacity {
		return fmt.Errorf("ledger: %d confirmed would exceed capacity %d of event %s",
			next, *cur.MaxCapacity, cur.ID)
	}

	status := cur.Status
	if status != model.EventCompleted {
		status = DeriveStatus(next, cur.MaxCapacity)
	}
	if next == cur.CurrentRegistrations && status == cur.Status {
		return nil
	}

	ev := cur.Clone()
	ev.CurrentRegistrations = next
	ev.Status = status
	if err := l.tx.SaveEvent(ctx, ev); err != nil {
		return fmt.Errorf("save event counters: %w", err)
	}
	return nil
}
