// Package repository implements store.Store on PostgreSQL.
// It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

// SQLSTATE codes this package translates.
const (
	codeLockNotAvailable = "55P03"
	codeUniqueViolation  = "23505"
)

// activeRegistrationIndex enforces one active registration per user and event.
const activeRegistrationIndex = "registrations_active_user_event"

// Store is the PostgreSQL-backed store.
type Store struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewStore constructs a Store. lockTimeout bounds the wait for an event row lock.
func NewStore(db *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

var _ store.Store = (*Store)(nil)

// WithEventLock runs fn inside a transaction holding the event row lock.
//
// Two concurrent transactions that read the event counters and then write
// them back would both see the last free seat and overbook. SELECT … FOR
// UPDATE takes a row-level exclusive lock on the event: any other transaction
// asking for the same lock blocks until this one commits or rolls back, so
// the read-then-write of the counters is serialised per event while other
// events proceed in parallel.
//
// The wait is bounded by lock_timeout, scoped to this transaction. Postgres
// reports an expired wait as lock_not_available, which becomes
// store.ErrLockTimeout.
func (s *Store) WithEventLock(ctx context.Context, eventID string, fn func(tx store.Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`,
		fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	event, err := scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE id = $1
		 FOR UPDATE`,
		eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return translate(fmt.Errorf("lock event row: %w", err))
	}

	if err = fn(&eventTx{tx: tx, event: event}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return translate(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// translate maps the Postgres errors the core branches on to store errors.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == codeLockNotAvailable:
		return fmt.Errorf("%w: %s", store.ErrLockTimeout, pgErr.Message)
	case pgErr.Code == codeUniqueViolation && pgErr.ConstraintName == activeRegistrationIndex:
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.Message)
	default:
		return err
	}
}

// UserExists reports whether userID is present in the users table.
func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// eventTx is the store.Tx for one locked event row.
type eventTx struct {
	tx    pgx.Tx
	event *model.Event
}

func (t *eventTx) Event() *model.Event { return t.event }

func (t *eventTx) SaveEvent(ctx context.Context, event *model.Event) error {
	if event.ID != t.event.ID {
		return fmt.Errorf("save event %s outside lock of %s", event.ID, t.event.ID)
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE events SET current_registrations = $2, status = $3 WHERE id = $1`,
		event.ID, event.CurrentRegistrations, string(event.Status),
	)
	if err != nil {
		return translate(fmt.Errorf("update event counters: %w", err))
	}
	t.event = event.Clone()
	return nil
}

func (t *eventTx) ActiveRegistration(ctx context.Context, userID string) (*model.Registration, error) {
	return t.one(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND user_id = $2 AND status <> 'CANCELLED'
		 LIMIT 1`,
		t.event.ID, userID,
	)
}

func (t *eventTx) LatestRegistration(ctx context.Context, userID string) (*model.Registration, error) {
	return t.one(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND user_id = $2
		 ORDER BY requested_at DESC
		 LIMIT 1`,
		t.event.ID, userID,
	)
}

func (t *eventTx) WaitlistStats(ctx context.Context) (int, int, error) {
	var count, maxPosition int
	err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(MAX(waitlisted_position), 0)
		 FROM registrations
		 WHERE event_id = $1 AND status = 'WAITLISTED'`,
		t.event.ID,
	).Scan(&count, &maxPosition)
	if err != nil {
		return 0, 0, fmt.Errorf("waitlist stats: %w", err)
	}
	return count, maxPosition, nil
}

func (t *eventTx) NextWaitlisted(ctx context.Context) (*model.Registration, error) {
	return t.one(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND status = 'WAITLISTED'
		 ORDER BY waitlisted_position ASC, requested_at ASC
		 LIMIT 1`,
		t.event.ID,
	)
}

func (t *eventTx) GroupRegistrations(ctx context.Context, groupID string) ([]*model.Registration, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND registration_group_id = $2
		 ORDER BY requested_at ASC, (user_id = primary_user_id) DESC, id ASC`,
		t.event.ID, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list group registrations: %w", err)
	}
	regs, err := collectRegistrations(rows)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Registration, len(regs))
	for i := range regs {
		out[i] = &regs[i]
	}
	return out, nil
}

func (t *eventTx) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		reg.ID, reg.UserID, reg.EventID, string(reg.Status), reg.RequestedAt,
		reg.ConfirmedAt, reg.CancelledAt, reg.WaitlistedPosition,
		reg.RegistrationGroupID, reg.PrimaryUserID,
	)
	if err != nil {
		return translate(fmt.Errorf("insert registration: %w", err))
	}
	return nil
}

// UpdateRegistration writes the mutable lifecycle columns. requested_at and
// the ownership columns never change after insert.
func (t *eventTx) UpdateRegistration(ctx context.Context, reg *model.Registration) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE registrations
		 SET status = $3, confirmed_at = $4, cancelled_at = $5, waitlisted_position = $6
		 WHERE id = $1 AND event_id = $2`,
		reg.ID, reg.EventID, string(reg.Status), reg.ConfirmedAt, reg.CancelledAt, reg.WaitlistedPosition,
	)
	if err != nil {
		return translate(fmt.Errorf("update registration: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *eventTx) one(ctx context.Context, query string, args ...any) (*model.Registration, error) {
	reg, err := scanRegistration(t.tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}
