package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-reg-waitlist/internal/store"
)

const eventColumns = `id, name, description, max_capacity, current_registrations, status, created_at`

const registrationColumns = `id, user_id, event_id, status, requested_at, confirmed_at, cancelled_at,
	waitlisted_position, registration_group_id, primary_user_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*model.Event, error) {
	var (
		e      model.Event
		status string
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.MaxCapacity,
		&e.CurrentRegistrations, &status, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Status = model.EventStatus(status)
	return &e, nil
}

func scanRegistration(row scanner) (*model.Registration, error) {
	var (
		r      model.Registration
		status string
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.EventID, &status, &r.RequestedAt,
		&r.ConfirmedAt, &r.CancelledAt, &r.WaitlistedPosition,
		&r.RegistrationGroupID, &r.PrimaryUserID); err != nil {
		return nil, err
	}
	r.Status = model.RegistrationStatus(status)
	return &r, nil
}

func collectRegistrations(rows pgx.Rows) ([]model.Registration, error) {
	defer rows.Close()
	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// CreateEvent inserts a new event.
func (s *Store) CreateEvent(ctx context.Context, event *model.Event) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.Name, event.Description, event.MaxCapacity,
		event.CurrentRegistrations, string(event.Status), event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns all events ordered by creation time descending.
func (s *Store) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// GetEvent returns a single event or store.ErrNotFound.
func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// GetRegistration returns a single registration or store.ErrNotFound.
func (s *Store) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	reg, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// LatestRegistration returns the user's most recent registration for the event.
func (s *Store) LatestRegistration(ctx context.Context, userID, eventID string) (*model.Registration, error) {
	reg, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE user_id = $1 AND event_id = $2
		 ORDER BY requested_at DESC
		 LIMIT 1`,
		userID, eventID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get latest registration: %w", err)
	}
	return reg, nil
}

// ListByUser returns all registrations of a user, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE user_id = $1
		 ORDER BY requested_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list user registrations: %w", err)
	}
	return collectRegistrations(rows)
}

// ListByEvent returns all registrations for a given event, oldest first.
func (s *Store) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1
		 ORDER BY requested_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return collectRegistrations(rows)
}
