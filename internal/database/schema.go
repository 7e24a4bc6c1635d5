package database

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id                    TEXT PRIMARY KEY,
		name                  TEXT NOT NULL,
		description           TEXT NOT NULL DEFAULT '',
		max_capacity          INTEGER CHECK (max_capacity > 0),
		current_registrations INTEGER NOT NULL DEFAULT 0 CHECK (current_registrations >= 0),
		status                TEXT NOT NULL DEFAULT 'OPEN',
		created_at            TIMESTAMPTZ NOT NULL,
		CHECK (max_capacity IS NULL OR current_registrations <= max_capacity)
	)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id                    TEXT PRIMARY KEY,
		user_id               TEXT NOT NULL,
		event_id              TEXT NOT NULL REFERENCES events (id),
		status                TEXT NOT NULL,
		requested_at          TIMESTAMPTZ NOT NULL,
		confirmed_at          TIMESTAMPTZ,
		cancelled_at          TIMESTAMPTZ,
		waitlisted_position   INTEGER CHECK (waitlisted_position > 0),
		registration_group_id TEXT,
		primary_user_id       TEXT
	)`,
	// At most one active registration per user and event.
	`CREATE UNIQUE INDEX IF NOT EXISTS registrations_active_user_event
		ON registrations (user_id, event_id)
		WHERE status <> 'CANCELLED'`,
	`CREATE INDEX IF NOT EXISTS registrations_waitlist
		ON registrations (event_id, waitlisted_position, requested_at)
		WHERE status = 'WAITLISTED'`,
	`CREATE INDEX IF NOT EXISTS registrations_group
		ON registrations (registration_group_id)
		WHERE registration_group_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS registrations_user
		ON registrations (user_id, requested_at)`,
}
