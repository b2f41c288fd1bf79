package database

import (
	"context"
	"fmt"
)

// AnonymousIDConstraint is the unique constraint guarding public handles.
const AnonymousIDConstraint = "reports_anonymous_id_key"

// schema is applied in order on every start. Each statement is idempotent.
var schema = []string{
	`DO $$ BEGIN
		CREATE TYPE report_type AS ENUM ('RUBBISH', 'UNSAFE_AREA', 'SUSPICIOUS_ACTIVITY', 'VANDALISM');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE report_severity AS ENUM ('LOW', 'MEDIUM', 'HIGH', 'CRITICAL');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`DO $$ BEGIN
		CREATE TYPE report_status AS ENUM ('SUBMITTED', 'REVIEWING', 'IN_PROGRESS', 'RESOLVED', 'REJECTED');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS reports (
		id             UUID PRIMARY KEY,
		anonymous_id   TEXT NOT NULL CONSTRAINT ` + AnonymousIDConstraint + ` UNIQUE,
		type           report_type NOT NULL,
		severity       report_severity NOT NULL DEFAULT 'MEDIUM',
		latitude       DOUBLE PRECISION NOT NULL,
		longitude      DOUBLE PRECISION NOT NULL,
		location       TEXT NOT NULL,
		description    TEXT,
		media_urls     TEXT[] NOT NULL DEFAULT '{}',
		status         report_status NOT NULL DEFAULT 'SUBMITTED',
		assigned_to    TEXT,
		internal_notes TEXT,
		resolved_at    TIMESTAMPTZ,
		response_time  INTEGER,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reports_status_idx ON reports (status)`,
	`CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS police_users (
		id            UUID PRIMARY KEY,
		badge_id      TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL,
		station       TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS report_activity (
		id            BIGSERIAL PRIMARY KEY,
		report_id     UUID NOT NULL REFERENCES reports (id),
		officer       TEXT NOT NULL,
		from_status   report_status NOT NULL,
		to_status     report_status NOT NULL,
		notes_changed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS report_activity_report_idx ON report_activity (report_id, created_at DESC)`,
}

// EnsureSchema creates any missing types, tables and indexes.
func EnsureSchema(ctx context.Context, db DB) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
