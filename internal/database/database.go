// Package database stores hazard events in PostgreSQL.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"hazard-alerts/internal/events"
)

// DB wraps a database connection and provides hazard-event operations.
// It implements strategy.EventAccessor.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// Schema creates the hazard_events table when it does not exist.
const Schema = `
	CREATE TABLE IF NOT EXISTS hazard_events (
		event_id        TEXT PRIMARY KEY,
		status          TEXT NOT NULL,
		phenomenon      TEXT NOT NULL,
		significance    TEXT NOT NULL,
		subtype         TEXT,
		expiration_time TIMESTAMPTZ,
		end_time        TIMESTAMPTZ,
		attributes      JSONB,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// EnsureSchema applies Schema.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create hazard_events table: %w", err)
	}
	return nil
}

const selectEvents = `
	SELECT event_id, status, phenomenon, significance, subtype,
	       expiration_time, end_time, attributes
	FROM hazard_events
`

// Events returns every known hazard event.
func (db *DB) Events(ctx context.Context) ([]events.HazardEvent, error) {
	rows, err := db.conn.QueryContext(ctx, selectEvents+` ORDER BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hazard events: %w", err)
	}
	defer rows.Close()

	var out []events.HazardEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hazard events: %w", err)
	}
	return out, nil
}

// EventByID returns the hazard event with the given id.
func (db *DB) EventByID(ctx context.Context, eventID string) (*events.HazardEvent, error) {
	row := db.conn.QueryRowContext(ctx, selectEvents+` WHERE event_id = $1`, eventID)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("hazard event not found: %s", eventID)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpsertEvent inserts or replaces a hazard event.
func (db *DB) UpsertEvent(ctx context.Context, e *events.HazardEvent) error {
	attributes, err := marshalAttributes(e.Attributes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO hazard_events (event_id, status, phenomenon, significance, subtype,
		                           expiration_time, end_time, attributes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			status = EXCLUDED.status,
			phenomenon = EXCLUDED.phenomenon,
			significance = EXCLUDED.significance,
			subtype = EXCLUDED.subtype,
			expiration_time = EXCLUDED.expiration_time,
			end_time = EXCLUDED.end_time,
			attributes = EXCLUDED.attributes,
			updated_at = NOW()
	`
	_, err = db.conn.ExecContext(ctx, query,
		e.EventID,
		string(e.Status),
		e.Phenomenon,
		e.Significance,
		nullString(e.Subtype),
		nullTime(e.ExpirationTime),
		nullTime(e.EndTime),
		attributes,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert hazard event %s: %w", e.EventID, err)
	}
	return nil
}

// DeleteEvent removes a hazard event. Deleting an unknown event is not an error.
func (db *DB) DeleteEvent(ctx context.Context, eventID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM hazard_events WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to delete hazard event %s: %w", eventID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*events.HazardEvent, error) {
	var (
		e          events.HazardEvent
		status     string
		subtype    sql.NullString
		expiration sql.NullTime
		end        sql.NullTime
		attributes []byte
	)
	err := s.Scan(&e.EventID, &status, &e.Phenomenon, &e.Significance, &subtype,
		&expiration, &end, &attributes)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan hazard event: %w", err)
	}

	e.Status = events.Status(status)
	e.Subtype = subtype.String
	if expiration.Valid {
		e.ExpirationTime = expiration.Time.UTC()
	}
	if end.Valid {
		e.EndTime = end.Time.UTC()
	}
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes of %s: %w", e.EventID, err)
		}
	}
	return &e, nil
}

// marshalAttributes serializes attributes for JSONB storage; empty maps are NULL.
func marshalAttributes(attributes map[string]string) (sql.NullString, error) {
	if len(attributes) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(attributes)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal attributes: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
