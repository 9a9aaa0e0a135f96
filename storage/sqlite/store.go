// Package sqlite mirrors the audit log into a queryable SQLite database
package sqlite

import (
	"database/sql"
	_ "embed"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/LdDl/linecount-go/alerts"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store keeps events in "events" table. It satisfies alerts.Log.
type Store struct {
	*sql.DB
	logger zerolog.Logger
}

// Option customizes Store
type Option func(*Store)

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(store *Store) {
		store.logger = logger
	}
}

// Open opens (and creates if needed) database at path
func Open(path string, options ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open database '%s'", path)
	}
	// Single writer keeps ":memory:" databases coherent and avoids SQLITE_BUSY on files
	db.SetMaxOpenConns(1)
	if _, err = db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "Can't initialize schema")
	}
	store := &Store{DB: db, logger: zerolog.Nop()}
	for _, option := range options {
		option(store)
	}
	store.logger.Debug().Str("path", path).Msg("Initialized events database schema")
	return store, nil
}

// Append inserts event
func (store *Store) Append(event alerts.Event) error {
	query := `
		INSERT INTO events (event_id, session_id, timestamp_ns, log_type, kind, message, count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := store.Exec(query,
		event.ID.String(),
		event.Session.String(),
		event.Timestamp.UnixNano(),
		event.Kind.LogType(),
		event.Kind.String(),
		event.Message,
		event.Count,
	)
	if err != nil {
		return errors.Wrapf(err, "Can't insert event %s", event.ID)
	}
	return nil
}

// Recent returns up to limit latest events, newest first
func (store *Store) Recent(limit int) ([]alerts.Event, error) {
	query := `
		SELECT event_id, session_id, timestamp_ns, kind, message, count
		FROM events
		ORDER BY timestamp_ns DESC, rowid DESC
		LIMIT ?
	`
	rows, err := store.Query(query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "Can't query recent events")
	}
	defer rows.Close()

	events := make([]alerts.Event, 0, limit)
	for rows.Next() {
		var (
			id, session, kind, message string
			tsNs                       int64
			count                      int
		)
		if err := rows.Scan(&id, &session, &tsNs, &kind, &message, &count); err != nil {
			return nil, errors.Wrap(err, "Can't scan event")
		}
		event := alerts.Event{
			Timestamp: time.Unix(0, tsNs),
			Message:   message,
			Count:     count,
		}
		if event.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "Bad event id '%s'", id)
		}
		if event.Session, err = uuid.Parse(session); err != nil {
			return nil, errors.Wrapf(err, "Bad session id '%s'", session)
		}
		if event.Kind, err = alerts.ParseKind(kind); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, errors.Wrap(rows.Err(), "Can't iterate events")
}

// CountByType returns number of rows per log type (ENTRY, EXIT, ALERT)
func (store *Store) CountByType() (map[string]int, error) {
	rows, err := store.Query(`SELECT log_type, COUNT(*) FROM events GROUP BY log_type`)
	if err != nil {
		return nil, errors.Wrap(err, "Can't count events")
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var logType string
		var n int
		if err := rows.Scan(&logType, &n); err != nil {
			return nil, errors.Wrap(err, "Can't scan count")
		}
		counts[logType] = n
	}
	return counts, errors.Wrap(rows.Err(), "Can't iterate counts")
}
