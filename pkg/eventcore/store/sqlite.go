package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/dreamsprouts/eventcore/pkg/eventcore/event"
)

// SQLiteStore persists events to SQLite. It mirrors the reference
// relational shape: a unique event id, type/version columns, the three
// source fields, the payload and metadata/correlation as JSON blobs,
// and a store-assigned creation timestamp, indexed by type and by
// creation time descending for "most recent N" queries.
//
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore creates a new SQLite event store.
// The path should be a file path (e.g., "./events.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			event_version TEXT NOT NULL,
			source_platform TEXT NOT NULL,
			source_platform_id TEXT,
			source_connector TEXT NOT NULL,
			payload TEXT NOT NULL,
			metadata TEXT,
			correlation TEXT,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events (event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_events_source ON events (source_platform, source_connector)`,
	}
	for _, stmt := range indexes {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create index: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Append implements Store. Re-appending an id already present leaves the
// existing row untouched.
func (s *SQLiteStore) Append(ctx context.Context, evt *event.Event) error {
	if err := event.Validate(evt); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var metadata, correlation any
	if evt.Metadata != nil {
		b, err := json.Marshal(evt.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(b)
	}
	if evt.Correlation != nil {
		b, err := json.Marshal(evt.Correlation)
		if err != nil {
			return fmt.Errorf("marshal correlation: %w", err)
		}
		correlation = string(b)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_id, event_type, event_version, source_platform,
			source_platform_id, source_connector, payload, metadata,
			correlation, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, evt.ID, evt.Type, evt.Version, evt.Source.Platform,
		evt.Source.PlatformID, evt.Source.Connector, string(payload),
		metadata, correlation, time.Now().UTC().Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Query implements Store. Results are ordered oldest first by creation
// time, with insertion order breaking ties.
func (s *SQLiteStore) Query(ctx context.Context, f Filter) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query, args := buildQuery(f)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Recent returns the n most recently stored events, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]*event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+`
		FROM events ORDER BY created_at DESC, id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Prune deletes events stored longer ago than the retention period.
// Returns the number of rows removed.
func (s *SQLiteStore) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

const selectColumns = `
	SELECT event_id, event_type, event_version, source_platform,
	       source_platform_id, source_connector, payload, metadata,
	       correlation, created_at
`

func buildQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)

	if len(f.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Types)), ",")
		where = append(where, "event_type IN ("+placeholders+")")
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if f.Platform != "" {
		where = append(where, "source_platform = ?")
		args = append(args, f.Platform)
	}
	if f.Connector != "" {
		where = append(where, "source_connector = ?")
		args = append(args, f.Connector)
	}

	query := selectColumns + " FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return query, args
}

func scanEvents(rows *sql.Rows) ([]*event.Event, error) {
	var events []*event.Event
	for rows.Next() {
		var (
			evt         event.Event
			payload     string
			metadata    sql.NullString
			correlation sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&evt.ID, &evt.Type, &evt.Version,
			&evt.Source.Platform, &evt.Source.PlatformID, &evt.Source.Connector,
			&payload, &metadata, &correlation, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for event %s: %w", evt.ID, err)
		}
		if metadata.Valid {
			var m event.Metadata
			if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for event %s: %w", evt.ID, err)
			}
			evt.Metadata = &m
		}
		if correlation.Valid {
			var c event.Correlation
			if err := json.Unmarshal([]byte(correlation.String), &c); err != nil {
				return nil, fmt.Errorf("unmarshal correlation for event %s: %w", evt.ID, err)
			}
			evt.Correlation = &c
		}
		evt.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)

		events = append(events, &evt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
