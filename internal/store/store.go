// Package store implements the Durable State Store: a single-file
// embedded transactional store holding open events, input/output links,
// and transcript cursors, keyed by session (spec §4.1). It is the only
// owner of OpenEvent/Link/Cursor rows (spec §3 Ownership).
//
// The higher-level open_event/close_by_link operations described in the
// spec as "calling Policy Client under the hood" are composed in
// internal/mediator from the row-level primitives here plus
// internal/policyclient — this package stays a pure persistence layer,
// mirroring the teacher's separation between its ledger and its policy
// packages.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS open_events (
	event_id      TEXT PRIMARY KEY,
	event_class   TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	hook_name     TEXT NOT NULL,
	input_content TEXT NOT NULL,
	metadata_json TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
	session_id TEXT NOT NULL,
	link_key   TEXT NOT NULL,
	event_id   TEXT NOT NULL,
	PRIMARY KEY (session_id, link_key)
);

CREATE TABLE IF NOT EXISTS transcript_cursors (
	session_id      TEXT NOT NULL,
	transcript_path TEXT NOT NULL,
	last_turn_idx   INTEGER NOT NULL,
	PRIMARY KEY (session_id, transcript_path)
);
`

// Store wraps the embedded database handle. Writes within a process are
// serialized by database/sql's connection pool plus short transactions;
// across processes, SQLite's own transactional file locking provides the
// isolation the spec's concurrency model calls for (spec §5).
type Store struct {
	db *sql.DB
}

// OpenEvent is one row of the open_events table.
type OpenEvent struct {
	EventID      string
	EventClass   string
	SessionID    string
	HookName     string
	InputContent string
	MetadataJSON string
	CreatedAt    time.Time
}

// LinkedEvent pairs an open event with the link key that addresses it.
type LinkedEvent struct {
	LinkKey string
	Event   OpenEvent
}

// Open opens (creating if necessary) the SQLite file at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// A single-file SQLite store under concurrent short-lived processes
	// does best with one connection; serializes writes the way the
	// spec's "each invocation's critical section is short" expects.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertOpenEvent records a newly CREATEd event and its link in a single
// transaction (spec §4.1: "inserts open_event and link in one
// transaction"). Invariant: at most one open event per (session,
// link_key) — enforced by the links table's primary key.
func (s *Store) InsertOpenEvent(evt OpenEvent, linkKey string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO open_events (event_id, event_class, session_id, hook_name, input_content, metadata_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.EventID, evt.EventClass, evt.SessionID, evt.HookName, evt.InputContent, evt.MetadataJSON, evt.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: insert open_event: %w", err)
	}

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO links (session_id, link_key, event_id) VALUES (?, ?, ?)`,
		evt.SessionID, linkKey, evt.EventID,
	)
	if err != nil {
		return fmt.Errorf("store: insert link: %w", err)
	}

	return tx.Commit()
}

// LookupByLink resolves (session, link_key) to its open event, if any.
func (s *Store) LookupByLink(session, linkKey string) (OpenEvent, bool, error) {
	row := s.db.QueryRow(
		`SELECT oe.event_id, oe.event_class, oe.session_id, oe.hook_name, oe.input_content, oe.metadata_json, oe.created_at
		 FROM links l JOIN open_events oe ON oe.event_id = l.event_id
		 WHERE l.session_id = ? AND l.link_key = ?`,
		session, linkKey,
	)
	var evt OpenEvent
	var createdAtUnix int64
	err := row.Scan(&evt.EventID, &evt.EventClass, &evt.SessionID, &evt.HookName, &evt.InputContent, &evt.MetadataJSON, &createdAtUnix)
	if err == sql.ErrNoRows {
		return OpenEvent{}, false, nil
	}
	if err != nil {
		return OpenEvent{}, false, fmt.Errorf("store: lookup link: %w", err)
	}
	evt.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	return evt, true, nil
}

// CloseLink removes the link and its open_event row in one transaction
// (spec §4.1: "deletes link and open_event"). Closing a link that does
// not exist is a no-op, matching the spec's "if link is missing, the
// UPDATE is emitted as a one-shot event without pairing" behavior at the
// caller level.
func (s *Store) CloseLink(session, linkKey, eventID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM links WHERE session_id = ? AND link_key = ?`, session, linkKey); err != nil {
		return fmt.Errorf("store: delete link: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM open_events WHERE event_id = ?`, eventID); err != nil {
		return fmt.Errorf("store: delete open_event: %w", err)
	}
	return tx.Commit()
}

// OpenEventsForSession lists every still-open event for a session, used
// by close_all_for_session (spec §4.1) to force-close remaining opens on
// a block or session end.
func (s *Store) OpenEventsForSession(session string) ([]LinkedEvent, error) {
	rows, err := s.db.Query(
		`SELECT l.link_key, oe.event_id, oe.event_class, oe.session_id, oe.hook_name, oe.input_content, oe.metadata_json, oe.created_at
		 FROM links l JOIN open_events oe ON oe.event_id = l.event_id
		 WHERE l.session_id = ?`,
		session,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list open events: %w", err)
	}
	defer rows.Close()

	var out []LinkedEvent
	for rows.Next() {
		var item LinkedEvent
		var createdAtUnix int64
		if err := rows.Scan(&item.LinkKey, &item.Event.EventID, &item.Event.EventClass, &item.Event.SessionID,
			&item.Event.HookName, &item.Event.InputContent, &item.Event.MetadataJSON, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("store: scan open event: %w", err)
		}
		item.Event.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

// ClearSession deletes every link, open_event and transcript cursor row
// for a session, used on session end once every open event has been
// closed out-of-band via the Policy Client.
func (s *Store) ClearSession(session string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM open_events WHERE session_id = ?`, session); err != nil {
		return fmt.Errorf("store: clear open_events: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE session_id = ?`, session); err != nil {
		return fmt.Errorf("store: clear links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM transcript_cursors WHERE session_id = ?`, session); err != nil {
		return fmt.Errorf("store: clear cursors: %w", err)
	}
	return tx.Commit()
}

// GetCursor returns the last emitted turn index for (session, path), or
// -1 if no cursor row exists yet (spec §3: "initial −1").
func (s *Store) GetCursor(session, path string) (int, error) {
	row := s.db.QueryRow(
		`SELECT last_turn_idx FROM transcript_cursors WHERE session_id = ? AND transcript_path = ?`,
		session, path,
	)
	var idx int
	err := row.Scan(&idx)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return -1, fmt.Errorf("store: get cursor: %w", err)
	}
	return idx, nil
}

// SetCursor advances the cursor for (session, path). Callers must only
// ever pass a value greater than the current cursor — monotonicity is
// the caller's invariant to hold (spec §3, §5).
func (s *Store) SetCursor(session, path string, idx int) error {
	_, err := s.db.Exec(
		`INSERT INTO transcript_cursors (session_id, transcript_path, last_turn_idx) VALUES (?, ?, ?)
		 ON CONFLICT(session_id, transcript_path) DO UPDATE SET last_turn_idx = excluded.last_turn_idx`,
		session, path, idx,
	)
	if err != nil {
		return fmt.Errorf("store: set cursor: %w", err)
	}
	return nil
}

// PruneStale deletes open_events (and their links) older than ttl,
// invoked opportunistically on each invocation (spec §4.1).
func (s *Store) PruneStale(ttl time.Duration) error {
	cutoff := time.Now().Add(-ttl).Unix()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM links WHERE event_id IN (SELECT event_id FROM open_events WHERE created_at < ?)`,
		cutoff,
	); err != nil {
		return fmt.Errorf("store: prune links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM open_events WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("store: prune open_events: %w", err)
	}
	return tx.Commit()
}
