package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id          TEXT PRIMARY KEY,
	mode        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	utterance   TEXT,
	tag         TEXT,
	confidence  REAL,
	response    TEXT,
	delegated   INTEGER NOT NULL DEFAULT 0,
	success     INTEGER NOT NULL,
	error       TEXT,
	capture_ms  INTEGER,
	classify_ms INTEGER,
	handle_ms   INTEGER,
	speak_ms    INTEGER,
	total_ms    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_turns_started_at ON turns(started_at);
`

// startedAtLayout is fixed-width (nanoseconds are never trimmed) so the
// lexicographic ORDER BY on the text column matches time order.
const startedAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists turn records to a sqlite database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the
// schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps modernc's file locking happy.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Store inserts one turn record.
func (s *SQLiteStore) Store(rec Record) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO turns
		 (id, mode, started_at, utterance, tag, confidence, response, delegated, success, error,
		  capture_ms, classify_ms, handle_ms, speak_ms, total_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Mode, rec.StartedAt.UTC().Format(startedAtLayout),
		rec.Utterance, rec.Tag, rec.Confidence, rec.Response,
		boolToInt(rec.Delegated), boolToInt(rec.Success), rec.Error,
		rec.CaptureMs, rec.ClassifyMs, rec.HandleMs, rec.SpeakMs, rec.TotalMs,
	)
	if err != nil {
		return fmt.Errorf("store turn %s: %w", rec.ID, err)
	}
	return nil
}

// Recent loads up to n most recent records, oldest first.
func (s *SQLiteStore) Recent(n int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT id, mode, started_at, utterance, tag, confidence, response, delegated, success, error,
		        capture_ms, classify_ms, handle_ms, speak_ms, total_ms
		 FROM turns ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var startedAt string
		var delegated, success int
		if err := rows.Scan(
			&rec.ID, &rec.Mode, &startedAt, &rec.Utterance, &rec.Tag, &rec.Confidence,
			&rec.Response, &delegated, &success, &rec.Error,
			&rec.CaptureMs, &rec.ClassifyMs, &rec.HandleMs, &rec.SpeakMs, &rec.TotalMs,
		); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		rec.StartedAt = rec.StartedAt.UTC()
		rec.Delegated = delegated != 0
		rec.Success = success != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into oldest-first to match Log.Recent.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
