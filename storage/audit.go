package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Turn is the audit row for one speaker turn
type Turn struct {
	ID         int64
	SessionID  string
	Step       int
	Speaker    string
	Receiver   string
	Prompt     string
	Response   string
	Frames     int
	Reason     string
	Path       string
	Stale      bool
	Fallback   bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// ReasonCount is how often a stop reason occurred
type ReasonCount struct {
	Reason string
	Count  int
}

type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(dataDir string) (*AuditStore, error) {
	dbPath := filepath.Join(dataDir, "council.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &AuditStore{db: db}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (as *AuditStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		frames INTEGER NOT NULL,
		reason TEXT NOT NULL,
		stale INTEGER NOT NULL DEFAULT 0,
		fallback INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_speaker ON turns(speaker);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);
	`

	if _, err := as.db.Exec(schema); err != nil {
		return err
	}

	if err := as.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	return nil
}

// migrateSchema adds columns introduced after the first release
func (as *AuditStore) migrateSchema() error {
	for _, column := range []string{"receiver", "path"} {
		exists, err := as.columnExists("turns", column)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", column, err)
		}
		if exists {
			continue
		}
		stmt := fmt.Sprintf(`ALTER TABLE turns ADD COLUMN %s TEXT NOT NULL DEFAULT ''`, column)
		if _, err := as.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to add %s column: %w", column, err)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (as *AuditStore) columnExists(tableName, columnName string) (bool, error) {
	rows, err := as.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var dataType string
		var notNull int
		var defaultValue interface{}
		var pk int

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}

	return false, rows.Err()
}

// RecordTurn inserts t and returns its row id
func (as *AuditStore) RecordTurn(t Turn) (int64, error) {
	query := `
	INSERT INTO turns (session_id, step, speaker, receiver, prompt, response, frames, reason, path, stale, fallback, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := as.db.Exec(query,
		t.SessionID,
		t.Step,
		t.Speaker,
		t.Receiver,
		t.Prompt,
		t.Response,
		t.Frames,
		t.Reason,
		t.Path,
		t.Stale,
		t.Fallback,
		t.StartedAt,
		t.FinishedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record turn: %w", err)
	}

	return result.LastInsertId()
}

// TurnsBySpeaker returns speaker's turns, oldest first. limit <= 0 means all.
func (as *AuditStore) TurnsBySpeaker(speaker string, limit int) ([]Turn, error) {
	query := `
	SELECT id, session_id, step, speaker, receiver, prompt, response, frames, reason, path, stale, fallback, started_at, finished_at
	FROM turns
	WHERE speaker = ? COLLATE NOCASE
	ORDER BY id ASC
	`
	args := []interface{}{speaker}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := as.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		err := rows.Scan(
			&t.ID,
			&t.SessionID,
			&t.Step,
			&t.Speaker,
			&t.Receiver,
			&t.Prompt,
			&t.Response,
			&t.Frames,
			&t.Reason,
			&t.Path,
			&t.Stale,
			&t.Fallback,
			&t.StartedAt,
			&t.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, t)
	}

	return turns, rows.Err()
}

// ReasonCounts tallies stop reasons, most frequent first
func (as *AuditStore) ReasonCounts() ([]ReasonCount, error) {
	rows, err := as.db.Query(`
	SELECT reason, COUNT(*) AS n
	FROM turns
	GROUP BY reason
	ORDER BY n DESC, reason ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ReasonCount
	for rows.Next() {
		var rc ReasonCount
		if err := rows.Scan(&rc.Reason, &rc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, rc)
	}

	return counts, rows.Err()
}

func (as *AuditStore) Close() error {
	if as.db != nil {
		return as.db.Close()
	}
	return nil
}
