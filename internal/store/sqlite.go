package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/examforge/harvester/pkg/logging"
	"github.com/examforge/harvester/pkg/question"
)

const schema = `
CREATE TABLE IF NOT EXISTS questions (
	fingerprint   TEXT PRIMARY KEY,
	subject       TEXT NOT NULL,
	question_type TEXT NOT NULL,
	format        TEXT NOT NULL,
	difficulty    INTEGER NOT NULL,
	source        TEXT NOT NULL DEFAULT '',
	payload       TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_questions_subject ON questions(subject, question_type);
`

// SQLiteStore persists the corpus in a local SQLite database. The
// pipeline writes from a single goroutine, so no extra locking is
// layered on top of the driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger := logging.GetLogger("store")
	logger.Debug().Str("path", path).Msg("Opened question store")
	return &SQLiteStore{db: db}, nil
}

// Upsert inserts a new question or refreshes the existing row for its
// fingerprint. The full record travels as a JSON payload; the indexed
// columns exist for querying, not as the source of truth.
func (s *SQLiteStore) Upsert(ctx context.Context, q *question.Canonical) (bool, error) {
	fp := question.Fingerprint(q)

	payload, err := json.Marshal(q)
	if err != nil {
		return false, fmt.Errorf("failed to marshal question: %w", err)
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM questions WHERE fingerprint = ?", fp).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO questions (fingerprint, subject, question_type, format, difficulty, source, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			subject = excluded.subject,
			question_type = excluded.question_type,
			format = excluded.format,
			difficulty = excluded.difficulty,
			source = excluded.source,
			payload = excluded.payload,
			updated_at = CURRENT_TIMESTAMP`,
		fp, q.Subject, q.QuestionType, q.Format, q.Difficulty, q.Source, string(payload))
	if err != nil {
		return false, fmt.Errorf("failed to upsert question: %w", err)
	}

	return exists == 0, nil
}

// Fingerprints returns every stored fingerprint
func (s *SQLiteStore) Fingerprints(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT fingerprint FROM questions")
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	var fps []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

// Count returns the number of stored questions
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM questions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// Get loads one question by fingerprint, mostly for inspection tools
func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*question.Canonical, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM questions WHERE fingerprint = ?", fingerprint).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("question %s not found", fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load question: %w", err)
	}

	var q question.Canonical
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question: %w", err)
	}
	return &q, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
