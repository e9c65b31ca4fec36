package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/veracity/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS analyses (
    subject_id TEXT PRIMARY KEY,
    claims     TEXT NOT NULL,
    run_id     TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL
)`

// SQLite stores each subject's claims as one JSON document. Upserts keep the
// original rowid so GetAll preserves first-stored order.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path and applies the schema
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, failure("open", errors.New("empty database path"))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, failure("create directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, failure("open sqlite db", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, failure(fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, failure("apply schema", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file path
func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Replace(ctx context.Context, analysis *model.SubjectAnalysis) error {
	claims := analysis.Claims
	if claims == nil {
		claims = []model.ClaimRecord{}
	}
	b, err := json.Marshal(claims)
	if err != nil {
		return failure("encode claims", err)
	}

	updated := analysis.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analyses (subject_id, claims, run_id, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(subject_id) DO UPDATE SET
             claims = excluded.claims,
             run_id = excluded.run_id,
             updated_at = excluded.updated_at`,
		analysis.SubjectID, string(b), analysis.RunID, updated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return failure("replace", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, subjectID string) (*model.SubjectAnalysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT subject_id, claims, run_id, updated_at FROM analyses WHERE subject_id = ?`, subjectID)

	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(subjectID)
	}
	if err != nil {
		return nil, failure("get", err)
	}
	return a, nil
}

func (s *SQLite) GetAll(ctx context.Context) ([]*model.SubjectAnalysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id, claims, run_id, updated_at FROM analyses ORDER BY rowid`)
	if err != nil {
		return nil, failure("list", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*model.SubjectAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, failure("scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, failure("list", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(sc scanner) (*model.SubjectAnalysis, error) {
	var (
		a       model.SubjectAnalysis
		claims  string
		updated string
	)
	if err := sc.Scan(&a.SubjectID, &claims, &a.RunID, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(claims), &a.Claims); err != nil {
		return nil, fmt.Errorf("decode claims for %q: %w", a.SubjectID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		a.UpdatedAt = t
	}
	return &a, nil
}
