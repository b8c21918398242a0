package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// timeLayout is fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite is a file-backed catalog store for local runs and tests. Array
// columns (tags, step_ids) are stored as JSON text.
type SQLite struct {
	DB *sql.DB
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS steps (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		brief_description TEXT,
		category TEXT,
		detailed_content TEXT,
		tags TEXT NOT NULL DEFAULT '[]',
		status TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		last_modified TEXT,
		modified_by TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_steps_title ON steps(title);`,
	`CREATE TABLE IF NOT EXISTS use_cases (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		category TEXT,
		tags TEXT,
		step_ids TEXT NOT NULL DEFAULT '[]',
		user_id TEXT,
		created_by TEXT,
		created_at TEXT,
		updated_at TEXT,
		status TEXT
	);`,
}

// OpenSQLite opens (creating if needed) the database file at path and
// bootstraps the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}
	for _, q := range sqliteSchema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &SQLite{DB: db}, nil
}

func (s *SQLite) Close() error {
	return s.DB.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, v.String)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, v.String)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func decodeList(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return []string{}, nil
	}
	var v []string
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return nil, fmt.Errorf("decoding array column: %w", err)
	}
	if v == nil {
		v = []string{}
	}
	return v, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(vals []string) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

func (s *SQLite) DuplicateSteps(ctx context.Context, canon Canon) ([]DuplicatePair, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT s1.id, s2.id, s1.title
		FROM steps s1
		JOIN steps s2 ON s1.title = s2.title AND s1.id <> s2.id
		WHERE s2.created_by = ?
		  AND s2.status = ?
		  AND COALESCE(s1.created_by, '') <> ?
		ORDER BY s1.title, s1.created_at, s1.id, s2.id`,
		canon.Author, canon.Status, canon.Author)
	if err != nil {
		return nil, fmt.Errorf("querying duplicate steps: %w", err)
	}
	defer rows.Close()

	var pairs []DuplicatePair
	for rows.Next() {
		var d DuplicatePair
		if err := rows.Scan(&d.DuplicateID, &d.CanonicalID, &d.Title); err != nil {
			return nil, err
		}
		pairs = append(pairs, d)
	}
	return pairs, rows.Err()
}

func (s *SQLite) CanonicalCollisions(ctx context.Context, canon Canon) ([]StepRef, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, title
		FROM steps
		WHERE created_by = ? AND status = ?
		  AND title IN (
			SELECT title FROM steps
			WHERE created_by = ? AND status = ?
			GROUP BY title HAVING COUNT(*) > 1)
		ORDER BY title, created_at, id`,
		canon.Author, canon.Status, canon.Author, canon.Status)
	if err != nil {
		return nil, fmt.Errorf("querying canonical collisions: %w", err)
	}
	defer rows.Close()

	var refs []StepRef
	for rows.Next() {
		var r StepRef
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *SQLite) scanUseCases(rows *sql.Rows) ([]UseCase, error) {
	defer rows.Close()
	var ucs []UseCase
	for rows.Next() {
		var uc UseCase
		var ids, updated sql.NullString
		if err := rows.Scan(&uc.ID, &uc.Title, &ids, &updated); err != nil {
			return nil, err
		}
		list, err := decodeList(ids)
		if err != nil {
			return nil, fmt.Errorf("use case %s: %w", uc.ID, err)
		}
		uc.StepIDs = list
		uc.UpdatedAt = parseTime(updated)
		ucs = append(ucs, uc)
	}
	return ucs, rows.Err()
}

func (s *SQLite) UseCasesReferencing(ctx context.Context, stepIDs []string) ([]UseCase, error) {
	if len(stepIDs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, title, step_ids, COALESCE(updated_at, created_at)
		FROM use_cases
		WHERE EXISTS (
			SELECT 1 FROM json_each(use_cases.step_ids)
			WHERE json_each.value IN (`+placeholders(len(stepIDs))+`))
		ORDER BY title, id`,
		stringArgs(stepIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying use cases: %w", err)
	}
	return s.scanUseCases(rows)
}

// UseCases lists every use case ordered by title.
func (s *SQLite) UseCases(ctx context.Context) ([]UseCase, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, title, step_ids, COALESCE(updated_at, created_at)
		FROM use_cases
		ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("listing use cases: %w", err)
	}
	return s.scanUseCases(rows)
}

func (s *SQLite) UpdateUseCaseSteps(ctx context.Context, id string, stepIDs []string, at time.Time) error {
	encoded, err := encodeList(stepIDs)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE use_cases SET step_ids = ?, updated_at = ? WHERE id = ?`,
		encoded, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating use case %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("updating use case %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLite) DeleteSteps(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM steps WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("deleting steps: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) DanglingReferences(ctx context.Context) ([]DanglingRef, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT uc.id, uc.title, ref.value
		FROM use_cases uc, json_each(uc.step_ids) AS ref
		WHERE NOT EXISTS (SELECT 1 FROM steps s WHERE s.id = ref.value)
		ORDER BY uc.title, uc.id, ref.value`)
	if err != nil {
		return nil, fmt.Errorf("querying dangling references: %w", err)
	}
	defer rows.Close()

	var refs []DanglingRef
	for rows.Next() {
		var r DanglingRef
		if err := rows.Scan(&r.UseCaseID, &r.UseCaseTitle, &r.StepID); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

const sqliteStepColumns = `id, title, brief_description, category, detailed_content, tags,
	status, created_by, created_at, last_modified, modified_by`

func scanSQLiteStep(scan func(...any) error) (Step, error) {
	var st Step
	var brief, category, content, tags, status, createdBy, created, modified, modifiedBy sql.NullString
	if err := scan(&st.ID, &st.Title, &brief, &category, &content, &tags,
		&status, &createdBy, &created, &modified, &modifiedBy); err != nil {
		return Step{}, err
	}
	list, err := decodeList(tags)
	if err != nil {
		return Step{}, fmt.Errorf("step %s: %w", st.ID, err)
	}
	st.BriefDescription = brief.String
	st.Category = category.String
	if content.Valid && content.String != "" {
		st.DetailedContent = json.RawMessage(content.String)
	}
	st.Tags = list
	st.Status = status.String
	st.CreatedBy = createdBy.String
	st.CreatedAt = parseTime(created)
	st.LastModified = parseTime(modified)
	st.ModifiedBy = modifiedBy.String
	return st, nil
}

func (s *SQLite) queryStep(ctx context.Context, query string, args ...any) (Step, error) {
	st, err := scanSQLiteStep(s.DB.QueryRowContext(ctx, query, args...).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Step{}, ErrNotFound
	}
	return st, err
}

func (s *SQLite) CanonicalStepByTitle(ctx context.Context, title string, canon Canon) (Step, error) {
	return s.queryStep(ctx, `SELECT `+sqliteStepColumns+`
		FROM steps
		WHERE title = ? AND created_by = ? AND status = ?
		ORDER BY created_at, id
		LIMIT 1`, title, canon.Author, canon.Status)
}

func (s *SQLite) CanonicalStepBySlug(ctx context.Context, slug string, canon Canon) (Step, error) {
	return s.queryStep(ctx, `SELECT `+sqliteStepColumns+`
		FROM steps
		WHERE EXISTS (SELECT 1 FROM json_each(steps.tags) WHERE json_each.value = ?)
		  AND created_by = ? AND status = ?
		ORDER BY created_at, id
		LIMIT 1`, slug, canon.Author, canon.Status)
}

// Steps lists every step ordered by title and creation time.
func (s *SQLite) Steps(ctx context.Context) ([]Step, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+sqliteStepColumns+`
		FROM steps ORDER BY title, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		st, err := scanSQLiteStep(rows.Scan)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *SQLite) InsertStep(ctx context.Context, st Step) error {
	tags, err := encodeList(st.Tags)
	if err != nil {
		return err
	}
	var content any
	if len(st.DetailedContent) > 0 {
		content = string(st.DetailedContent)
	}
	var modified any
	if !st.LastModified.IsZero() {
		modified = formatTime(st.LastModified)
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO steps (`+sqliteStepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Title, st.BriefDescription, st.Category, content, tags,
		st.Status, st.CreatedBy, formatTime(st.CreatedAt), modified, st.ModifiedBy)
	if err != nil {
		return fmt.Errorf("inserting step %q: %w", st.Title, err)
	}
	return nil
}

// InsertUseCase adds a use case row with the given step references.
func (s *SQLite) InsertUseCase(ctx context.Context, uc UseCase) error {
	ids, err := encodeList(uc.StepIDs)
	if err != nil {
		return err
	}
	created := uc.UpdatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO use_cases (id, title, step_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		uc.ID, uc.Title, ids, formatTime(created), formatTime(created))
	if err != nil {
		return fmt.Errorf("inserting use case %q: %w", uc.Title, err)
	}
	return nil
}

func (s *SQLite) UseCaseByTitle(ctx context.Context, title string) (UseCase, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, title, step_ids, COALESCE(updated_at, created_at)
		FROM use_cases
		WHERE title = ?
		ORDER BY created_at, id
		LIMIT 1`, title)
	if err != nil {
		return UseCase{}, fmt.Errorf("querying use case %q: %w", title, err)
	}
	ucs, err := s.scanUseCases(rows)
	if err != nil {
		return UseCase{}, err
	}
	if len(ucs) == 0 {
		return UseCase{}, ErrNotFound
	}
	return ucs[0], nil
}
