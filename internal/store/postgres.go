package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the catalog store backed by a pgx connection pool. Step ids are
// compared as text so the same queries work whether the id columns are uuid
// or text; writes cast back to idType.
type Postgres struct {
	pool   *pgxpool.Pool
	idType string
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn, idType string) (*Postgres, error) {
	if idType == "" {
		idType = "uuid"
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool, idType: idType}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) DuplicateSteps(ctx context.Context, canon Canon) ([]DuplicatePair, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT s1.id::text, s2.id::text, s1.title
		FROM steps s1
		JOIN steps s2 ON s1.title = s2.title AND s1.id <> s2.id
		WHERE s2.created_by = $1
		  AND s2.status = $2
		  AND COALESCE(s1.created_by, '') <> $1
		ORDER BY s1.title, s1.created_at, s1.id::text, s2.id::text`,
		canon.Author, canon.Status)
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

func (p *Postgres) CanonicalCollisions(ctx context.Context, canon Canon) ([]StepRef, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, title
		FROM steps
		WHERE created_by = $1 AND status = $2
		  AND title IN (
			SELECT title FROM steps
			WHERE created_by = $1 AND status = $2
			GROUP BY title HAVING COUNT(*) > 1)
		ORDER BY title, created_at, id::text`,
		canon.Author, canon.Status)
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

func (p *Postgres) UseCasesReferencing(ctx context.Context, stepIDs []string) ([]UseCase, error) {
	if len(stepIDs) == 0 {
		return nil, nil
	}
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, title, COALESCE(step_ids::text[], '{}'), COALESCE(updated_at, created_at)
		FROM use_cases
		WHERE step_ids::text[] && $1::text[]
		ORDER BY title, id::text`,
		stepIDs)
	if err != nil {
		return nil, fmt.Errorf("querying use cases: %w", err)
	}
	defer rows.Close()

	var ucs []UseCase
	for rows.Next() {
		var uc UseCase
		var updated *time.Time
		if err := rows.Scan(&uc.ID, &uc.Title, &uc.StepIDs, &updated); err != nil {
			return nil, err
		}
		if updated != nil {
			uc.UpdatedAt = *updated
		}
		ucs = append(ucs, uc)
	}
	return ucs, rows.Err()
}

func (p *Postgres) UpdateUseCaseSteps(ctx context.Context, id string, stepIDs []string, at time.Time) error {
	if stepIDs == nil {
		stepIDs = []string{}
	}
	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE use_cases
		SET step_ids = $2::text[]::%s[], updated_at = $3
		WHERE id::text = $1`, p.idType),
		id, stepIDs, at)
	if err != nil {
		return fmt.Errorf("updating use case %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating use case %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) DeleteSteps(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM steps WHERE id::text = ANY($1::text[])`, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting steps: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) DanglingReferences(ctx context.Context) ([]DanglingRef, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT uc.id::text, uc.title, ref
		FROM use_cases uc
		CROSS JOIN LATERAL unnest(uc.step_ids::text[]) AS ref
		WHERE NOT EXISTS (SELECT 1 FROM steps s WHERE s.id::text = ref)
		ORDER BY uc.title, uc.id::text, ref`)
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

const pgStepColumns = `id::text, title, COALESCE(brief_description, ''), COALESCE(category, ''),
	detailed_content, COALESCE(tags, '{}'), COALESCE(status, ''), COALESCE(created_by, ''),
	COALESCE(created_at, 'epoch'), COALESCE(last_modified, created_at, 'epoch'), COALESCE(modified_by, '')`

func (p *Postgres) scanStep(row pgx.Row) (Step, error) {
	var s Step
	var content []byte
	err := row.Scan(&s.ID, &s.Title, &s.BriefDescription, &s.Category, &content,
		&s.Tags, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.LastModified, &s.ModifiedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return Step{}, ErrNotFound
	}
	if err != nil {
		return Step{}, err
	}
	s.DetailedContent = content
	return s, nil
}

func (p *Postgres) CanonicalStepByTitle(ctx context.Context, title string, canon Canon) (Step, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgStepColumns+`
		FROM steps
		WHERE title = $1 AND created_by = $2 AND status = $3
		ORDER BY created_at, id::text
		LIMIT 1`, title, canon.Author, canon.Status)
	return p.scanStep(row)
}

func (p *Postgres) CanonicalStepBySlug(ctx context.Context, slug string, canon Canon) (Step, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgStepColumns+`
		FROM steps
		WHERE $1 = ANY(tags) AND created_by = $2 AND status = $3
		ORDER BY created_at, id::text
		LIMIT 1`, slug, canon.Author, canon.Status)
	return p.scanStep(row)
}

func (p *Postgres) InsertStep(ctx context.Context, s Step) error {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	var content any
	if len(s.DetailedContent) > 0 {
		content = string(s.DetailedContent)
	}
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO steps (id, title, brief_description, category, detailed_content, tags,
			status, created_by, created_at, last_modified, modified_by)
		VALUES ($1::text::%s, $2, $3, $4, $5::text::jsonb, $6::text[], $7, $8, $9, $10, $11)`, p.idType),
		s.ID, s.Title, s.BriefDescription, s.Category, content, tags,
		s.Status, s.CreatedBy, s.CreatedAt, s.LastModified, s.ModifiedBy)
	if err != nil {
		return fmt.Errorf("inserting step %q: %w", s.Title, err)
	}
	return nil
}

func (p *Postgres) UseCaseByTitle(ctx context.Context, title string) (UseCase, error) {
	var uc UseCase
	var updated *time.Time
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, title, COALESCE(step_ids::text[], '{}'), COALESCE(updated_at, created_at)
		FROM use_cases
		WHERE title = $1
		ORDER BY created_at, id::text
		LIMIT 1`, title).Scan(&uc.ID, &uc.Title, &uc.StepIDs, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return UseCase{}, ErrNotFound
	}
	if err != nil {
		return UseCase{}, fmt.Errorf("querying use case %q: %w", title, err)
	}
	if updated != nil {
		uc.UpdatedAt = *updated
	}
	return uc, nil
}
