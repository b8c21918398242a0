package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jorge-barreto/stepfix/internal/config"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Store is the full set of queries stepfix issues against the catalog
// database. Consumers declare the subset they need.
type Store interface {
	DuplicateSteps(ctx context.Context, canon Canon) ([]DuplicatePair, error)
	CanonicalCollisions(ctx context.Context, canon Canon) ([]StepRef, error)
	UseCasesReferencing(ctx context.Context, stepIDs []string) ([]UseCase, error)
	UpdateUseCaseSteps(ctx context.Context, id string, stepIDs []string, at time.Time) error
	DeleteSteps(ctx context.Context, ids []string) (int64, error)
	DanglingReferences(ctx context.Context) ([]DanglingRef, error)

	CanonicalStepByTitle(ctx context.Context, title string, canon Canon) (Step, error)
	CanonicalStepBySlug(ctx context.Context, slug string, canon Canon) (Step, error)
	InsertStep(ctx context.Context, s Step) error
	UseCaseByTitle(ctx context.Context, title string) (UseCase, error)

	Close() error
}

// Open connects to the database described by cfg.
func Open(ctx context.Context, cfg config.Database) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN(), cfg.IDType)
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)
