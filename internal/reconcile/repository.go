// Package reconcile merges duplicate step rows into their canonical
// counterparts: it discovers duplicates, rewrites use-case step references,
// deletes the retired rows and verifies the result.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/jorge-barreto/stepfix/internal/store"
)

// Repository is the subset of the catalog store reconciliation needs.
type Repository interface {
	DuplicateSteps(ctx context.Context, canon store.Canon) ([]store.DuplicatePair, error)
	CanonicalCollisions(ctx context.Context, canon store.Canon) ([]store.StepRef, error)
	UseCasesReferencing(ctx context.Context, stepIDs []string) ([]store.UseCase, error)
	UpdateUseCaseSteps(ctx context.Context, id string, stepIDs []string, at time.Time) error
	DeleteSteps(ctx context.Context, ids []string) (int64, error)
	DanglingReferences(ctx context.Context) ([]store.DanglingRef, error)
}

// ErrReadOnly is returned by write calls made through a dry-run repository.
var ErrReadOnly = errors.New("write attempted in dry-run mode")

// readOnly rejects every write so a dry run cannot touch the store.
type readOnly struct {
	Repository
}

func (readOnly) UpdateUseCaseSteps(context.Context, string, []string, time.Time) error {
	return ErrReadOnly
}

func (readOnly) DeleteSteps(context.Context, []string) (int64, error) {
	return 0, ErrReadOnly
}
