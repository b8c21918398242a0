package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jorge-barreto/stepfix/internal/store"
	"github.com/jorge-barreto/stepfix/internal/ux"
)

// ErrRowsFailed is returned by Apply when at least one row could not be
// seeded. The remaining rows were still processed.
var ErrRowsFailed = errors.New("some seed rows failed")

// Catalog is the part of the store the seeder reads and writes.
type Catalog interface {
	CanonicalStepByTitle(ctx context.Context, title string, canon store.Canon) (store.Step, error)
	CanonicalStepBySlug(ctx context.Context, slug string, canon store.Canon) (store.Step, error)
	InsertStep(ctx context.Context, s store.Step) error
	UseCaseByTitle(ctx context.Context, title string) (store.UseCase, error)
	UpdateUseCaseSteps(ctx context.Context, id string, stepIDs []string, at time.Time) error
}

// Outcome values for seeded rows.
const (
	OutcomeExists      = "exists"
	OutcomeInserted    = "inserted"
	OutcomeWouldInsert = "would insert"
	OutcomeLinked      = "linked"
	OutcomeWouldLink   = "would link"
	OutcomeUnchanged   = "unchanged"
	OutcomeFailed      = "failed"
)

type StepOutcome struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	StepID  string `json:"step_id,omitempty"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

type UseCaseOutcome struct {
	Title   string   `json:"title"`
	StepIDs []string `json:"step_ids,omitempty"`
	Outcome string   `json:"outcome"`
	Error   string   `json:"error,omitempty"`
}

// Result is the per-row account of one Apply.
type Result struct {
	DryRun   bool             `json:"dry_run"`
	Steps    []StepOutcome    `json:"steps"`
	UseCases []UseCaseOutcome `json:"use_cases"`
}

// Failed counts rows that did not seed.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed {
			n++
		}
	}
	for _, u := range r.UseCases {
		if u.Outcome == OutcomeFailed {
			n++
		}
	}
	return n
}

// Seeder inserts canonical steps and links them into use cases.
type Seeder struct {
	Catalog    Catalog
	Canon      store.Canon
	ModifiedBy string
	DryRun     bool
	Now        func() time.Time
	NewID      func() string
	Out        io.Writer
	Log        *zap.Logger
}

func (s *Seeder) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Seeder) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Seeder) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return os.Stdout
}

func (s *Seeder) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// Apply seeds every step, then links every use case. Row errors are recorded
// and processing continues; ErrRowsFailed is returned at the end if any row
// failed. Context cancellation stops the run immediately.
func (s *Seeder) Apply(ctx context.Context, f *File) (*Result, error) {
	res := &Result{DryRun: s.DryRun}
	w := s.out()

	// Slugs seen in this file, including dry-run placeholders.
	pending := make(map[string]string)

	for _, st := range f.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		o := s.applyStep(ctx, st, pending)
		res.Steps = append(res.Steps, o)
		s.printStep(w, o)
	}
	for _, uc := range f.UseCases {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		o := s.applyUseCase(ctx, uc, pending)
		res.UseCases = append(res.UseCases, o)
		s.printUseCase(w, o)
	}

	if n := res.Failed(); n > 0 {
		return res, fmt.Errorf("%w: %d of %d", ErrRowsFailed, n, len(res.Steps)+len(res.UseCases))
	}
	return res, nil
}

func (s *Seeder) applyStep(ctx context.Context, st Step, pending map[string]string) StepOutcome {
	o := StepOutcome{Slug: st.Slug, Title: st.Title}
	fail := func(err error) StepOutcome {
		s.logger().Error("seeding step failed", zap.String("slug", st.Slug), zap.Error(err))
		o.Outcome = OutcomeFailed
		o.Error = err.Error()
		return o
	}

	existing, err := s.Catalog.CanonicalStepByTitle(ctx, st.Title, s.Canon)
	switch {
	case err == nil:
		o.StepID = existing.ID
		o.Outcome = OutcomeExists
		// Existing rows may carry no slug tag.
		pending[st.Slug] = existing.ID
		return o
	case !errors.Is(err, store.ErrNotFound):
		return fail(err)
	}

	content, err := st.Content()
	if err != nil {
		return fail(err)
	}

	if s.DryRun {
		o.StepID = "new:" + st.Slug
		o.Outcome = OutcomeWouldInsert
		pending[st.Slug] = o.StepID
		return o
	}

	now := s.now()
	row := store.Step{
		ID:               s.newID(),
		Title:            st.Title,
		BriefDescription: st.Brief,
		Category:         string(st.Category),
		DetailedContent:  content,
		Tags:             []string{st.Slug},
		Status:           s.Canon.Status,
		CreatedBy:        s.Canon.Author,
		CreatedAt:        now,
		LastModified:     now,
		ModifiedBy:       s.ModifiedBy,
	}
	if err := s.Catalog.InsertStep(ctx, row); err != nil {
		return fail(err)
	}
	s.logger().Debug("step inserted", zap.String("slug", st.Slug), zap.String("id", row.ID))
	o.StepID = row.ID
	o.Outcome = OutcomeInserted
	pending[st.Slug] = row.ID
	return o
}

func (s *Seeder) resolve(ctx context.Context, slug string, pending map[string]string) (string, error) {
	if id, ok := pending[slug]; ok {
		return id, nil
	}
	st, err := s.Catalog.CanonicalStepBySlug(ctx, slug, s.Canon)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("unknown step slug %q", slug)
	}
	if err != nil {
		return "", err
	}
	return st.ID, nil
}

func (s *Seeder) applyUseCase(ctx context.Context, uc UseCase, pending map[string]string) UseCaseOutcome {
	o := UseCaseOutcome{Title: uc.Title}
	fail := func(err error) UseCaseOutcome {
		s.logger().Error("linking use case failed", zap.String("title", uc.Title), zap.Error(err))
		o.Outcome = OutcomeFailed
		o.Error = err.Error()
		return o
	}

	ids := make([]string, 0, len(uc.Steps))
	for _, slug := range uc.Steps {
		id, err := s.resolve(ctx, slug, pending)
		if err != nil {
			return fail(err)
		}
		ids = append(ids, id)
	}
	o.StepIDs = ids

	current, err := s.Catalog.UseCaseByTitle(ctx, uc.Title)
	if errors.Is(err, store.ErrNotFound) {
		return fail(fmt.Errorf("use case %q not found", uc.Title))
	}
	if err != nil {
		return fail(err)
	}
	if slices.Equal(current.StepIDs, ids) {
		o.Outcome = OutcomeUnchanged
		return o
	}
	if s.DryRun {
		o.Outcome = OutcomeWouldLink
		return o
	}
	if err := s.Catalog.UpdateUseCaseSteps(ctx, current.ID, ids, s.now()); err != nil {
		return fail(err)
	}
	o.Outcome = OutcomeLinked
	return o
}

func (s *Seeder) printStep(w io.Writer, o StepOutcome) {
	switch o.Outcome {
	case OutcomeFailed:
		fmt.Fprintf(w, "  %s✗ step %s%s: %s\n", ux.Red, o.Slug, ux.Reset, o.Error)
	case OutcomeExists:
		fmt.Fprintf(w, "  %s= step %s exists (%s)%s\n", ux.Dim, o.Slug, o.StepID, ux.Reset)
	default:
		fmt.Fprintf(w, "  %s+ step %s %s (%s)%s\n", ux.Green, o.Slug, o.Outcome, o.StepID, ux.Reset)
	}
}

func (s *Seeder) printUseCase(w io.Writer, o UseCaseOutcome) {
	switch o.Outcome {
	case OutcomeFailed:
		fmt.Fprintf(w, "  %s✗ use case %q%s: %s\n", ux.Red, o.Title, ux.Reset, o.Error)
	case OutcomeUnchanged:
		fmt.Fprintf(w, "  %s= use case %q unchanged%s\n", ux.Dim, o.Title, ux.Reset)
	default:
		fmt.Fprintf(w, "  %s~ use case %q %s%s\n", ux.Cyan, o.Title, o.Outcome, ux.Reset)
	}
}
