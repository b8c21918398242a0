package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/stepfix/internal/report"
	"github.com/jorge-barreto/stepfix/internal/store"
	"github.com/jorge-barreto/stepfix/internal/ux"
)

// ErrPartialApply is returned when the run finished but some use cases could
// not be rewritten.
var ErrPartialApply = errors.New("some use cases were not updated")

const (
	phaseDiscover = iota
	phaseRemap
	phaseDelete
	phaseVerify
)

var phases = []struct {
	name        string
	description string
}{
	{"discover", "find duplicate steps"},
	{"remap", "point use cases at canonical steps"},
	{"delete", "remove duplicate steps"},
	{"verify", "re-scan for duplicates"},
}

type Options struct {
	DryRun      bool
	Canon       store.Canon
	Concurrency int
	BatchSize   int
	// Now stamps use-case updates. Defaults to time.Now.
	Now func() time.Time
	// RerunCommand is printed after a failure.
	RerunCommand string
}

// Runner drives one reconciliation run: discover, remap, delete, verify.
type Runner struct {
	Repo Repository
	Opts Options
	Out  io.Writer
	Log  *zap.Logger
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

func (r *Runner) logger() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.NewNop()
}

func (r *Runner) repo() Repository {
	if r.Opts.DryRun {
		return readOnly{r.Repo}
	}
	return r.Repo
}

func (r *Runner) registry(repo Repository) *Registry {
	return &Registry{
		Repo:        repo,
		Canon:       r.Opts.Canon,
		Concurrency: r.Opts.Concurrency,
		BatchSize:   r.Opts.BatchSize,
	}
}

// fail records the error, prints the summary and a re-run hint, and returns
// the error.
func (r *Runner) fail(rep *report.Report, phase int, err error) (*report.Report, error) {
	name := phases[phase].name
	ux.PhaseFail(r.out(), phase, name, err.Error())
	rep.EndPhase(name)
	rep.Status = report.StatusFailed
	rep.Error = err.Error()
	r.logger().Error("reconciliation failed",
		zap.String("run_id", rep.RunID),
		zap.String("phase", name),
		zap.Bool("dry_run", rep.DryRun),
		zap.Error(err))
	ux.Summary(r.out(), rep)
	if r.Opts.RerunCommand != "" {
		ux.RerunHint(r.out(), r.Opts.RerunCommand)
	}
	return rep, err
}

func (r *Runner) begin(rep *report.Report, phase int) {
	p := phases[phase]
	ux.PhaseHeader(r.out(), phase, len(phases), p.name, p.description)
	rep.StartPhase(p.name)
}

func (r *Runner) complete(rep *report.Report, phase int) {
	ux.PhaseComplete(r.out(), phase, rep.EndPhase(phases[phase].name))
}

func (r *Runner) skip(rep *report.Report, phase int, reason string) {
	ux.PhaseSkip(r.out(), phase, phases[phase].name, reason)
	rep.SkipPhase(phases[phase].name)
}

// Run executes the reconciliation. The returned report is always non-nil and
// has already been printed.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	rep := report.New(r.Opts.DryRun)
	repo := r.repo()
	reg := r.registry(repo)
	remapper := &Remapper{Repo: repo, Now: r.Opts.Now, Log: r.logger()}
	w := r.out()

	r.logger().Info("reconciliation started",
		zap.String("run_id", rep.RunID),
		zap.Bool("dry_run", rep.DryRun))

	// Discover
	r.begin(rep, phaseDiscover)
	disc, err := reg.Discover(ctx)
	if err != nil {
		return r.fail(rep, phaseDiscover, fmt.Errorf("discovering duplicates: %w", err))
	}
	rep.DuplicatesFound = len(disc.Pairs)
	rep.Anomalies = disc.Anomalies
	ux.Detail(w, "found %s", ux.Plural(len(disc.Pairs), "duplicate step"))
	for _, p := range disc.Pairs {
		ux.Detail(w, "  %q: %s → %s", p.Title, p.DuplicateID, p.CanonicalID)
	}
	if len(disc.Anomalies) > 0 {
		ux.Anomalies(w, disc.Anomalies)
	}
	r.complete(rep, phaseDiscover)

	if len(disc.Pairs) == 0 {
		ux.Detail(w, "nothing to do")
		for i := phaseRemap; i <= phaseVerify; i++ {
			r.skip(rep, i, "nothing to do")
		}
		rep.Status = report.StatusNothingToDo
		ux.Summary(w, rep)
		return rep, nil
	}

	// Remap
	if ctx.Err() != nil {
		return r.fail(rep, phaseRemap, ctx.Err())
	}
	r.begin(rep, phaseRemap)
	mapping, err := NewMapping(disc.Pairs)
	if err != nil {
		return r.fail(rep, phaseRemap, fmt.Errorf("building step mapping: %w", err))
	}
	ucs, err := reg.FindUseCasesReferencing(ctx, mapping.DuplicateIDs())
	if err != nil {
		return r.fail(rep, phaseRemap, err)
	}
	rep.UseCasesAffected = len(ucs)
	plans := BuildPlans(ucs, mapping)
	for _, p := range plans {
		ux.Remap(w, p.UseCase.ID, p.UseCase.Title, p.UseCase.StepIDs, p.After, rep.DryRun)
	}

	var results []RowResult
	if rep.DryRun {
		rep.UseCasesUpdated = len(plans)
	} else {
		results = remapper.ApplyAll(ctx, plans)
		for _, res := range results {
			switch {
			case res.Err != nil:
				rep.Failures = append(rep.Failures, report.Failure{
					UseCaseID: res.UseCaseID,
					Title:     res.Title,
					Error:     res.Err.Error(),
				})
			case res.Written:
				rep.UseCasesUpdated++
			}
		}
	}
	if len(rep.Failures) > 0 {
		ux.Warn(w, "%s of %d failed to update", ux.Plural(len(rep.Failures), "use case"), len(plans))
	}
	r.complete(rep, phaseRemap)

	// Delete
	retained := retainedSteps(mapping, results)
	var deletable []string
	for _, id := range mapping.DuplicateIDs() {
		if !retained[id] {
			deletable = append(deletable, id)
		}
	}
	if rep.DryRun {
		rep.StepsDeleted = int64(len(deletable))
		r.skip(rep, phaseDelete, fmt.Sprintf("dry run: would delete %s [%s]",
			ux.Plural(len(deletable), "step"), strings.Join(deletable, ", ")))
	} else {
		if ctx.Err() != nil {
			return r.fail(rep, phaseDelete, ctx.Err())
		}
		r.begin(rep, phaseDelete)
		n, err := remapper.DeleteSteps(ctx, deletable)
		if err != nil {
			return r.fail(rep, phaseDelete, fmt.Errorf("deleting duplicate steps: %w", err))
		}
		rep.StepsDeleted = n
		rep.StepsRetained = len(retained)
		ux.Detail(w, "deleted %s", ux.Plural(int(n), "step"))
		if int(n) < len(deletable) {
			ux.Detail(w, "%d already removed", len(deletable)-int(n))
		}
		r.complete(rep, phaseDelete)
	}

	// Verify
	if rep.DryRun {
		r.skip(rep, phaseVerify, "dry run")
	} else {
		r.begin(rep, phaseVerify)
		again, err := reg.Discover(ctx)
		if err != nil {
			// The changes are already committed; a failed re-scan only
			// loses the confirmation.
			r.logger().Warn("verification scan failed", zap.String("run_id", rep.RunID), zap.Error(err))
			ux.Warn(w, "verification scan failed: %v", err)
		} else {
			rep.Verified = true
			rep.ResidualDuplicates = len(again.Pairs)
			held := 0
			for _, a := range again.Anomalies {
				held += len(a.DuplicateIDs)
			}
			rep.HeldDuplicates = held
			if len(again.Pairs) > 0 {
				ux.Warn(w, "%s remain after reconciliation", ux.Plural(len(again.Pairs), "duplicate"))
			}
			if held > 0 {
				ux.Warn(w, "%s held back on titles with several canonical steps", ux.Plural(held, "duplicate"))
			}
			if len(again.Pairs) == 0 && held == 0 {
				ux.Detail(w, "no duplicates remain")
			}
		}
		r.complete(rep, phaseVerify)
	}

	rep.Status = report.StatusCompleted
	ux.Summary(w, rep)

	if len(rep.Failures) > 0 {
		if r.Opts.RerunCommand != "" {
			ux.RerunHint(w, r.Opts.RerunCommand)
		}
		return rep, fmt.Errorf("%w: %d of %d failed", ErrPartialApply, len(rep.Failures), len(plans))
	}
	return rep, nil
}

// Check reports duplicates, canonical collisions and dangling use-case
// references without writing anything.
func (r *Runner) Check(ctx context.Context) (*report.Check, error) {
	repo := readOnly{r.Repo}
	reg := r.registry(repo)

	var disc Discovery
	var dangling []store.DanglingRef
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		d, err := reg.Discover(egCtx)
		if err != nil {
			return err
		}
		disc = d
		return nil
	})
	eg.Go(func() error {
		refs, err := repo.DanglingReferences(egCtx)
		if err != nil {
			return fmt.Errorf("finding dangling references: %w", err)
		}
		dangling = refs
		return nil
	})
	if err := eg.Wait(); err != nil {
		r.logger().Error("integrity check failed", zap.Error(err))
		return nil, err
	}

	c := &report.Check{Pairs: disc.Pairs, Anomalies: disc.Anomalies, Dangling: dangling}
	ux.RenderCheck(r.out(), c)
	return c, nil
}
