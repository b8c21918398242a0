package reconcile

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/jorge-barreto/stepfix/internal/store"
)

// Mapping sends duplicate step ids to their canonical ids. No canonical id is
// ever a duplicate key, which is what makes Remap idempotent.
type Mapping struct {
	targets map[string]string
	titles  map[string]string
	order   []string
}

// NewMapping builds a Mapping from collapsed duplicate pairs. It fails when a
// duplicate has two different targets or when a target is itself mapped.
func NewMapping(pairs []store.DuplicatePair) (*Mapping, error) {
	m := &Mapping{
		targets: make(map[string]string, len(pairs)),
		titles:  make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		if p.DuplicateID == p.CanonicalID {
			return nil, fmt.Errorf("step %s maps to itself", p.DuplicateID)
		}
		if prev, ok := m.targets[p.DuplicateID]; ok {
			if prev != p.CanonicalID {
				return nil, fmt.Errorf("step %s maps to both %s and %s", p.DuplicateID, prev, p.CanonicalID)
			}
			continue
		}
		m.targets[p.DuplicateID] = p.CanonicalID
		m.titles[p.DuplicateID] = p.Title
		m.order = append(m.order, p.DuplicateID)
	}
	for dup, canon := range m.targets {
		if _, chained := m.targets[canon]; chained {
			return nil, fmt.Errorf("canonical step %s (target of %s) is itself a duplicate", canon, dup)
		}
	}
	return m, nil
}

// Len returns the number of duplicate ids.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Canonical returns the canonical id for a duplicate id.
func (m *Mapping) Canonical(id string) (string, bool) {
	if m == nil {
		return "", false
	}
	c, ok := m.targets[id]
	return c, ok
}

// DuplicateIDs returns the duplicate ids in discovery order.
func (m *Mapping) DuplicateIDs() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.order)
}

// Remap replaces every duplicate id in stepIDs with its canonical id. Length
// and positions are preserved and repeated ids are kept. The input is not
// modified.
func Remap(stepIDs []string, m *Mapping) []string {
	out := make([]string, len(stepIDs))
	for i, id := range stepIDs {
		if c, ok := m.Canonical(id); ok {
			out[i] = c
		} else {
			out[i] = id
		}
	}
	return out
}

// Plan is a pending step_ids rewrite for one use case.
type Plan struct {
	UseCase store.UseCase
	After   []string
}

// BuildPlans remaps each use case and keeps the ones that change.
func BuildPlans(ucs []store.UseCase, m *Mapping) []Plan {
	var plans []Plan
	for _, uc := range ucs {
		after := Remap(uc.StepIDs, m)
		if slices.Equal(after, uc.StepIDs) {
			continue
		}
		plans = append(plans, Plan{UseCase: uc, After: after})
	}
	return plans
}

// RowResult is the outcome of one use-case rewrite.
type RowResult struct {
	UseCaseID string
	Title     string
	Before    []string
	After     []string
	Written   bool
	Err       error
}

// Remapper persists step reference rewrites and retires duplicate steps.
type Remapper struct {
	Repo Repository
	Now  func() time.Time
	Log  *zap.Logger
}

func (r *Remapper) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Remapper) logger() *zap.Logger {
	if r.Log != nil {
		return r.Log
	}
	return zap.NewNop()
}

// Apply writes after into the use case when it differs from the stored step
// ids. It reports whether a write happened.
func (r *Remapper) Apply(ctx context.Context, uc store.UseCase, after []string) (bool, error) {
	if slices.Equal(uc.StepIDs, after) {
		return false, nil
	}
	if err := r.Repo.UpdateUseCaseSteps(ctx, uc.ID, after, r.now()); err != nil {
		return false, err
	}
	r.logger().Debug("use case remapped",
		zap.String("use_case_id", uc.ID),
		zap.Strings("before", uc.StepIDs),
		zap.Strings("after", after))
	return true, nil
}

// ApplyAll applies every plan. A failing row is logged and recorded; the
// remaining rows are still attempted.
func (r *Remapper) ApplyAll(ctx context.Context, plans []Plan) []RowResult {
	results := make([]RowResult, 0, len(plans))
	for _, p := range plans {
		written, err := r.Apply(ctx, p.UseCase, p.After)
		if err != nil {
			r.logger().Error("remapping use case failed",
				zap.String("use_case_id", p.UseCase.ID),
				zap.String("title", p.UseCase.Title),
				zap.Error(err))
		}
		results = append(results, RowResult{
			UseCaseID: p.UseCase.ID,
			Title:     p.UseCase.Title,
			Before:    p.UseCase.StepIDs,
			After:     p.After,
			Written:   written,
			Err:       err,
		})
	}
	return results
}

// DeleteSteps removes the given steps and returns how many rows were
// actually deleted. Rows already gone are not an error.
func (r *Remapper) DeleteSteps(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.Repo.DeleteSteps(ctx, ids)
	if err != nil {
		return 0, err
	}
	r.logger().Debug("duplicate steps deleted",
		zap.Int("requested", len(ids)),
		zap.Int64("deleted", n))
	return n, nil
}

// retainedSteps returns the duplicate ids still referenced by a use case
// whose rewrite failed. Deleting them would leave dangling references.
func retainedSteps(m *Mapping, results []RowResult) map[string]bool {
	retained := make(map[string]bool)
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		for _, id := range res.Before {
			if _, ok := m.Canonical(id); ok {
				retained[id] = true
			}
		}
	}
	return retained
}
