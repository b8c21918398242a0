package reconcile

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/stepfix/internal/report"
	"github.com/jorge-barreto/stepfix/internal/store"
)

// Discovery is the outcome of one scan of the steps table. Pairs holds only
// duplicates with exactly one canonical target; anything ambiguous is moved
// to Anomalies.
type Discovery struct {
	Pairs     []store.DuplicatePair
	Anomalies []report.Anomaly
}

// Registry reads duplicate steps and the use cases that reference them.
type Registry struct {
	Repo        Repository
	Canon       store.Canon
	Concurrency int
	BatchSize   int
}

// FindDuplicateSteps returns every (duplicate, canonical) pair ordered by
// title and duplicate creation time. No duplicates is an empty result.
func (g *Registry) FindDuplicateSteps(ctx context.Context) ([]store.DuplicatePair, error) {
	return g.Repo.DuplicateSteps(ctx, g.Canon)
}

// Discover finds duplicate pairs and canonical collisions and collapses them
// so every remaining duplicate maps to exactly one canonical step.
func (g *Registry) Discover(ctx context.Context) (Discovery, error) {
	var pairs []store.DuplicatePair
	var collisions []store.StepRef

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		p, err := g.FindDuplicateSteps(egCtx)
		if err != nil {
			return fmt.Errorf("finding duplicate steps: %w", err)
		}
		pairs = p
		return nil
	})
	eg.Go(func() error {
		c, err := g.Repo.CanonicalCollisions(egCtx, g.Canon)
		if err != nil {
			return fmt.Errorf("finding canonical collisions: %w", err)
		}
		collisions = c
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Discovery{}, err
	}
	return collapse(pairs, collisions), nil
}

// collapse drops pairs whose duplicate has more than one canonical target,
// or whose title has more than one canonical row, and reports those titles
// as anomalies instead.
func collapse(pairs []store.DuplicatePair, collisions []store.StepRef) Discovery {
	anomalies := make(map[string]*report.Anomaly)
	anomaly := func(title string) *report.Anomaly {
		a, ok := anomalies[title]
		if !ok {
			a = &report.Anomaly{Title: title}
			anomalies[title] = a
		}
		return a
	}
	for _, c := range collisions {
		a := anomaly(c.Title)
		a.CanonicalIDs = appendUnique(a.CanonicalIDs, c.ID)
	}

	targets := make(map[string][]string)
	for _, p := range pairs {
		targets[p.DuplicateID] = appendUnique(targets[p.DuplicateID], p.CanonicalID)
	}
	for _, p := range pairs {
		if len(targets[p.DuplicateID]) > 1 {
			anomaly(p.Title)
		}
	}

	var d Discovery
	emitted := make(map[string]bool)
	for _, p := range pairs {
		if emitted[p.DuplicateID] {
			continue
		}
		emitted[p.DuplicateID] = true

		if a, ambiguous := anomalies[p.Title]; ambiguous {
			for _, id := range targets[p.DuplicateID] {
				a.CanonicalIDs = appendUnique(a.CanonicalIDs, id)
			}
			a.DuplicateIDs = appendUnique(a.DuplicateIDs, p.DuplicateID)
			continue
		}
		d.Pairs = append(d.Pairs, p)
	}

	for _, a := range anomalies {
		d.Anomalies = append(d.Anomalies, *a)
	}
	sort.Slice(d.Anomalies, func(i, j int) bool {
		return d.Anomalies[i].Title < d.Anomalies[j].Title
	})
	return d
}

// FindUseCasesReferencing returns every use case whose step ids intersect
// ids, ordered by title. Lookups are split into BatchSize chunks and up to
// Concurrency chunks are queried at once.
func (g *Registry) FindUseCasesReferencing(ctx context.Context, ids []string) ([]store.UseCase, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	chunks := chunk(ids, g.BatchSize)
	results := make([][]store.UseCase, len(chunks))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, g.Concurrency))
	for i, c := range chunks {
		i, c := i, c
		eg.Go(func() error {
			ucs, err := g.Repo.UseCasesReferencing(egCtx, c)
			if err != nil {
				return fmt.Errorf("finding use cases (batch %d/%d): %w", i+1, len(chunks), err)
			}
			results[i] = ucs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var merged []store.UseCase
	for _, batch := range results {
		for _, uc := range batch {
			if seen[uc.ID] {
				continue
			}
			seen[uc.ID] = true
			merged = append(merged, uc)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Title != merged[j].Title {
			return merged[i].Title < merged[j].Title
		}
		return merged[i].ID < merged[j].ID
	})
	return merged, nil
}

func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
