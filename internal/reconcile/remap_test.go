package reconcile

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jorge-barreto/stepfix/internal/report"
	"github.com/jorge-barreto/stepfix/internal/store"
)

func mustMapping(t *testing.T, pairs ...store.DuplicatePair) *Mapping {
	t.Helper()
	m, err := NewMapping(pairs)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func pair(dup, canon, title string) store.DuplicatePair {
	return store.DuplicatePair{DuplicateID: dup, CanonicalID: canon, Title: title}
}

func TestRemap(t *testing.T) {
	m := mustMapping(t, pair("u1", "c1", "Install VS Code"), pair("u2", "c1", "Install VS Code"), pair("u3", "c2", "Clone repo"))

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", []string{}, []string{}},
		{"nil", nil, []string{}},
		{"no duplicates", []string{"x9", "c1"}, []string{"x9", "c1"}},
		{"single", []string{"u1", "x9"}, []string{"c1", "x9"}},
		{"positions kept", []string{"x1", "u3", "x2", "u1", "x3"}, []string{"x1", "c2", "x2", "c1", "x3"}},
		{"repeats kept", []string{"u1", "u2", "u1"}, []string{"c1", "c1", "c1"}},
		{"canonical already present", []string{"c1", "u1"}, []string{"c1", "c1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := slices.Clone(tt.in)
			got := Remap(tt.in, m)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Remap mismatch (-want +got):\n%s", diff)
			}
			if len(got) != len(tt.in) {
				t.Fatalf("length changed: %d -> %d", len(tt.in), len(got))
			}
			if !slices.Equal(in, tt.in) {
				t.Fatal("Remap modified its input")
			}
			if again := Remap(got, m); !slices.Equal(again, got) {
				t.Fatalf("Remap not idempotent: %v -> %v", got, again)
			}
		})
	}
}

func TestRemap_NilMapping(t *testing.T) {
	got := Remap([]string{"a", "b"}, nil)
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("got %v", got)
	}
}

func TestNewMapping(t *testing.T) {
	m := mustMapping(t, pair("u1", "c1", "A"), pair("u1", "c1", "A"), pair("u2", "c2", "B"))
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if diff := cmp.Diff([]string{"u1", "u2"}, m.DuplicateIDs()); diff != "" {
		t.Fatalf("DuplicateIDs mismatch (-want +got):\n%s", diff)
	}
	if c, ok := m.Canonical("u2"); !ok || c != "c2" {
		t.Fatalf("Canonical(u2) = %q, %v", c, ok)
	}
	if _, ok := m.Canonical("c2"); ok {
		t.Fatal("canonical id reported as a duplicate")
	}
}

func TestNewMapping_Errors(t *testing.T) {
	tests := []struct {
		name  string
		pairs []store.DuplicatePair
		want  string
	}{
		{"self", []store.DuplicatePair{pair("a", "a", "A")}, "maps to itself"},
		{"two targets", []store.DuplicatePair{pair("u1", "c1", "A"), pair("u1", "c2", "A")}, "maps to both"},
		{"chained", []store.DuplicatePair{pair("u1", "c1", "A"), pair("c1", "c0", "A")}, "is itself a duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMapping(tt.pairs)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestBuildPlans_SkipsUnchanged(t *testing.T) {
	m := mustMapping(t, pair("u1", "c1", "A"))
	ucs := []store.UseCase{
		{ID: "uc1", Title: "one", StepIDs: []string{"u1"}},
		{ID: "uc2", Title: "two", StepIDs: []string{"c1"}},
	}
	plans := BuildPlans(ucs, m)
	if len(plans) != 1 || plans[0].UseCase.ID != "uc1" {
		t.Fatalf("plans = %+v", plans)
	}
	if !slices.Equal(plans[0].After, []string{"c1"}) {
		t.Fatalf("after = %v", plans[0].After)
	}
}

func TestRemapper_ApplySkipsEqual(t *testing.T) {
	rec := &recordingRepo{}
	r := &Remapper{Repo: rec}
	written, err := r.Apply(context.Background(), store.UseCase{ID: "uc1", StepIDs: []string{"c1"}}, []string{"c1"})
	if err != nil || written {
		t.Fatalf("Apply = %v, %v; want no write", written, err)
	}
	if rec.writes() != 0 {
		t.Fatal("unchanged use case was written")
	}
}

func TestRemapper_DeleteStepsEmpty(t *testing.T) {
	r := &Remapper{Repo: &recordingRepo{}}
	n, err := r.DeleteSteps(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("DeleteSteps(nil) = %d, %v", n, err)
	}
}

func TestRetainedSteps(t *testing.T) {
	m := mustMapping(t, pair("u1", "c1", "A"), pair("u2", "c2", "B"))
	results := []RowResult{
		{UseCaseID: "uc1", Before: []string{"u1", "x9"}, Err: errors.New("boom")},
		{UseCaseID: "uc2", Before: []string{"u2"}, Written: true},
	}
	got := retainedSteps(m, results)
	if diff := cmp.Diff(map[string]bool{"u1": true}, got); diff != "" {
		t.Fatalf("retained mismatch (-want +got):\n%s", diff)
	}
}

func TestCollapse(t *testing.T) {
	pairs := []store.DuplicatePair{
		pair("u3", "c2", "Clone repo"),
		pair("u1", "c1", "Install VS Code"),
		pair("u1", "c1b", "Install VS Code"),
		pair("u2", "c1", "Install VS Code"),
		pair("u2", "c1b", "Install VS Code"),
		pair("u4", "c4", "Set up SSH"),
	}
	collisions := []store.StepRef{
		{ID: "c1", Title: "Install VS Code"},
		{ID: "c1b", Title: "Install VS Code"},
	}
	d := collapse(pairs, collisions)

	wantPairs := []store.DuplicatePair{pair("u3", "c2", "Clone repo"), pair("u4", "c4", "Set up SSH")}
	if diff := cmp.Diff(wantPairs, d.Pairs); diff != "" {
		t.Fatalf("pairs mismatch (-want +got):\n%s", diff)
	}
	wantAnomalies := []report.Anomaly{{
		Title:        "Install VS Code",
		CanonicalIDs: []string{"c1", "c1b"},
		DuplicateIDs: []string{"u1", "u2"},
	}}
	if diff := cmp.Diff(wantAnomalies, d.Anomalies); diff != "" {
		t.Fatalf("anomalies mismatch (-want +got):\n%s", diff)
	}
}

func TestCollapse_CanonicalCollisionWithoutDuplicates(t *testing.T) {
	d := collapse(nil, []store.StepRef{{ID: "c1", Title: "A"}, {ID: "c1b", Title: "A"}})
	if len(d.Pairs) != 0 {
		t.Fatalf("pairs = %+v", d.Pairs)
	}
	if len(d.Anomalies) != 1 || d.Anomalies[0].DuplicateIDs != nil {
		t.Fatalf("anomalies = %+v", d.Anomalies)
	}
}

func TestFindUseCasesReferencing_Batches(t *testing.T) {
	s := openCatalog(t)
	addUseCase(t, s, "uc2", "Beta", "u3", "u4")
	addUseCase(t, s, "uc1", "Alpha", "u1", "u4")
	addUseCase(t, s, "uc3", "Gamma", "x1")

	rec := &recordingRepo{Repository: s}
	reg := &Registry{Repo: rec, Canon: testCanon, Concurrency: 3, BatchSize: 2}
	ucs, err := reg.FindUseCasesReferencing(context.Background(), []string{"u1", "u2", "u3", "u4", "u5"})
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, uc := range ucs {
		ids = append(ids, uc.ID)
	}
	if diff := cmp.Diff([]string{"uc1", "uc2"}, ids); diff != "" {
		t.Fatalf("use cases mismatch (-want +got):\n%s", diff)
	}
	if len(rec.batches) != 3 {
		t.Fatalf("queried in %d batches, want 3", len(rec.batches))
	}
	for _, b := range rec.batches {
		if len(b) > 2 {
			t.Fatalf("batch %v exceeds batch size", b)
		}
	}
}

func TestFindUseCasesReferencing_Empty(t *testing.T) {
	reg := &Registry{Repo: &recordingRepo{}}
	ucs, err := reg.FindUseCasesReferencing(context.Background(), nil)
	if err != nil || ucs != nil {
		t.Fatalf("got %v, %v", ucs, err)
	}
}
