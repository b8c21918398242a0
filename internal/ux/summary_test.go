package ux

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jorge-barreto/stepfix/internal/report"
	"github.com/jorge-barreto/stepfix/internal/store"
)

func TestPlural(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 steps"},
		{1, "1 step"},
		{2, "2 steps"},
	}
	for _, tt := range tests {
		if got := Plural(tt.n, "step"); got != tt.want {
			t.Errorf("Plural(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRemap(t *testing.T) {
	var buf bytes.Buffer
	Remap(&buf, "uc1", "Frontend onboarding", []string{"u1", "x9"}, []string{"c1", "x9"}, true)
	out := buf.String()
	for _, want := range []string{"would update", `"Frontend onboarding" (uc1)`, "- [u1, x9]", "+ [c1, x9]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSummary_DryRun(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, &report.Report{DryRun: true, DuplicatesFound: 1, UseCasesUpdated: 1, StepsDeleted: 1})
	out := buf.String()
	for _, want := range []string{"dry run", "would update 1 use case\n", "would delete 1 step\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "verify:") {
		t.Errorf("dry-run summary printed a verify line:\n%s", out)
	}
}

func TestSummary_Live(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, &report.Report{
		DuplicatesFound:    3,
		UseCasesAffected:   2,
		UseCasesUpdated:    1,
		StepsDeleted:       2,
		StepsRetained:      1,
		Verified:           true,
		ResidualDuplicates: 1,
		HeldDuplicates:     2,
		Failures:           []report.Failure{{UseCaseID: "uc9", Title: "Ops onboarding", Error: "row locked"}},
	})
	out := buf.String()
	for _, want := range []string{
		"updated 1 of 2 use cases",
		"deleted 2 steps",
		"verify: 1 duplicate remaining, 2 held back",
		`"Ops onboarding" (uc9): row locked`,
		"1 duplicate step kept",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPhaseComplete(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "Phase 2 complete (250ms)"},
		{90 * time.Second, "Phase 2 complete (1m 30s)"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		PhaseComplete(&buf, 1, tt.d)
		if !strings.Contains(buf.String(), tt.want) {
			t.Errorf("PhaseComplete(%v) = %q, want %q", tt.d, buf.String(), tt.want)
		}
	}
}

func TestSummary_Error(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, &report.Report{Status: report.StatusFailed, Error: "connection refused"})
	if !strings.Contains(buf.String(), "connection refused") {
		t.Errorf("output missing error:\n%s", buf.String())
	}
}

func TestRenderCheck(t *testing.T) {
	t.Run("clean", func(t *testing.T) {
		var buf bytes.Buffer
		RenderCheck(&buf, &report.Check{})
		if !strings.Contains(buf.String(), "catalog is consistent") {
			t.Errorf("clean check output:\n%s", buf.String())
		}
	})
	t.Run("findings", func(t *testing.T) {
		var buf bytes.Buffer
		RenderCheck(&buf, &report.Check{
			Pairs:     []store.DuplicatePair{{DuplicateID: "u1", CanonicalID: "c1", Title: "Install VS Code"}},
			Anomalies: []report.Anomaly{{Title: "Clone repo", CanonicalIDs: []string{"c2", "c3"}}},
			Dangling:  []store.DanglingRef{{UseCaseID: "uc1", UseCaseTitle: "Frontend onboarding", StepID: "gone"}},
		})
		out := buf.String()
		for _, want := range []string{
			`"Install VS Code": u1 → c1`,
			`"Frontend onboarding" (uc1) → gone`,
			`"Clone repo" canonical [c2, c3]`,
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "consistent") {
			t.Errorf("dirty check printed as consistent:\n%s", out)
		}
	})
}
