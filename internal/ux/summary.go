package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/jorge-barreto/stepfix/internal/report"
)

// Summary prints the numbered end-of-run report. It is printed for every
// run, including failed ones.
func Summary(w io.Writer, r *report.Report) {
	title := "Summary"
	if r.DryRun {
		title = "Summary (dry run, nothing written)"
	}
	color := Green
	switch {
	case r.Status == report.StatusFailed:
		color = Red
	case len(r.Failures) > 0 || r.ResidualDuplicates > 0 || len(r.Anomalies) > 0:
		color = Yellow
	}
	fmt.Fprintf(w, "\n%s%s══ %s ══%s\n", Bold, color, title, Reset)
	fmt.Fprintf(w, "  %s1.%s duplicates found: %d\n", Cyan, Reset, r.DuplicatesFound)
	if r.DryRun {
		fmt.Fprintf(w, "  %s2.%s would update %s\n", Cyan, Reset, Plural(r.UseCasesUpdated, "use case"))
		fmt.Fprintf(w, "  %s3.%s would delete %s\n", Cyan, Reset, Plural(int(r.StepsDeleted), "step"))
	} else {
		fmt.Fprintf(w, "  %s2.%s updated %d of %s\n", Cyan, Reset, r.UseCasesUpdated, Plural(r.UseCasesAffected, "use case"))
		fmt.Fprintf(w, "  %s3.%s deleted %s\n", Cyan, Reset, Plural(int(r.StepsDeleted), "step"))
		if r.Verified {
			fmt.Fprintf(w, "  %s4.%s verify: %s remaining", Cyan, Reset, Plural(r.ResidualDuplicates, "duplicate"))
			if r.HeldDuplicates > 0 {
				fmt.Fprintf(w, ", %d held back", r.HeldDuplicates)
			}
			fmt.Fprintln(w)
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "\n  %s%s failed to update:%s\n", Red, Plural(len(r.Failures), "use case"), Reset)
		for _, f := range r.Failures {
			fmt.Fprintf(w, "    %q (%s): %s\n", f.Title, f.UseCaseID, f.Error)
		}
	}
	if r.StepsRetained > 0 {
		Warn(w, "%s kept because a referencing use case was not updated", Plural(r.StepsRetained, "duplicate step"))
	}
	if r.ResidualDuplicates > 0 {
		Warn(w, "%s still present after reconciliation; manual follow-up needed", Plural(r.ResidualDuplicates, "duplicate"))
	}
	if len(r.Anomalies) > 0 {
		Anomalies(w, r.Anomalies)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "\n  %serror:%s %s\n", Red, Reset, r.Error)
	}
	fmt.Fprintln(w)
}

// Anomalies prints titles with several canonical steps.
func Anomalies(w io.Writer, anomalies []report.Anomaly) {
	Warn(w, "%s with more than one canonical step (resolve manually):", Plural(len(anomalies), "title"))
	for _, a := range anomalies {
		fmt.Fprintf(w, "    %q canonical [%s]", a.Title, strings.Join(a.CanonicalIDs, ", "))
		if len(a.DuplicateIDs) > 0 {
			fmt.Fprintf(w, " duplicates [%s]", strings.Join(a.DuplicateIDs, ", "))
		}
		fmt.Fprintln(w)
	}
}

// RenderCheck prints the integrity check.
func RenderCheck(w io.Writer, c *report.Check) {
	fmt.Fprintf(w, "%sDuplicates:%s %d\n", Bold, Reset, len(c.Pairs))
	for _, p := range c.Pairs {
		fmt.Fprintf(w, "  %q: %s → %s\n", p.Title, p.DuplicateID, p.CanonicalID)
	}

	fmt.Fprintf(w, "\n%sDangling references:%s %d\n", Bold, Reset, len(c.Dangling))
	for _, d := range c.Dangling {
		fmt.Fprintf(w, "  %q (%s) → %s\n", d.UseCaseTitle, d.UseCaseID, d.StepID)
	}

	if len(c.Anomalies) > 0 {
		fmt.Fprintln(w)
		Anomalies(w, c.Anomalies)
	}

	if c.Clean() {
		fmt.Fprintf(w, "\n%s%s✓ catalog is consistent%s\n", Bold, Green, Reset)
	}
	fmt.Fprintln(w)
}
