package ux

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jorge-barreto/stepfix/internal/report"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// Plural returns "n word" with a naive English plural.
func Plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// PhaseHeader prints a timestamped phase header.
func PhaseHeader(w io.Writer, index, total int, name, description string) {
	fmt.Fprintf(w, "\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	desc := ""
	if description != "" {
		desc = fmt.Sprintf(" — %s", description)
	}
	fmt.Fprintf(w, "%s[%s]%s  %sPhase %d/%d: %s%s%s\n",
		Dim, timestamp(), Reset, Bold, index+1, total, name, desc, Reset)
	fmt.Fprintf(w, "%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// PhaseComplete prints a phase completion message.
func PhaseComplete(w io.Writer, index int, duration time.Duration) {
	fmt.Fprintf(w, "%s[%s]%s  %s✓ Phase %d complete (%s)%s\n",
		Dim, timestamp(), Reset, Green, index+1, report.FormatDuration(duration), Reset)
}

// PhaseFail prints a phase failure message.
func PhaseFail(w io.Writer, index int, name, errMsg string) {
	fmt.Fprintf(w, "%s[%s]%s  %s✗ Phase %d (%s) failed: %s%s\n",
		Dim, timestamp(), Reset, Red, index+1, name, errMsg, Reset)
}

// PhaseSkip prints a phase skip message.
func PhaseSkip(w io.Writer, index int, name, reason string) {
	fmt.Fprintf(w, "%s[%s]%s  %s– Phase %d (%s) skipped (%s)%s\n",
		Dim, timestamp(), Reset, Dim, index+1, name, reason, Reset)
}

// Detail prints an indented line under the current phase.
func Detail(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  "+format+"\n", args...)
}

// Warn prints a highlighted warning line.
func Warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s⚠ %s%s\n", Yellow, fmt.Sprintf(format, args...), Reset)
}

// Remap prints the before/after step references of one use case.
func Remap(w io.Writer, id, title string, before, after []string, dryRun bool) {
	verb := "update"
	if dryRun {
		verb = "would update"
	}
	fmt.Fprintf(w, "  %s%s%s %q (%s)\n", Cyan, verb, Reset, title, id)
	fmt.Fprintf(w, "    %s- [%s]%s\n", Red, strings.Join(before, ", "), Reset)
	fmt.Fprintf(w, "    %s+ [%s]%s\n", Green, strings.Join(after, ", "), Reset)
}

// RerunHint prints the command that safely repeats the run.
func RerunHint(w io.Writer, command string) {
	fmt.Fprintf(w, "\n%sRe-run:%s %s\n", Yellow, Reset, command)
}
