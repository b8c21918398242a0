package report

import (
	"fmt"
	"time"
)

type PhaseTiming struct {
	Phase    string    `json:"phase"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
	Duration string    `json:"duration,omitempty"`
	Skipped  bool      `json:"skipped,omitempty"`
}

// StartPhase appends a timing entry for phase.
func (r *Report) StartPhase(phase string) {
	r.Phases = append(r.Phases, PhaseTiming{Phase: phase, Start: time.Now()})
}

// EndPhase closes the most recent open entry for phase and returns its
// duration.
func (r *Report) EndPhase(phase string) time.Duration {
	for i := len(r.Phases) - 1; i >= 0; i-- {
		p := &r.Phases[i]
		if p.Phase == phase && p.End.IsZero() {
			p.End = time.Now()
			d := p.End.Sub(p.Start)
			p.Duration = FormatDuration(d)
			return d
		}
	}
	return 0
}

// SkipPhase records a phase that did not run.
func (r *Report) SkipPhase(phase string) {
	now := time.Now()
	r.Phases = append(r.Phases, PhaseTiming{Phase: phase, Start: now, End: now, Skipped: true})
}

func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %02ds", m, s)
}
