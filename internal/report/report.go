// Package report holds the outcome of a stepfix run and persists it as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jorge-barreto/stepfix/internal/store"
)

const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusNothingToDo = "nothing-to-do"
	StatusFailed      = "failed"
)

// Failure is one use case whose rewrite could not be persisted.
type Failure struct {
	UseCaseID string `json:"use_case_id"`
	Title     string `json:"title"`
	Error     string `json:"error"`
}

// Anomaly is a title carrying more than one canonical step. Its duplicates
// are left untouched until someone picks the surviving row.
type Anomaly struct {
	Title        string   `json:"title"`
	CanonicalIDs []string `json:"canonical_ids"`
	DuplicateIDs []string `json:"duplicate_ids,omitempty"`
}

// Report summarizes one reconciliation run. In dry-run mode the update and
// delete counters hold what a live run would do.
type Report struct {
	RunID              string        `json:"run_id"`
	StartedAt          time.Time     `json:"started_at"`
	DryRun             bool          `json:"dry_run"`
	Status             string        `json:"status"`
	DuplicatesFound    int           `json:"duplicates_found"`
	UseCasesAffected   int           `json:"use_cases_affected"`
	UseCasesUpdated    int           `json:"use_cases_updated"`
	Failures           []Failure     `json:"failures,omitempty"`
	StepsDeleted       int64         `json:"steps_deleted"`
	StepsRetained      int           `json:"steps_retained,omitempty"`
	Verified           bool          `json:"verified"`
	ResidualDuplicates int           `json:"residual_duplicates"`
	HeldDuplicates     int           `json:"held_duplicates"`
	Anomalies          []Anomaly     `json:"anomalies,omitempty"`
	Phases             []PhaseTiming `json:"phases"`
	Error              string        `json:"error,omitempty"`
}

// New starts a report with a fresh run id.
func New(dryRun bool) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		DryRun:    dryRun,
		Status:    StatusRunning,
	}
}

// Save writes the report as indented JSON to path.
func (r *Report) Save(path string) error {
	return WriteJSON(path, r)
}

// WriteJSON atomically replaces path with v encoded as indented JSON.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return writeFileAtomic(path, append(data, '\n'), 0644)
}

// Check is the read-only integrity report.
type Check struct {
	Pairs     []store.DuplicatePair `json:"duplicates"`
	Anomalies []Anomaly             `json:"anomalies,omitempty"`
	Dangling  []store.DanglingRef   `json:"dangling,omitempty"`
}

// Clean reports whether the check found nothing to fix.
func (c *Check) Clean() bool {
	return len(c.Pairs) == 0 && len(c.Anomalies) == 0 && len(c.Dangling) == 0
}

// Save writes the check as indented JSON to path.
func (c *Check) Save(path string) error {
	return WriteJSON(path, c)
}
