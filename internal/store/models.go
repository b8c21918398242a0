package store

import (
	"encoding/json"
	"time"
)

// Step is a row of the steps table.
type Step struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	BriefDescription string          `json:"brief_description"`
	Category         string          `json:"category"`
	DetailedContent  json.RawMessage `json:"detailed_content,omitempty"`
	Tags             []string        `json:"tags"`
	Status           string          `json:"status"`
	CreatedBy        string          `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	LastModified     time.Time       `json:"last_modified"`
	ModifiedBy       string          `json:"modified_by"`
}

// UseCase holds the use_cases columns that step reconciliation reads or writes.
type UseCase struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StepIDs   []string  `json:"step_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DuplicatePair is one match of a non-canonical step against a canonical
// step carrying the same title.
type DuplicatePair struct {
	DuplicateID string `json:"duplicate_id"`
	CanonicalID string `json:"canonical_id"`
	Title       string `json:"title"`
}

type StepRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// DanglingRef is a step id inside use_cases.step_ids with no steps row.
type DanglingRef struct {
	UseCaseID    string `json:"use_case_id"`
	UseCaseTitle string `json:"use_case_title"`
	StepID       string `json:"step_id"`
}

// Canon identifies canonical steps: seeded by Author and in Status.
type Canon struct {
	Author string
	Status string
}
