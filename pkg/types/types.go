// Package types provides the core data structures shared across the TierVault pipeline.
package types

import (
	"time"
)

// Tier identifies one of the three logical storage stages.
type Tier int

const (
	TierIntake Tier = iota
	TierBackup
	TierArchive
)

// String returns the string representation of a tier.
func (t Tier) String() string {
	switch t {
	case TierIntake:
		return "intake"
	case TierBackup:
		return "backup"
	case TierArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// ObjectRecord represents one file instance in one tier. The key is the
// stable logical identifier shared across tiers; within a tier it is unique.
type ObjectRecord struct {
	Key          string    `json:"key"`
	Tier         Tier      `json:"tier"`
	SizeBytes    int64     `json:"size_bytes"`
	Digest       string    `json:"digest"`
	LastModified time.Time `json:"last_modified"`
	Compressed   bool      `json:"compressed"`
}

// ObjectInfo represents list-level metadata about an object, as returned
// by a store listing. Content and digest require a full read.
type ObjectInfo struct {
	Key          string    `json:"key"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Stage identifies the pipeline stage that produced a task outcome.
type Stage string

const (
	StageValidation Stage = "validation"
	StageBackup     Stage = "backup"
	StageArchival   Stage = "archival"
)

// OutcomeStatus is the terminal status of one per-object task.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "success"
	StatusFailed  OutcomeStatus = "failed"
	StatusSkipped OutcomeStatus = "skipped"
)

// TaskOutcome is the per-object result of a pipeline stage. Outcomes are
// append-only: produced by workers, aggregated by the orchestrator, never
// mutated after creation.
type TaskOutcome struct {
	Key         string        `json:"key"`
	Stage       Stage         `json:"stage"`
	Status      OutcomeStatus `json:"status"`
	ErrorCode   string        `json:"error_code,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`

	// Record describes the object this stage produced, set on success only.
	Record *ObjectRecord `json:"record,omitempty"`
}

// ValidationResult is the transient outcome of intake validation.
type ValidationResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// StageCounts aggregates outcome counts for one stage of a batch run.
type StageCounts struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Total returns the number of outcomes counted for the stage.
func (c StageCounts) Total() int {
	return c.Success + c.Failed + c.Skipped
}

// BatchSummary aggregates all task outcomes of one batch run.
type BatchSummary struct {
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Stages     map[Stage]StageCounts  `json:"stages"`
	Outcomes   []TaskOutcome          `json:"outcomes,omitempty"`
	Aborted    bool                   `json:"aborted"`
	AbortCause string                 `json:"abort_cause,omitempty"`
}

// Add records one outcome into the summary.
func (s *BatchSummary) Add(outcome TaskOutcome) {
	if s.Stages == nil {
		s.Stages = make(map[Stage]StageCounts)
	}
	counts := s.Stages[outcome.Stage]
	switch outcome.Status {
	case StatusSuccess:
		counts.Success++
	case StatusFailed:
		counts.Failed++
	case StatusSkipped:
		counts.Skipped++
	}
	s.Stages[outcome.Stage] = counts
	s.Outcomes = append(s.Outcomes, outcome)
}
