package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an import job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusParsing    JobStatus = "PARSING"
	JobStatusValidating JobStatus = "VALIDATING"
	JobStatusReady      JobStatus = "READY"
	JobStatusCommitting JobStatus = "COMMITTING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// ErrInvalidTransition is returned when a job is asked to move to a state its
// current state does not permit. Terminal states permit nothing.
var ErrInvalidTransition = errors.New("invalid job status transition")

// jobTransitions lists the allowed forward edges. Transitions are monotonic:
// no state is ever revisited, and FAILED is reachable from any live state.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusParsing, JobStatusFailed},
	JobStatusParsing:    {JobStatusValidating, JobStatusFailed},
	JobStatusValidating: {JobStatusReady, JobStatusFailed},
	JobStatusReady:      {JobStatusCommitting, JobStatusFailed},
	JobStatusCommitting: {JobStatusCompleted, JobStatusFailed},
}

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ImportJob is one import operation: a set of files for a single table code,
// validated together and committed at most once.
type ImportJob struct {
	ID             uuid.UUID    `json:"id"`
	TenantID       uuid.UUID    `json:"tenant_id"`
	TableCode      string       `json:"table_code"`
	Status         JobStatus    `json:"status"`
	AllowDuplicate bool         `json:"allow_duplicate"`
	ErrorSummary   ErrorSummary `json:"error_summary"`
	TotalRows      int          `json:"total_rows"`
	ValidRows      int          `json:"valid_rows"`
	ErrorRows      int          `json:"error_rows"`
	CreatedAt      time.Time    `json:"created_at"`
	CommittedAt    *time.Time   `json:"committed_at,omitempty"`
}

// NewImportJob creates a job in PENDING for the given tenant and table code.
func NewImportJob(tenantID uuid.UUID, tableCode string, allowDuplicate bool) ImportJob {
	return ImportJob{
		ID:             uuid.New(),
		TenantID:       tenantID,
		TableCode:      tableCode,
		Status:         JobStatusPending,
		AllowDuplicate: allowDuplicate,
		ErrorSummary:   ErrorSummary{},
		CreatedAt:      time.Now(),
	}
}
