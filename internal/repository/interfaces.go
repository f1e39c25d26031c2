package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lotware/prodimport/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ImportJobRepository persists jobs, their files, and the per-row error log.
type ImportJobRepository interface {
	// CreateWithFiles persists the job and its file metadata atomically, so a
	// client can poll job status immediately after creation.
	CreateWithFiles(ctx context.Context, job domain.ImportJob, files []domain.ImportFile) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	ListFiles(ctx context.Context, jobID uuid.UUID) ([]domain.ImportFile, error)
	UpdateFileRowCount(ctx context.Context, fileID uuid.UUID, rowCount int) error
	// TransitionStatus moves the job from one status to another, failing with
	// domain.ErrInvalidTransition when the job is no longer in the expected
	// state. The conditional update is what keeps transitions monotonic under
	// concurrent callers.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.JobStatus) error
	// FinishValidation records the row counts and error summary while moving
	// the job from VALIDATING to READY.
	FinishValidation(ctx context.Context, job domain.ImportJob) error
	MarkFailed(ctx context.Context, id uuid.UUID, summary domain.ErrorSummary) error
	MarkCompleted(ctx context.Context, id uuid.UUID, committedAt time.Time) error
	FingerprintExists(ctx context.Context, tenantID uuid.UUID, fingerprint string) (bool, error)
	RecordRowErrors(ctx context.Context, jobID uuid.UUID, errs []domain.ValidationError) error
	ListRowErrors(ctx context.Context, jobID uuid.UUID) ([]domain.ValidationError, error)
}

// RecordRepository reads and writes committed main and detail records.
type RecordRepository interface {
	// ExistingRowKeys returns which of the given business keys already exist
	// for the tenant and table code. For grouped tables the keys live on
	// detail rows; for flat tables on the main records.
	ExistingRowKeys(ctx context.Context, tenantID uuid.UUID, tableCode string, grouped bool, keys []string) (map[string]struct{}, error)
	// InsertRecords writes flat main records in one transaction. With
	// overwrite set, records whose business key already exists replace the
	// stored properties; otherwise the unique constraint rejects the write.
	InsertRecords(ctx context.Context, records []domain.Record, overwrite bool) error
	// ReplaceGroups writes grouped main records with their detail rows, all
	// groups of one job inside a single transaction. With overwrite set,
	// an existing group record is reused and its detail rows are replaced
	// wholesale; otherwise the records unique constraint rejects a group
	// that was committed since validation.
	ReplaceGroups(ctx context.Context, writes []GroupWrite, overwrite bool) error
}

// GroupWrite pairs a grouped main record with its full replacement detail
// set.
type GroupWrite struct {
	Record domain.Record
	Items  []domain.RecordItem
}
