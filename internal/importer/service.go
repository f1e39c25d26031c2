// Package importer is the batch import pipeline: file intake, row parsing,
// the three-pass validation engine, the job state machine, and the commit
// writer. Jobs from different tenants, and different jobs within one tenant,
// run independently; within a job every status transition is owned by exactly
// one phase and serialized through conditional updates in the job repository.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/fingerprint"
	"github.com/lotware/prodimport/internal/repository"
	"github.com/lotware/prodimport/internal/schema"

	"github.com/google/uuid"
)

var (
	// ErrNoFiles is returned when a job is created without any files.
	ErrNoFiles = errors.New("at least one file is required")
	// ErrMixedExtensions is returned when a job's files do not share one
	// extension.
	ErrMixedExtensions = errors.New("all files in a job must share the same extension")
	// ErrDuplicateFile is returned when a byte-identical file was already
	// uploaded for the tenant.
	ErrDuplicateFile = errors.New("file was already uploaded for this tenant")
	// ErrEmptyFile is returned when an uploaded file has no content.
	ErrEmptyFile = errors.New("file is empty")
	// ErrInvalidState is returned when commit is requested for a job that is
	// not READY.
	ErrInvalidState = errors.New("job is not in a committable state")
	// ErrCommitFailed wraps storage failures during commit; the job is FAILED
	// and nothing was written.
	ErrCommitFailed = errors.New("commit failed")
)

// Config carries the pipeline policy knobs.
type Config struct {
	// FailOnZeroValid treats committing a job whose rows all failed
	// validation as a hard failure instead of a successful empty commit.
	FailOnZeroValid bool
	// Synchronous runs parsing and validation inline with CreateJob instead
	// of on a background goroutine.
	Synchronous bool
}

// Service runs import jobs end to end.
type Service struct {
	jobs    repository.ImportJobRepository
	records repository.RecordRepository
	cfg     Config

	// Staging rows are owned by their job's lifecycle: held here between
	// READY and the terminal transition, then discarded. Nothing is shared
	// across jobs.
	mu     sync.Mutex
	arenas map[uuid.UUID]*jobArena
}

type jobArena struct {
	def  schema.TableDefinition
	rows []domain.StagingRow
}

// NewService creates the import pipeline service.
func NewService(jobs repository.ImportJobRepository, records repository.RecordRepository, cfg Config) *Service {
	return &Service{
		jobs:    jobs,
		records: records,
		cfg:     cfg,
		arenas:  map[uuid.UUID]*jobArena{},
	}
}

// FileUpload is one uploaded file as received at the boundary.
type FileUpload struct {
	Name string
	Data []byte
}

// CreateJobRequest describes one import operation.
type CreateJobRequest struct {
	TenantID       uuid.UUID
	TableCode      string
	AllowDuplicate bool
	Files          []FileUpload
}

// CreateJob validates the upload set, persists the job and file metadata, and
// starts parsing. Intake-time failures reject the whole call and persist
// nothing. The returned job can be polled immediately.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (domain.ImportJob, error) {
	if req.TenantID == uuid.Nil {
		return domain.ImportJob{}, errors.New("tenant id is required")
	}

	def, err := schema.Lookup(req.TableCode)
	if err != nil {
		return domain.ImportJob{}, err
	}

	if len(req.Files) == 0 {
		return domain.ImportJob{}, ErrNoFiles
	}

	extension := ""
	seen := map[string]string{}
	for _, upload := range req.Files {
		ext := strings.ToLower(filepath.Ext(upload.Name))
		if ext != ".csv" && ext != ".xlsx" {
			return domain.ImportJob{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, upload.Name)
		}
		if extension == "" {
			extension = ext
		} else if ext != extension {
			return domain.ImportJob{}, fmt.Errorf("%w: %s and %s", ErrMixedExtensions, extension, ext)
		}
		if len(upload.Data) == 0 {
			return domain.ImportJob{}, fmt.Errorf("%w: %s", ErrEmptyFile, upload.Name)
		}

		fp := fingerprint.File(upload.Data)
		if prior, dup := seen[fp]; dup {
			return domain.ImportJob{}, fmt.Errorf("%w: %s duplicates %s", ErrDuplicateFile, upload.Name, prior)
		}
		seen[fp] = upload.Name

		if !req.AllowDuplicate {
			exists, err := s.jobs.FingerprintExists(ctx, req.TenantID, fp)
			if err != nil {
				return domain.ImportJob{}, fmt.Errorf("failed to check for duplicate upload: %w", err)
			}
			if exists {
				return domain.ImportJob{}, fmt.Errorf("%w: %s", ErrDuplicateFile, upload.Name)
			}
		}
	}

	job := domain.NewImportJob(req.TenantID, def.Code, req.AllowDuplicate)
	files := make([]domain.ImportFile, len(req.Files))
	payloads := make([][]byte, len(req.Files))
	for i, upload := range req.Files {
		files[i] = domain.NewImportFile(job.ID, upload.Name, extension, fingerprint.File(upload.Data))
		payloads[i] = upload.Data
	}

	if err := s.jobs.CreateWithFiles(ctx, job, files); err != nil {
		return domain.ImportJob{}, err
	}
	if err := s.jobs.TransitionStatus(ctx, job.ID, domain.JobStatusPending, domain.JobStatusParsing); err != nil {
		return domain.ImportJob{}, err
	}
	job.Status = domain.JobStatusParsing

	if s.cfg.Synchronous {
		s.run(ctx, job, def, files, payloads)
		return s.Job(ctx, job.ID)
	}

	// Parsing and validation outlive the request; the client polls.
	go s.run(context.Background(), job, def, files, payloads)
	return job, nil
}

// run owns the PARSING and VALIDATING phases and the transition into READY or
// FAILED.
func (s *Service) run(ctx context.Context, job domain.ImportJob, def schema.TableDefinition, files []domain.ImportFile, payloads [][]byte) {
	var (
		rows       []domain.StagingRow
		fileErrors []domain.ValidationError
		failed     int
	)

	for i, file := range files {
		parsed, err := parseFile(def, file, payloads[i])
		if err != nil {
			kind := domain.KindFileUnreadable
			if errors.Is(err, errHeaderMismatch) {
				kind = domain.KindHeaderMismatch
			}
			fileErrors = append(fileErrors, domain.ValidationError{
				FileID:  file.ID,
				Kind:    kind,
				Message: fmt.Sprintf("%s: %v", file.OriginalName, err),
			})
			failed++
			log.Printf("[IMPORT] job %s: file %s failed: %v", job.ID, file.OriginalName, err)
			continue
		}

		if err := s.jobs.UpdateFileRowCount(ctx, file.ID, len(parsed)); err != nil {
			log.Printf("[IMPORT] job %s: failed to update row count for %s: %v", job.ID, file.OriginalName, err)
		}
		rows = append(rows, parsed...)
	}

	if failed == len(files) {
		s.failJob(ctx, job.ID, fileErrors)
		return
	}

	if err := s.jobs.TransitionStatus(ctx, job.ID, domain.JobStatusParsing, domain.JobStatusValidating); err != nil {
		log.Printf("[IMPORT] job %s: failed to enter validation: %v", job.ID, err)
		return
	}

	applyStructuralChecks(def, rows)
	duplicated := markInFileDuplicates(rows)
	if err := s.markStoreDuplicates(ctx, job, def, rows, duplicated); err != nil {
		log.Printf("[IMPORT] job %s: store uniqueness check failed: %v", job.ID, err)
		s.failJob(ctx, job.ID, append(fileErrors, domain.ValidationError{
			Kind:    domain.KindCommitFailed,
			Message: err.Error(),
		}))
		return
	}

	allErrors := append([]domain.ValidationError{}, fileErrors...)
	summary := domain.ErrorSummary{}
	summary.AddAll(fileErrors)

	job.TotalRows = len(rows)
	job.ValidRows = 0
	for _, row := range rows {
		if row.Valid() {
			job.ValidRows++
		} else {
			allErrors = append(allErrors, row.Errors...)
			summary.AddAll(row.Errors)
		}
	}
	job.ErrorRows = job.TotalRows - job.ValidRows
	job.ErrorSummary = summary

	if err := s.jobs.RecordRowErrors(ctx, job.ID, allErrors); err != nil {
		log.Printf("[IMPORT] job %s: failed to record row errors: %v", job.ID, err)
	}

	if err := s.jobs.FinishValidation(ctx, job); err != nil {
		log.Printf("[IMPORT] job %s: failed to finish validation: %v", job.ID, err)
		return
	}

	s.mu.Lock()
	s.arenas[job.ID] = &jobArena{def: def, rows: rows}
	s.mu.Unlock()

	log.Printf("[IMPORT] job %s ready: %d rows, %d valid, %d with errors", job.ID, job.TotalRows, job.ValidRows, job.ErrorRows)
}

// failJob records the findings and moves the job to FAILED from whatever live
// state it is in.
func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, errs []domain.ValidationError) {
	if err := s.jobs.RecordRowErrors(ctx, jobID, errs); err != nil {
		log.Printf("[IMPORT] job %s: failed to record errors: %v", jobID, err)
	}
	summary := domain.ErrorSummary{}
	summary.AddAll(errs)
	if err := s.jobs.MarkFailed(ctx, jobID, summary); err != nil {
		log.Printf("[IMPORT] job %s: failed to mark failed: %v", jobID, err)
	}
	s.dropArena(jobID)
}

// Commit transactionally persists the job's valid rows and makes the job
// terminal. It is callable exactly once, only from READY; the conditional
// transition into COMMITTING is what rejects concurrent or repeated calls.
func (s *Service) Commit(ctx context.Context, jobID uuid.UUID) (domain.ImportJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return domain.ImportJob{}, err
	}
	if job.Status != domain.JobStatusReady {
		return domain.ImportJob{}, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrInvalidState)
	}
	if err := s.jobs.TransitionStatus(ctx, jobID, domain.JobStatusReady, domain.JobStatusCommitting); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return domain.ImportJob{}, fmt.Errorf("job %s: %w", jobID, ErrInvalidState)
		}
		return domain.ImportJob{}, err
	}
	job.Status = domain.JobStatusCommitting

	s.mu.Lock()
	arena := s.arenas[jobID]
	s.mu.Unlock()
	if arena == nil {
		return domain.ImportJob{}, s.commitFailed(ctx, job, errors.New("staging rows are no longer available"))
	}

	valid := make([]domain.StagingRow, 0, len(arena.rows))
	for _, row := range arena.rows {
		if row.Valid() {
			valid = append(valid, row)
		}
	}

	if len(valid) == 0 {
		if s.cfg.FailOnZeroValid {
			return domain.ImportJob{}, s.commitFailed(ctx, job, errors.New("no valid rows to commit"))
		}
		// Empty commit: terminal success with zero persisted rows and the
		// error summary left in place for export.
		return s.complete(ctx, job)
	}

	switch arena.def.Mode {
	case schema.ModeGrouped:
		err = s.records.ReplaceGroups(ctx, buildGroupedWrites(arena.def, job, valid), job.AllowDuplicate)
	default:
		err = s.records.InsertRecords(ctx, buildFlatRecords(arena.def, job, valid), job.AllowDuplicate)
	}
	if err != nil {
		return domain.ImportJob{}, s.commitFailed(ctx, job, err)
	}

	log.Printf("[IMPORT] job %s committed %d rows", job.ID, len(valid))
	return s.complete(ctx, job)
}

func (s *Service) complete(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	now := time.Now()
	if err := s.jobs.MarkCompleted(ctx, job.ID, now); err != nil {
		return domain.ImportJob{}, err
	}
	s.dropArena(job.ID)
	job.Status = domain.JobStatusCompleted
	job.CommittedAt = &now
	return job, nil
}

func (s *Service) commitFailed(ctx context.Context, job domain.ImportJob, cause error) error {
	summary := domain.ErrorSummary{}
	for kind, n := range job.ErrorSummary {
		summary[kind] = n
	}
	summary.Add(domain.KindCommitFailed)

	if err := s.jobs.RecordRowErrors(ctx, job.ID, []domain.ValidationError{{
		Kind:    domain.KindCommitFailed,
		Message: cause.Error(),
	}}); err != nil {
		log.Printf("[IMPORT] job %s: failed to record commit error: %v", job.ID, err)
	}
	if err := s.jobs.MarkFailed(ctx, job.ID, summary); err != nil {
		log.Printf("[IMPORT] job %s: failed to mark failed: %v", job.ID, err)
	}
	s.dropArena(job.ID)
	return fmt.Errorf("%w: %v", ErrCommitFailed, cause)
}

// Job returns the current job state for polling.
func (s *Service) Job(ctx context.Context, jobID uuid.UUID) (domain.ImportJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// JobErrors returns the full error detail for a job, ordered for display or
// CSV export.
func (s *Service) JobErrors(ctx context.Context, jobID uuid.UUID) ([]domain.ValidationError, error) {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.jobs.ListRowErrors(ctx, jobID)
}

func (s *Service) dropArena(jobID uuid.UUID) {
	s.mu.Lock()
	delete(s.arenas, jobID)
	s.mu.Unlock()
}
