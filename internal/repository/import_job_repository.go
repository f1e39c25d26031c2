package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lotware/prodimport/internal/db"
	"github.com/lotware/prodimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type importJobRepository struct {
	conn *db.Connection
}

// NewImportJobRepository wires a repository backed by pgxpool.
func NewImportJobRepository(conn *db.Connection) ImportJobRepository {
	return &importJobRepository{conn: conn}
}

func (r *importJobRepository) CreateWithFiles(ctx context.Context, job domain.ImportJob, files []domain.ImportFile) error {
	summaryJSON, err := json.Marshal(job.ErrorSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal error summary: %w", err)
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(
			ctx,
			`INSERT INTO import_jobs (id, tenant_id, table_code, status, allow_duplicate, error_summary, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			job.ID,
			job.TenantID,
			job.TableCode,
			string(job.Status),
			job.AllowDuplicate,
			summaryJSON,
			job.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create import job: %w", err)
		}

		for _, file := range files {
			_, err := tx.Exec(
				ctx,
				`INSERT INTO import_files (id, job_id, original_name, extension, fingerprint, row_count, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				file.ID,
				file.JobID,
				file.OriginalName,
				file.Extension,
				file.Fingerprint,
				file.RowCount,
				file.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to create import file %s: %w", file.OriginalName, err)
			}
		}
		return nil
	})
}

func (r *importJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	var (
		job         domain.ImportJob
		status      string
		summaryJSON []byte
		committedAt pgtype.Timestamptz
	)

	err := r.conn.Pool.QueryRow(
		ctx,
		`SELECT id, tenant_id, table_code, status, allow_duplicate, error_summary,
		        total_rows, valid_rows, error_rows, created_at, committed_at
		 FROM import_jobs
		 WHERE id = $1`,
		id,
	).Scan(
		&job.ID,
		&job.TenantID,
		&job.TableCode,
		&status,
		&job.AllowDuplicate,
		&summaryJSON,
		&job.TotalRows,
		&job.ValidRows,
		&job.ErrorRows,
		&job.CreatedAt,
		&committedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, fmt.Errorf("import job %s: %w", id, ErrNotFound)
		}
		return domain.ImportJob{}, fmt.Errorf("failed to get import job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	job.ErrorSummary = domain.ErrorSummary{}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &job.ErrorSummary); err != nil {
			return domain.ImportJob{}, fmt.Errorf("failed to unmarshal error summary: %w", err)
		}
	}
	if committedAt.Valid {
		t := committedAt.Time
		job.CommittedAt = &t
	}

	return job, nil
}

func (r *importJobRepository) ListFiles(ctx context.Context, jobID uuid.UUID) ([]domain.ImportFile, error) {
	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT id, job_id, original_name, extension, fingerprint, row_count, created_at
		 FROM import_files
		 WHERE job_id = $1
		 ORDER BY created_at, original_name`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import files: %w", err)
	}
	defer rows.Close()

	files := []domain.ImportFile{}
	for rows.Next() {
		var file domain.ImportFile
		if scanErr := rows.Scan(
			&file.ID,
			&file.JobID,
			&file.OriginalName,
			&file.Extension,
			&file.Fingerprint,
			&file.RowCount,
			&file.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan import file: %w", scanErr)
		}
		files = append(files, file)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import files: %w", rowsErr)
	}

	return files, nil
}

func (r *importJobRepository) UpdateFileRowCount(ctx context.Context, fileID uuid.UUID, rowCount int) error {
	_, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE import_files SET row_count = $2 WHERE id = $1`,
		fileID,
		rowCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update file row count: %w", err)
	}
	return nil
}

func (r *importJobRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.JobStatus) error {
	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE import_jobs SET status = $3 WHERE id = $1 AND status = $2`,
		id,
		string(from),
		string(to),
	)
	if err != nil {
		return fmt.Errorf("failed to transition job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, id, from, to)
	}
	return nil
}

// transitionConflict distinguishes a missing job from a lost status race.
func (r *importJobRepository) transitionConflict(ctx context.Context, id uuid.UUID, from, to domain.JobStatus) error {
	var current string
	err := r.conn.Pool.QueryRow(ctx, `SELECT status FROM import_jobs WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("import job %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to check job status: %w", err)
	}
	return fmt.Errorf("job %s is %s, not %s: %w", id, current, from, domain.ErrInvalidTransition)
}

func (r *importJobRepository) FinishValidation(ctx context.Context, job domain.ImportJob) error {
	summaryJSON, err := json.Marshal(job.ErrorSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal error summary: %w", err)
	}

	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $2, error_summary = $3, total_rows = $4, valid_rows = $5, error_rows = $6
		 WHERE id = $1 AND status = $7`,
		job.ID,
		string(domain.JobStatusReady),
		summaryJSON,
		job.TotalRows,
		job.ValidRows,
		job.ErrorRows,
		string(domain.JobStatusValidating),
	)
	if err != nil {
		return fmt.Errorf("failed to finish validation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, job.ID, domain.JobStatusValidating, domain.JobStatusReady)
	}
	return nil
}

func (r *importJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, summary domain.ErrorSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal error summary: %w", err)
	}

	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE import_jobs
		 SET status = $2, error_summary = $3
		 WHERE id = $1 AND status NOT IN ($4, $5)`,
		id,
		string(domain.JobStatusFailed),
		summaryJSON,
		string(domain.JobStatusCompleted),
		string(domain.JobStatusFailed),
	)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s already terminal: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}

func (r *importJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, committedAt time.Time) error {
	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE import_jobs SET status = $2, committed_at = $3 WHERE id = $1 AND status = $4`,
		id,
		string(domain.JobStatusCompleted),
		committedAt,
		string(domain.JobStatusCommitting),
	)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionConflict(ctx, id, domain.JobStatusCommitting, domain.JobStatusCompleted)
	}
	return nil
}

func (r *importJobRepository) FingerprintExists(ctx context.Context, tenantID uuid.UUID, fingerprint string) (bool, error) {
	var exists bool
	err := r.conn.Pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM import_files f
		   JOIN import_jobs j ON j.id = f.job_id
		   WHERE j.tenant_id = $1 AND f.fingerprint = $2
		 )`,
		tenantID,
		fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return exists, nil
}

func (r *importJobRepository) RecordRowErrors(ctx context.Context, jobID uuid.UUID, errs []domain.ValidationError) error {
	if len(errs) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, e := range errs {
			var fileID any
			if e.FileID != uuid.Nil {
				fileID = e.FileID
			}
			_, err := tx.Exec(
				ctx,
				`INSERT INTO import_row_errors (job_id, file_id, row_index, field, kind, message, conflict_ref)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				jobID,
				fileID,
				e.RowIndex,
				e.Field,
				string(e.Kind),
				e.Message,
				e.ConflictRef,
			)
			if err != nil {
				return fmt.Errorf("failed to record row error: %w", err)
			}
		}
		return nil
	})
}

func (r *importJobRepository) ListRowErrors(ctx context.Context, jobID uuid.UUID) ([]domain.ValidationError, error) {
	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT COALESCE(file_id, '00000000-0000-0000-0000-000000000000'::uuid), row_index, field, kind, message, conflict_ref
		 FROM import_row_errors
		 WHERE job_id = $1
		 ORDER BY row_index, field`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list row errors: %w", err)
	}
	defer rows.Close()

	errs := []domain.ValidationError{}
	for rows.Next() {
		var (
			e    domain.ValidationError
			kind string
		)
		if scanErr := rows.Scan(&e.FileID, &e.RowIndex, &e.Field, &kind, &e.Message, &e.ConflictRef); scanErr != nil {
			return nil, fmt.Errorf("failed to scan row error: %w", scanErr)
		}
		e.Kind = domain.ErrorKind(kind)
		errs = append(errs, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate row errors: %w", rowsErr)
	}

	return errs, nil
}
