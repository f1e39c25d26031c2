// Package export renders a job's validation findings as downloadable report
// files, so callers can fix the source spreadsheet offline and re-upload.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

// reportHeader is the column order shared by the CSV and XLSX reports.
var reportHeader = []string{"row_index", "field", "kind", "message", "conflict_ref", "file_id"}

// Service reads a job's error log and streams it in a report format.
type Service struct {
	jobs repository.ImportJobRepository
}

// NewService creates the error report service.
func NewService(jobs repository.ImportJobRepository) *Service {
	return &Service{jobs: jobs}
}

// Job returns the job so the handler can enforce the tenant boundary before
// streaming anything.
func (s *Service) Job(ctx context.Context, jobID uuid.UUID) (domain.ImportJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// WriteCSV streams the job's findings as CSV, file-level findings first in
// stored order.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, jobID uuid.UUID) error {
	errs, err := s.jobs.ListRowErrors(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job errors: %w", err)
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(reportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range errs {
		if err := csvWriter.Write(reportRow(e)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

// WriteXLSX streams the same report as a single-sheet workbook, for callers
// whose tooling mangles CSV encodings.
func (s *Service) WriteXLSX(ctx context.Context, w io.Writer, jobID uuid.UUID) error {
	errs, err := s.jobs.ListRowErrors(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job errors: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	for col, name := range reportHeader {
		cell, cellErr := excelize.CoordinatesToCellName(col+1, 1)
		if cellErr != nil {
			return fmt.Errorf("resolve header cell: %w", cellErr)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}
	for i, e := range errs {
		for col, value := range reportRow(e) {
			cell, cellErr := excelize.CoordinatesToCellName(col+1, i+2)
			if cellErr != nil {
				return fmt.Errorf("resolve report cell: %w", cellErr)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write report cell: %w", err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func reportRow(e domain.ValidationError) []string {
	rowIndex := ""
	if e.RowIndex > 0 {
		rowIndex = strconv.Itoa(e.RowIndex)
	}
	fileID := ""
	if e.FileID != uuid.Nil {
		fileID = e.FileID.String()
	}
	return []string{rowIndex, e.Field, string(e.Kind), e.Message, e.ConflictRef, fileID}
}
