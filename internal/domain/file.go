package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportFile is one uploaded file attached to a job. Files are immutable after
// intake; RowCount is filled in once parsing has counted the data rows.
type ImportFile struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	OriginalName string    `json:"original_name"`
	Extension    string    `json:"extension"`
	Fingerprint  string    `json:"fingerprint"`
	RowCount     int       `json:"row_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewImportFile creates the intake-time record for an uploaded file.
func NewImportFile(jobID uuid.UUID, originalName, extension, fingerprint string) ImportFile {
	return ImportFile{
		ID:           uuid.New(),
		JobID:        jobID,
		OriginalName: originalName,
		Extension:    extension,
		Fingerprint:  fingerprint,
		CreatedAt:    time.Now(),
	}
}
