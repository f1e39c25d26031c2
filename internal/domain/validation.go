package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind is a stable machine-readable code for a validation finding.
// Callers rely on these codes to regenerate corrected source files, so the
// strings are part of the wire contract.
type ErrorKind string

const (
	KindMixedExtensions  ErrorKind = "E_MIXED_EXTENSIONS"
	KindDuplicateFile    ErrorKind = "E_DUPLICATE_FILE"
	KindUnknownTableCode ErrorKind = "E_UNKNOWN_TABLE_CODE"
	KindFileUnreadable   ErrorKind = "E_FILE_UNREADABLE"
	KindHeaderMismatch   ErrorKind = "E_HEADER_MISMATCH"
	KindMissingField     ErrorKind = "E_MISSING_FIELD"
	KindTypeMismatch     ErrorKind = "E_TYPE_MISMATCH"
	KindOutOfRange       ErrorKind = "E_OUT_OF_RANGE"
	KindUniqueInFile     ErrorKind = "E_UNIQUE_IN_FILE"
	KindUniqueInDB       ErrorKind = "E_UNIQUE_IN_DB"
	KindInvalidState     ErrorKind = "E_INVALID_STATE"
	KindCommitFailed     ErrorKind = "E_COMMIT_FAILED"
)

// ValidationError is one finding against a file or a row. RowIndex is the
// 1-based data row number within the owning file; 0 marks a file-level
// finding. ConflictRef points at the other side of a uniqueness conflict:
// a row index within the same file, or the business key label of the
// committed record.
type ValidationError struct {
	FileID      uuid.UUID `json:"file_id,omitempty"`
	RowIndex    int       `json:"row_index"`
	Field       string    `json:"field,omitempty"`
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	ConflictRef string    `json:"conflict_ref,omitempty"`
}

func (e ValidationError) Error() string {
	if e.RowIndex > 0 {
		return fmt.Sprintf("row %d: %s: %s", e.RowIndex, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorSummary aggregates findings by kind for job-level reporting.
type ErrorSummary map[ErrorKind]int

// Add counts one finding.
func (s ErrorSummary) Add(kind ErrorKind) {
	s[kind]++
}

// AddAll counts every finding in the slice.
func (s ErrorSummary) AddAll(errs []ValidationError) {
	for _, e := range errs {
		s.Add(e.Kind)
	}
}

// Total returns the number of findings across all kinds.
func (s ErrorSummary) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}
