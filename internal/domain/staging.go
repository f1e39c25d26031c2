package domain

import "github.com/google/uuid"

// StagingRow is one parsed data row awaiting validation. Rows live only for
// the duration of their job: valid rows become persisted records at commit,
// invalid rows survive only inside the job's error summary and row-error log.
type StagingRow struct {
	FileID      uuid.UUID         `json:"file_id"`
	RowIndex    int               `json:"row_index"`    // 1-based within the file
	Values      map[string]any    `json:"values"`       // typed, schema-parsed values
	Raw         map[string]string `json:"raw"`          // trimmed original cells by column
	BusinessKey string            `json:"business_key"` // empty when a key field is absent
	KeyLabel    string            `json:"key_label"`    // human form for error messages
	Errors      []ValidationError `json:"errors,omitempty"`
}

// AddError appends a finding to the row, stamping the row's position.
func (r *StagingRow) AddError(kind ErrorKind, field, message, conflictRef string) {
	r.Errors = append(r.Errors, ValidationError{
		FileID:      r.FileID,
		RowIndex:    r.RowIndex,
		Field:       field,
		Kind:        kind,
		Message:     message,
		ConflictRef: conflictRef,
	})
}

// Valid reports whether the row carries no findings and may be committed.
func (r StagingRow) Valid() bool {
	return len(r.Errors) == 0
}

// HasKind reports whether the row already carries a finding of the given kind.
func (r StagingRow) HasKind(kind ErrorKind) bool {
	for _, e := range r.Errors {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
