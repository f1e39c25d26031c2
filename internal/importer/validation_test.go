package importer

import (
	"strings"
	"testing"

	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/fingerprint"

	"github.com/google/uuid"
)

func stagingRow(t *testing.T, rowIndex int, lot, unit string) domain.StagingRow {
	t.Helper()
	def := p1Def(t)
	raw := map[string]string{
		"lot_no":       lot,
		"unit_no":      unit,
		"inspected_at": "2026-03-14",
		"inspector":    "tanaka",
		"result":       "OK",
		"measurement":  "1",
	}
	row := domain.StagingRow{
		RowIndex: rowIndex,
		Raw:      raw,
		Values:   map[string]any{},
	}
	for _, field := range def.Fields {
		if value, err := field.Parse(raw[field.Name]); err == nil {
			row.Values[field.Name] = value
		}
	}
	keyFields := def.KeyFields()
	row.BusinessKey = fingerprint.Key(def.Code, keyFields, raw)
	row.KeyLabel = fingerprint.Label(keyFields, raw)
	return row
}

func TestApplyStructuralChecksMissingRequired(t *testing.T) {
	def := p1Def(t)
	row := stagingRow(t, 1, "LOT-A", "1")
	row.Raw["result"] = ""
	delete(row.Values, "result")

	rows := []domain.StagingRow{row}
	applyStructuralChecks(def, rows)

	if !rows[0].HasKind(domain.KindMissingField) {
		t.Fatalf("expected missing field finding: %v", rows[0].Errors)
	}
}

func TestApplyStructuralChecksOutOfRange(t *testing.T) {
	def := p1Def(t)
	row := stagingRow(t, 1, "LOT-A", "1")
	row.Raw["measurement"] = "1500"
	row.Values["measurement"] = float64(1500)
	row.Raw["result"] = "MAYBE"
	row.Values["result"] = "MAYBE"

	rows := []domain.StagingRow{row}
	applyStructuralChecks(def, rows)

	count := 0
	for _, e := range rows[0].Errors {
		if e.Kind == domain.KindOutOfRange {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("expected findings for both the bound and the enum violation, got %v", rows[0].Errors)
	}
}

func TestApplyStructuralChecksOptionalBlankOK(t *testing.T) {
	def := p1Def(t)
	row := stagingRow(t, 1, "LOT-A", "1")
	row.Raw["inspector"] = ""
	delete(row.Values, "inspector")
	row.Raw["measurement"] = ""
	delete(row.Values, "measurement")

	rows := []domain.StagingRow{row}
	applyStructuralChecks(def, rows)

	if !rows[0].Valid() {
		t.Fatalf("blank optional fields flagged: %v", rows[0].Errors)
	}
}

func TestMarkInFileDuplicatesFlagsAllOccurrences(t *testing.T) {
	rows := []domain.StagingRow{
		stagingRow(t, 1, "LOT-A", "1"),
		stagingRow(t, 2, "LOT-A", "2"),
		stagingRow(t, 3, "LOT-A", "1"),
		stagingRow(t, 4, "LOT-A", "1"),
	}

	duplicated := markInFileDuplicates(rows)

	if len(duplicated) != 1 {
		t.Fatalf("expected one duplicated key, got %d", len(duplicated))
	}
	if rows[1].HasKind(domain.KindUniqueInFile) {
		t.Fatalf("unique row was flagged")
	}
	for _, i := range []int{0, 2, 3} {
		if !rows[i].HasKind(domain.KindUniqueInFile) {
			t.Fatalf("row %d sharing the key was not flagged", rows[i].RowIndex)
		}
	}

	// Each flagged row references the other occurrences, not itself.
	for _, e := range rows[0].Errors {
		if e.Kind != domain.KindUniqueInFile {
			continue
		}
		if e.ConflictRef != "rows 3, 4" {
			t.Fatalf("unexpected conflict ref %q", e.ConflictRef)
		}
	}
}

func TestMarkInFileDuplicatesIgnoresRowsWithoutKeys(t *testing.T) {
	a := stagingRow(t, 1, "LOT-A", "1")
	a.BusinessKey = ""
	b := stagingRow(t, 2, "LOT-A", "2")
	b.BusinessKey = ""

	rows := []domain.StagingRow{a, b}
	duplicated := markInFileDuplicates(rows)

	if len(duplicated) != 0 {
		t.Fatalf("keyless rows treated as duplicates")
	}
	if !rows[0].Valid() || !rows[1].Valid() {
		t.Fatalf("keyless rows were flagged")
	}
}

func TestConflictRowsRendering(t *testing.T) {
	if got := conflictRows([]int{2, 5}, 2); got != "row 5" {
		t.Fatalf("expected %q, got %q", "row 5", got)
	}
	if got := conflictRows([]int{10, 2, 5}, 5); got != "rows 2, 10" {
		t.Fatalf("expected numeric ordering, got %q", got)
	}
	if !strings.HasPrefix(conflictRows([]int{1, 2, 3}, 1), "rows ") {
		t.Fatalf("plural prefix expected")
	}
	// Rows in different files can share an index; only one occurrence of the
	// caller's own index may be dropped.
	if got := conflictRows([]int{1, 1}, 1); got != "row 1" {
		t.Fatalf("expected %q, got %q", "row 1", got)
	}
	if got := conflictRows([]int{3, 3, 3}, 3); got != "rows 3, 3" {
		t.Fatalf("expected %q, got %q", "rows 3, 3", got)
	}
}

func TestMarkInFileDuplicatesAcrossFilesSameIndex(t *testing.T) {
	a := stagingRow(t, 1, "LOT-A", "1")
	a.FileID = uuid.New()
	b := stagingRow(t, 1, "LOT-A", "1")
	b.FileID = uuid.New()

	rows := []domain.StagingRow{a, b}
	markInFileDuplicates(rows)

	for i := range rows {
		found := false
		for _, e := range rows[i].Errors {
			if e.Kind != domain.KindUniqueInFile {
				continue
			}
			found = true
			if e.ConflictRef != "row 1" {
				t.Fatalf("expected a usable conflict reference, got %q", e.ConflictRef)
			}
		}
		if !found {
			t.Fatalf("row in file %d not flagged", i)
		}
	}
}
