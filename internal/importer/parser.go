package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/fingerprint"
	"github.com/lotware/prodimport/internal/schema"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// errHeaderMismatch marks file-level structural failures so the caller can
// report them under the right error kind.
var errHeaderMismatch = errors.New("header does not match table schema")

// parseFile turns one accepted file into ordered staging rows. The returned
// error is file-level: unreadable content or a header that does not match the
// table schema fails the whole file. Cell-level problems become findings on
// the owning row and parsing continues, so one bad row never hides the rest
// of the file.
func parseFile(def schema.TableDefinition, file domain.ImportFile, payload []byte) ([]domain.StagingRow, error) {
	records, err := readTable(file.Extension, payload)
	if err != nil {
		return nil, err
	}

	headerRow, dataRows := splitHeader(records)
	if headerRow == nil {
		return nil, fmt.Errorf("%w: no header row found", errHeaderMismatch)
	}

	positions, err := matchHeader(def, headerRow)
	if err != nil {
		return nil, err
	}

	keyFields := def.KeyFields()
	rows := make([]domain.StagingRow, 0, len(dataRows))
	rowIndex := 0

	for _, cells := range dataRows {
		// Empty rows are dropped, but they still advance the index: reported
		// row numbers must match the caller's source file so a corrected file
		// can be regenerated mechanically.
		rowIndex++
		if emptyRow(cells) {
			continue
		}

		row := domain.StagingRow{
			FileID:   file.ID,
			RowIndex: rowIndex,
			Values:   make(map[string]any, len(def.Fields)),
			Raw:      make(map[string]string, len(def.Fields)),
		}

		for _, field := range def.Fields {
			pos := positions[field.Name]
			raw := ""
			if pos < len(cells) {
				raw = strings.TrimSpace(cells[pos])
			}
			row.Raw[field.Name] = raw
			if raw == "" {
				continue
			}

			value, parseErr := field.Parse(raw)
			if parseErr != nil {
				row.AddError(domain.KindTypeMismatch, field.Name, parseErr.Error(), "")
				continue
			}
			row.Values[field.Name] = value
		}

		if keysPresent(row.Raw, keyFields) {
			row.BusinessKey = fingerprint.Key(def.Code, keyFields, row.Raw)
			row.KeyLabel = fingerprint.Label(keyFields, row.Raw)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func readTable(extension string, payload []byte) ([][]string, error) {
	switch strings.ToLower(extension) {
	case ".csv":
		return readCSV(payload)
	case ".xlsx":
		return readExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, extension)
	}
}

func readCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func readExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

// splitHeader returns the first non-empty row as the header and everything
// after it as data.
func splitHeader(records [][]string) ([]string, [][]string) {
	for idx, row := range records {
		if emptyRow(row) {
			continue
		}
		return row, records[idx+1:]
	}
	return nil, nil
}

// matchHeader resolves each expected column to its position by name,
// order-independently. Missing or unknown columns are a structural failure
// for the whole file.
func matchHeader(def schema.TableDefinition, headerRow []string) (map[string]int, error) {
	seen := make(map[string]int, len(headerRow))
	var unknown []string
	for idx, cell := range headerRow {
		name := strings.ToLower(strings.TrimSpace(cell))
		if name == "" {
			continue
		}
		seen[name] = idx
		if _, ok := def.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}

	positions := make(map[string]int, len(def.Fields))
	var missing []string
	for _, column := range def.Columns() {
		idx, ok := seen[column]
		if !ok {
			missing = append(missing, column)
			continue
		}
		positions[column] = idx
	}

	if len(missing) > 0 || len(unknown) > 0 {
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, "missing columns: "+strings.Join(missing, ", "))
		}
		if len(unknown) > 0 {
			parts = append(parts, "unknown columns: "+strings.Join(unknown, ", "))
		}
		return nil, fmt.Errorf("%w: %s", errHeaderMismatch, strings.Join(parts, "; "))
	}

	return positions, nil
}

func emptyRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func keysPresent(raw map[string]string, keyFields []string) bool {
	if len(keyFields) == 0 {
		return false
	}
	for _, field := range keyFields {
		if raw[field] == "" {
			return false
		}
	}
	return true
}
