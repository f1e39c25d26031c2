package importer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/schema"
)

// The validation engine runs three passes over the job's full staging set, in
// order, accumulating findings rather than short-circuiting: structural and
// business-rule checks, in-file uniqueness, then in-store uniqueness.

// applyStructuralChecks is pass one: required-field presence plus range and
// enumeration constraints per the schema registry. Type failures were already
// recorded during parsing.
func applyStructuralChecks(def schema.TableDefinition, rows []domain.StagingRow) {
	for i := range rows {
		row := &rows[i]
		for _, field := range def.Fields {
			raw := row.Raw[field.Name]
			if raw == "" {
				if field.Required {
					row.AddError(domain.KindMissingField, field.Name, fmt.Sprintf("required field %s is empty", field.Name), "")
				}
				continue
			}

			value, ok := row.Values[field.Name]
			if !ok {
				// Type mismatch recorded at parse time; nothing to range-check.
				continue
			}
			if err := field.CheckRange(value); err != nil {
				row.AddError(domain.KindOutOfRange, field.Name, err.Error(), "")
			}
		}
	}
}

// markInFileDuplicates is pass two: every row sharing a duplicated business
// key is flagged, not just the later occurrences, so the caller sees the full
// conflict set when fixing the source file. It returns the set of duplicated
// keys so pass three can skip them.
func markInFileDuplicates(rows []domain.StagingRow) map[string]struct{} {
	byKey := map[string][]int{}
	for i := range rows {
		if rows[i].BusinessKey == "" {
			continue
		}
		byKey[rows[i].BusinessKey] = append(byKey[rows[i].BusinessKey], i)
	}

	duplicated := map[string]struct{}{}
	for key, positions := range byKey {
		if len(positions) < 2 {
			continue
		}
		duplicated[key] = struct{}{}

		rowIndexes := make([]int, len(positions))
		for n, pos := range positions {
			rowIndexes[n] = rows[pos].RowIndex
		}

		for _, pos := range positions {
			row := &rows[pos]
			row.AddError(
				domain.KindUniqueInFile,
				"",
				fmt.Sprintf("business key %s appears %d times in this job", row.KeyLabel, len(positions)),
				conflictRows(rowIndexes, row.RowIndex),
			)
		}
	}
	return duplicated
}

// markStoreDuplicates is pass three: business keys not already flagged
// in-file are checked against the committed store, tenant-scoped. A hit marks
// the row unless the job's override flag allows it to overwrite on commit.
func (s *Service) markStoreDuplicates(ctx context.Context, job domain.ImportJob, def schema.TableDefinition, rows []domain.StagingRow, duplicated map[string]struct{}) error {
	keySet := map[string]struct{}{}
	for i := range rows {
		key := rows[i].BusinessKey
		if key == "" {
			continue
		}
		if _, dup := duplicated[key]; dup {
			continue
		}
		keySet[key] = struct{}{}
	}
	if len(keySet) == 0 {
		return nil
	}

	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	existing, err := s.records.ExistingRowKeys(ctx, job.TenantID, def.Code, def.Mode == schema.ModeGrouped, keys)
	if err != nil {
		return fmt.Errorf("failed to check committed keys: %w", err)
	}
	if len(existing) == 0 || job.AllowDuplicate {
		return nil
	}

	for i := range rows {
		row := &rows[i]
		if row.BusinessKey == "" {
			continue
		}
		if _, hit := existing[row.BusinessKey]; !hit {
			continue
		}
		row.AddError(
			domain.KindUniqueInDB,
			"",
			fmt.Sprintf("business key %s is already committed for this tenant", row.KeyLabel),
			row.KeyLabel,
		)
	}
	return nil
}

// conflictRows renders the other row indexes sharing a duplicated key, for
// example "rows 2, 5". Only one occurrence of the caller's own index is
// removed: rows in different files can share an index, and those still need
// to appear in the reference.
func conflictRows(rowIndexes []int, self int) string {
	indexes := make([]int, 0, len(rowIndexes)-1)
	selfRemoved := false
	for _, idx := range rowIndexes {
		if idx == self && !selfRemoved {
			selfRemoved = true
			continue
		}
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	others := make([]string, len(indexes))
	for n, idx := range indexes {
		others[n] = strconv.Itoa(idx)
	}
	if len(others) == 1 {
		return "row " + others[0]
	}
	return "rows " + strings.Join(others, ", ")
}
