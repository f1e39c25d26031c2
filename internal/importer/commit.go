package importer

import (
	"github.com/lotware/prodimport/internal/domain"
	"github.com/lotware/prodimport/internal/fingerprint"
	"github.com/lotware/prodimport/internal/repository"
	"github.com/lotware/prodimport/internal/schema"
)

// Only the commit step knows the flat/grouped distinction; everything
// upstream of these builders is schema-agnostic.

// buildFlatRecords converts each valid staging row into its own main record.
func buildFlatRecords(def schema.TableDefinition, job domain.ImportJob, rows []domain.StagingRow) []domain.Record {
	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, domain.NewRecord(job.TenantID, def.Code, row.BusinessKey, copyValues(row.Values)))
	}
	return records
}

// buildGroupedWrites collapses valid rows into one main record per group key
// (normally a single lot per job) with one detail row per staging row. Each
// detail carries both the schema-promoted fields and the full original row
// payload.
func buildGroupedWrites(def schema.TableDefinition, job domain.ImportJob, rows []domain.StagingRow) []repository.GroupWrite {
	var writes []repository.GroupWrite
	byKey := map[string]int{}

	for _, row := range rows {
		groupKey := fingerprint.Key(def.Code, def.GroupFields, row.Raw)

		pos, ok := byKey[groupKey]
		if !ok {
			properties := make(map[string]any, len(def.GroupFields))
			for _, field := range def.GroupFields {
				if value, present := row.Values[field]; present {
					properties[field] = value
				} else {
					properties[field] = row.Raw[field]
				}
			}
			writes = append(writes, repository.GroupWrite{
				Record: domain.NewRecord(job.TenantID, def.Code, groupKey, properties),
			})
			pos = len(writes) - 1
			byKey[groupKey] = pos
		}

		item := domain.NewRecordItem(
			writes[pos].Record.ID,
			row.BusinessKey,
			copyValues(row.Values),
			copyRaw(row.Raw),
		)
		writes[pos].Items = append(writes[pos].Items, item)
	}

	return writes
}

func copyValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

func copyRaw(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	return out
}
