package repository

import (
	"context"
	"fmt"

	"github.com/lotware/prodimport/internal/db"
	"github.com/lotware/prodimport/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type recordRepository struct {
	conn *db.Connection
}

// NewRecordRepository wires a repository backed by pgxpool.
func NewRecordRepository(conn *db.Connection) RecordRepository {
	return &recordRepository{conn: conn}
}

func (r *recordRepository) ExistingRowKeys(ctx context.Context, tenantID uuid.UUID, tableCode string, grouped bool, keys []string) (map[string]struct{}, error) {
	existing := map[string]struct{}{}
	if len(keys) == 0 {
		return existing, nil
	}

	query := `SELECT business_key
	          FROM records
	          WHERE tenant_id = $1 AND table_code = $2 AND business_key = ANY($3)`
	if grouped {
		query = `SELECT ri.item_key
		         FROM record_items ri
		         JOIN records r ON r.id = ri.record_id
		         WHERE r.tenant_id = $1 AND r.table_code = $2 AND ri.item_key = ANY($3)`
	}

	rows, err := r.conn.Pool.Query(ctx, query, tenantID, tableCode, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if scanErr := rows.Scan(&key); scanErr != nil {
			return nil, fmt.Errorf("failed to scan existing key: %w", scanErr)
		}
		existing[key] = struct{}{}
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate existing keys: %w", rowsErr)
	}

	return existing, nil
}

func (r *recordRepository) InsertRecords(ctx context.Context, records []domain.Record, overwrite bool) error {
	if len(records) == 0 {
		return nil
	}

	// Without overwrite the unique constraint on (tenant_id, table_code,
	// business_key) is the final arbiter: a job that lost the race since
	// validation fails here and the whole transaction rolls back.
	insert := `INSERT INTO records (id, tenant_id, table_code, business_key, properties, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if overwrite {
		insert += ` ON CONFLICT (tenant_id, table_code, business_key)
		            DO UPDATE SET properties = EXCLUDED.properties, updated_at = EXCLUDED.updated_at`
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, record := range records {
			propertiesJSON, err := record.PropertiesJSON()
			if err != nil {
				return fmt.Errorf("failed to marshal record properties: %w", err)
			}
			_, err = tx.Exec(
				ctx,
				insert,
				record.ID,
				record.TenantID,
				record.TableCode,
				record.BusinessKey,
				propertiesJSON,
				record.CreatedAt,
				record.UpdatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert record %s: %w", record.BusinessKey, err)
			}
		}
		return nil
	})
}

func (r *recordRepository) ReplaceGroups(ctx context.Context, writes []GroupWrite, overwrite bool) error {
	if len(writes) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, write := range writes {
			if err := replaceGroup(ctx, tx, write, overwrite); err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceGroup writes one group record and its detail rows. With overwrite it
// reuses an existing main record and replaces the detail rows wholesale.
// Without overwrite the record is inserted plainly: a group committed by a
// concurrent job since validation hits the records unique constraint and the
// whole transaction rolls back, so a race loser can never silently overwrite
// the winner's rows.
func replaceGroup(ctx context.Context, tx pgx.Tx, write GroupWrite, overwrite bool) error {
	record := write.Record
	propertiesJSON, err := record.PropertiesJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal record properties: %w", err)
	}

	recordID := record.ID
	if overwrite {
		err = tx.QueryRow(
			ctx,
			`INSERT INTO records (id, tenant_id, table_code, business_key, properties, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (tenant_id, table_code, business_key)
			 DO UPDATE SET properties = EXCLUDED.properties, updated_at = EXCLUDED.updated_at
			 RETURNING id`,
			record.ID,
			record.TenantID,
			record.TableCode,
			record.BusinessKey,
			propertiesJSON,
			record.CreatedAt,
			record.UpdatedAt,
		).Scan(&recordID)
		if err != nil {
			return fmt.Errorf("failed to upsert group record %s: %w", record.BusinessKey, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM record_items WHERE record_id = $1`, recordID); err != nil {
			return fmt.Errorf("failed to clear group details: %w", err)
		}
	} else {
		_, err = tx.Exec(
			ctx,
			`INSERT INTO records (id, tenant_id, table_code, business_key, properties, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.ID,
			record.TenantID,
			record.TableCode,
			record.BusinessKey,
			propertiesJSON,
			record.CreatedAt,
			record.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group record %s: %w", record.BusinessKey, err)
		}
	}

	for _, item := range write.Items {
		itemJSON, err := item.PropertiesJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal item properties: %w", err)
		}
		payloadJSON, err := item.PayloadJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal item payload: %w", err)
		}
		_, err = tx.Exec(
			ctx,
			`INSERT INTO record_items (id, record_id, item_key, properties, payload, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID,
			recordID,
			item.ItemKey,
			itemJSON,
			payloadJSON,
			item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group detail %s: %w", item.ItemKey, err)
		}
	}
	return nil
}
