package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Record is a persisted main record. For a flat table code one record holds a
// whole input row; for a grouped table code one record identifies the group
// (for example a lot) and the per-row data hangs off RecordItems.
type Record struct {
	ID          uuid.UUID      `json:"id"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	TableCode   string         `json:"table_code"`
	BusinessKey string         `json:"business_key"`
	Properties  map[string]any `json:"properties"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewRecord creates a main record for the given tenant and table code.
func NewRecord(tenantID uuid.UUID, tableCode, businessKey string, properties map[string]any) Record {
	now := time.Now()
	return Record{
		ID:          uuid.New(),
		TenantID:    tenantID,
		TableCode:   tableCode,
		BusinessKey: businessKey,
		Properties:  properties,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// PropertiesJSON returns the properties encoded for JSONB storage.
func (r Record) PropertiesJSON() (json.RawMessage, error) {
	if r.Properties == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(r.Properties)
}

// RecordItem is one detail row under a grouped main record. Properties holds
// the schema-promoted fields for indexed querying; Payload keeps the full
// original row so columns the schema does not promote are never lost.
type RecordItem struct {
	ID         uuid.UUID         `json:"id"`
	RecordID   uuid.UUID         `json:"record_id"`
	ItemKey    string            `json:"item_key"`
	Properties map[string]any    `json:"properties"`
	Payload    map[string]string `json:"payload"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewRecordItem creates a detail row keyed under its main record.
func NewRecordItem(recordID uuid.UUID, itemKey string, properties map[string]any, payload map[string]string) RecordItem {
	return RecordItem{
		ID:         uuid.New(),
		RecordID:   recordID,
		ItemKey:    itemKey,
		Properties: properties,
		Payload:    payload,
		CreatedAt:  time.Now(),
	}
}

// PropertiesJSON returns the item properties encoded for JSONB storage.
func (i RecordItem) PropertiesJSON() (json.RawMessage, error) {
	if i.Properties == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(i.Properties)
}

// PayloadJSON returns the original row payload encoded for JSONB storage.
func (i RecordItem) PayloadJSON() (json.RawMessage, error) {
	if i.Payload == nil {
		return json.Marshal(map[string]string{})
	}
	return json.Marshal(i.Payload)
}
