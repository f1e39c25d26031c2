// Package schema is the table schema registry: the single seam that keeps the
// import pipeline generic across table codes. Everything downstream of intake
// asks this package which columns to expect, how to parse each cell, which
// fields form the business key, and whether the table persists flat or
// grouped.
package schema

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownTableCode is returned when a table code is not registered.
var ErrUnknownTableCode = errors.New("unknown table code")

// FieldType selects the per-column parser.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldInteger FieldType = "integer"
	FieldFloat   FieldType = "float"
	FieldDate    FieldType = "date"
	FieldEnum    FieldType = "enum"
)

// Mode distinguishes how valid rows persist at commit time.
type Mode string

const (
	// ModeFlat persists one main record per valid input row.
	ModeFlat Mode = "flat"
	// ModeGrouped persists one main record per business-key group with one
	// detail row per valid input row.
	ModeGrouped Mode = "grouped"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"20060102",
}

// FieldSpec describes one expected column.
type FieldSpec struct {
	Name     string
	Type     FieldType
	Required bool
	Key      bool // participates in the business key
	Min      *float64
	Max      *float64
	Enum     []string
}

// Parse converts a raw cell into the field's typed value. A failure here is a
// row-level type error, never a reason to abort the file.
func (f FieldSpec) Parse(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch f.Type {
	case FieldText, FieldEnum:
		return raw, nil
	case FieldInteger:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		// Exports frequently render integers as "12.0"; accept when lossless.
		if v, err := strconv.ParseFloat(raw, 64); err == nil && math.Mod(v, 1) == 0 {
			return int64(v), nil
		}
		return nil, fmt.Errorf("value %q is not an integer", raw)
	case FieldFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not numeric", raw)
		}
		return v, nil
	case FieldDate:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
		return nil, fmt.Errorf("value %q does not match a supported date format", raw)
	default:
		return raw, nil
	}
}

// CheckRange validates a parsed value against the numeric bounds or the
// enumerated value list. It returns nil for field types without constraints.
func (f FieldSpec) CheckRange(value any) error {
	if len(f.Enum) > 0 {
		text, ok := value.(string)
		if !ok {
			return nil
		}
		for _, allowed := range f.Enum {
			if strings.EqualFold(text, allowed) {
				return nil
			}
		}
		return fmt.Errorf("value %q is not one of %s", text, strings.Join(f.Enum, ", "))
	}

	if f.Min == nil && f.Max == nil {
		return nil
	}

	var v float64
	switch typed := value.(type) {
	case int64:
		v = float64(typed)
	case float64:
		v = typed
	default:
		return nil
	}

	if f.Min != nil && v < *f.Min {
		return fmt.Errorf("value %v is below the minimum %v", v, *f.Min)
	}
	if f.Max != nil && v > *f.Max {
		return fmt.Errorf("value %v is above the maximum %v", v, *f.Max)
	}
	return nil
}

// TableDefinition describes one table code end to end.
type TableDefinition struct {
	Code   string
	Name   string
	Mode   Mode
	Fields []FieldSpec
	// GroupFields is the business-key subset that identifies the main record
	// for grouped tables (for example the lot number alone, while the full
	// business key also carries the unit number). Empty for flat tables.
	GroupFields []string
}

// Columns returns the expected column names in declaration order.
func (d TableDefinition) Columns() []string {
	columns := make([]string, len(d.Fields))
	for i, field := range d.Fields {
		columns[i] = field.Name
	}
	return columns
}

// KeyFields returns the names of the key-bearing fields in declaration order.
func (d TableDefinition) KeyFields() []string {
	var fields []string
	for _, field := range d.Fields {
		if field.Key {
			fields = append(fields, field.Name)
		}
	}
	return fields
}

// Field looks up a column spec by name.
func (d TableDefinition) Field(name string) (FieldSpec, bool) {
	for _, field := range d.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return FieldSpec{}, false
}

// Lookup resolves a table code to its definition.
func Lookup(code string) (TableDefinition, error) {
	def, ok := registry[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return TableDefinition{}, fmt.Errorf("%w: %s", ErrUnknownTableCode, code)
	}
	return def, nil
}

// Codes returns the registered table codes, sorted.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
