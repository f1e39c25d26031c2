package schema

// The three production record families. P1 holds per-unit inspection results
// and persists flat: every valid row becomes its own main record. P2 and P3
// hold per-lot process results and persist grouped: one main record per lot
// with one detail row per unit.

func bound(v float64) *float64 { return &v }

var registry = map[string]TableDefinition{
	"P1": {
		Code: "P1",
		Name: "unit inspection results",
		Mode: ModeFlat,
		Fields: []FieldSpec{
			{Name: "lot_no", Type: FieldText, Required: true, Key: true},
			{Name: "unit_no", Type: FieldInteger, Required: true, Key: true, Min: bound(1), Max: bound(9999)},
			{Name: "inspected_at", Type: FieldDate, Required: true},
			{Name: "inspector", Type: FieldText},
			{Name: "result", Type: FieldEnum, Required: true, Enum: []string{"OK", "NG"}},
			{Name: "measurement", Type: FieldFloat, Min: bound(0), Max: bound(1000)},
		},
	},
	"P2": {
		Code: "P2",
		Name: "assembly results",
		Mode: ModeGrouped,
		Fields: []FieldSpec{
			{Name: "lot_no", Type: FieldText, Required: true, Key: true},
			{Name: "unit_no", Type: FieldInteger, Required: true, Key: true, Min: bound(1), Max: bound(9999)},
			{Name: "line", Type: FieldEnum, Required: true, Enum: []string{"L1", "L2", "L3"}},
			{Name: "assembled_at", Type: FieldDate, Required: true},
			{Name: "cycle_time", Type: FieldFloat, Min: bound(0), Max: bound(3600)},
			{Name: "operator", Type: FieldText},
		},
		GroupFields: []string{"lot_no"},
	},
	"P3": {
		Code: "P3",
		Name: "packing results",
		Mode: ModeGrouped,
		Fields: []FieldSpec{
			{Name: "lot_no", Type: FieldText, Required: true, Key: true},
			{Name: "unit_no", Type: FieldInteger, Required: true, Key: true, Min: bound(1), Max: bound(9999)},
			{Name: "packed_at", Type: FieldDate, Required: true},
			{Name: "carton_no", Type: FieldText, Required: true},
			{Name: "weight_kg", Type: FieldFloat, Min: bound(0), Max: bound(500)},
			{Name: "destination", Type: FieldEnum, Enum: []string{"DOM", "EXP"}},
		},
		GroupFields: []string{"lot_no"},
	},
}
