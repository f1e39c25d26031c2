package fingerprint

import (
	"strings"
	"testing"
)

func TestFileIsStableAndContentSensitive(t *testing.T) {
	a := File([]byte("lot_no,unit_no\nL1,1\n"))
	b := File([]byte("lot_no,unit_no\nL1,1\n"))
	c := File([]byte("lot_no,unit_no\nL1,2\n"))

	if a != b {
		t.Fatalf("identical content produced different fingerprints: %s vs %s", a, b)
	}
	if a == c {
		t.Fatalf("different content produced the same fingerprint")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(a))
	}
}

func TestKeyIgnoresSurroundingWhitespace(t *testing.T) {
	fields := []string{"lot_no", "unit_no"}
	a := Key("P1", fields, map[string]string{"lot_no": "LOT-A", "unit_no": "12"})
	b := Key("P1", fields, map[string]string{"lot_no": " LOT-A ", "unit_no": "12 "})

	if a != b {
		t.Fatalf("whitespace changed the business key")
	}
}

func TestKeySeparatesAdjacentValues(t *testing.T) {
	fields := []string{"lot_no", "unit_no"}
	a := Key("P1", fields, map[string]string{"lot_no": "AB", "unit_no": "1"})
	b := Key("P1", fields, map[string]string{"lot_no": "A", "unit_no": "B1"})

	if a == b {
		t.Fatalf("adjacent values collided: AB/1 vs A/B1")
	}
}

func TestKeyIncludesTableCode(t *testing.T) {
	fields := []string{"lot_no"}
	values := map[string]string{"lot_no": "LOT-A"}

	if Key("P2", fields, values) == Key("P3", fields, values) {
		t.Fatalf("the same values under different table codes must not collide")
	}
}

func TestLabelJoinsKeyValues(t *testing.T) {
	label := Label([]string{"lot_no", "unit_no"}, map[string]string{"lot_no": "LOT-A", "unit_no": " 7"})
	if label != "LOT-A/7" {
		t.Fatalf("unexpected label %q", label)
	}
	if strings.Contains(label, " ") {
		t.Fatalf("label should trim values, got %q", label)
	}
}
