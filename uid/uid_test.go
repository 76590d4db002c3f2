package uid

import (
	"bytes"
	"testing"
)

func TestBytesIsEightBigEndian(t *testing.T) {
	u := mustParse("0000000600000016")
	b := u.Bytes()
	if len(b) != 8 {
		t.Fatalf("Bytes() length = %d, want 8", len(b))
	}
	if !bytes.Equal(b, []byte{0, 0, 0, 6, 0, 0, 0, 0x16}) {
		t.Fatalf("Bytes() = % x", b)
	}
}

func TestFromBytesRejectsOtherLengths(t *testing.T) {
	if _, err := FromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatalf("want error for 3-byte input")
	}
	if _, err := FromBytes(make([]byte, 9)); err == nil {
		t.Fatalf("want error for 9-byte input")
	}
}

func TestParseAndString(t *testing.T) {
	const canonical = "0000'000b'0000'8402"
	u, err := Parse(canonical)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u != CPINMSID {
		t.Fatalf("Parse(%q) = %v, want C_PIN::MSID", canonical, u)
	}
	back, err := Parse(u.String())
	if err != nil || back != u {
		t.Fatalf("String/Parse round trip: %v %v", back, err)
	}
	if _, err := Parse("zz"); err == nil {
		t.Fatalf("want error for non-hex input")
	}
}

func TestContainingTable(t *testing.T) {
	if got := CPINMSID.ContainingTable(); got != TableCPIN {
		t.Fatalf("ContainingTable(C_PIN::MSID) = %v, want C_PIN table", got)
	}
	if got := GlobalRange.ContainingTable(); got != TableLocking {
		t.Fatalf("ContainingTable(GlobalRange) = %v, want Locking table", got)
	}
}

func TestToDescriptor(t *testing.T) {
	// Table 0x0000'000B'0000'0000 describes itself at row
	// 0x0000'0001'0000'000B of the Table table.
	desc := TableCPIN.ToDescriptor()
	want := mustParse("000000010000000B")
	if desc != want {
		t.Fatalf("ToDescriptor = %v, want %v", desc, want)
	}
	// A descriptor row lives in the Table table.
	if desc.ContainingTable() != TableTable {
		t.Fatalf("descriptor's containing table = %v, want Table", desc.ContainingTable())
	}
}

func TestNull(t *testing.T) {
	if !Null.IsNull() {
		t.Fatalf("Null must report IsNull")
	}
	if SessionManager.IsNull() {
		t.Fatalf("SessionManager must not report IsNull")
	}
}
