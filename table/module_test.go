package table

import (
	"testing"

	"github.com/outerbridge/tcgstorage/uid"
)

func TestFindUIDFindNameRoundTrip(t *testing.T) {
	// For every (name, uid) pair a module registers, FindUID(name) and
	// FindName(uid) must agree in both directions.
	c := Default()
	for _, m := range c.modules {
		sm, ok := m.(*staticModule)
		if !ok {
			continue
		}
		for name := range sm.names {
			got, ok := c.FindUID(name, uid.Null)
			if !ok {
				t.Errorf("%s: FindUID(%q) missing", sm.name, name)
				continue
			}
			// A more specific module may shadow this entry; the shadowing
			// entry must still round-trip back to some name for the UID.
			if _, ok := c.FindName(got, uid.Null); !ok {
				t.Errorf("%s: FindName(%v) missing for name %q", sm.name, got, name)
			}
		}
		for u, name := range sm.byUID {
			if got, ok := c.FindName(u, uid.Null); !ok || got == "" {
				t.Errorf("%s: FindName(%v) missing, want %q", sm.name, u, name)
			}
		}
	}
}

func TestSPScopedResolution(t *testing.T) {
	c := Default()

	msid, ok := c.FindUID("C_PIN::MSID", uid.AdminSP)
	if !ok || msid != uid.CPINMSID {
		t.Fatalf("C_PIN::MSID under Admin SP = %v %v, want %v", msid, ok, uid.CPINMSID)
	}

	admin1, ok := c.FindUID("C_PIN::Admin1", uid.LockingSP)
	if !ok || admin1 != uid.CPINAdmin1 {
		t.Fatalf("C_PIN::Admin1 under Locking SP = %v %v, want %v", admin1, ok, uid.CPINAdmin1)
	}

	// The Admin SP has no C_PIN::Admin1 row.
	if _, ok := c.FindUID("C_PIN::Admin1", uid.AdminSP); ok {
		t.Fatalf("C_PIN::Admin1 must not resolve under the Admin SP")
	}

	// Scoped names resolve back scoped.
	if name, ok := c.FindName(uid.CPINMSID, uid.AdminSP); !ok || name != "C_PIN::MSID" {
		t.Fatalf("FindName(MSID row, Admin SP) = %q %v", name, ok)
	}
}

func TestFindUIDParsesCanonicalHex(t *testing.T) {
	c := Default()
	u, ok := c.FindUID("0000'0205'0000'0002", uid.Null)
	if !ok || u != uid.LockingSP {
		t.Fatalf("canonical hex lookup = %v %v, want Locking SP", u, ok)
	}
}

func TestFindTable(t *testing.T) {
	c := Default()
	d, ok := c.FindTable(uid.TableCPIN)
	if !ok {
		t.Fatalf("C_PIN table descriptor missing")
	}
	col, idx, ok := d.Column("PIN")
	if !ok || idx != 3 {
		t.Fatalf("PIN column = %+v at %d, want index 3", col, idx)
	}
	if ty, ok := c.FindType(col.Type); !ok || ty.Kind != TypeBytes {
		t.Fatalf("PIN column type = %+v %v, want bytes", ty, ok)
	}

	mbr, ok := c.FindTable(uid.TableMBRControl)
	if !ok || mbr.SingleRow.IsNull() {
		t.Fatalf("MBRControl must declare its single fixed row")
	}
}

func TestCollectionDedupAndOrder(t *testing.T) {
	c := NewCollection(opalModule(), coreModule(), opalModule())
	if len(c.modules) != 2 {
		t.Fatalf("dedup by module name failed: %d modules", len(c.modules))
	}
	if c.modules[0].ModuleName() != "Opal" {
		t.Fatalf("SSC module must be consulted before Core, got %q first", c.modules[0].ModuleName())
	}
}
