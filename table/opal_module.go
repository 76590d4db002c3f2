package table

import "github.com/outerbridge/tcgstorage/uid"

// opalModule returns the Opal/Pyrite/Opalite/Ruby Locking-family SSC's
// names: the Admin and Locking SPs, their per-SP Authority/C_PIN rows,
// and the Locking-SP-only tables (Locking, MBRControl, K_AES_256).
// Grounded on the teacher's uid.go constant set and cmd/gosedctl's
// take-ownership workflow, which is the one place in the pack that
// walks MSID -> SID -> Admin1 across both SPs explicitly.
func opalModule() Module {
	m := newStaticModule("Opal")

	m.add("SP", "Admin", uid.AdminSP)
	m.add("SP", "Locking", uid.LockingSP)

	// C_PIN::MSID and C_PIN::SID live in the Admin SP's C_PIN table.
	m.addScoped(uid.AdminSP, "C_PIN", "MSID", uid.CPINMSID)
	m.addScoped(uid.AdminSP, "C_PIN", "SID", uid.CPINSID)

	// C_PIN::Admin1 lives in the Locking SP's own C_PIN table instead,
	// so the same member name resolves to a different row depending on
	// which SP the caller scopes the lookup to.
	m.addScoped(uid.LockingSP, "C_PIN", "Admin1", uid.CPINAdmin1)

	m.add("Authority", "SID", uid.AuthoritySID) // re-asserted for SP-independent lookups
	m.addScoped(uid.LockingSP, "Authority", "Admin1", uid.LockingAuthorityAdmin1)
	m.addScoped(uid.LockingSP, "Authority", "BandMaster0", uid.LockingAuthorityBandMaster0)

	m.addTable(&Desc{
		UID:  uid.TableLocking,
		Name: "Locking",
		Kind: KindObject,
		Columns: []ColumnDesc{
			{Name: "UID", IsUnique: true, Type: typeUIDBytes},
			{Name: "Name", Type: typeUIDName},
			{Name: "CommonName", Type: typeUIDName},
			{Name: "RangeStart", Type: typeUIDUint},
			{Name: "RangeLength", Type: typeUIDUint},
			{Name: "ReadLockEnabled", Type: typeUIDBool},
			{Name: "WriteLockEnabled", Type: typeUIDBool},
			{Name: "ReadLocked", Type: typeUIDBool},
			{Name: "WriteLocked", Type: typeUIDBool},
			{Name: "LockOnReset", Type: typeUIDUint},
			{Name: "ActiveKey", Type: typeUIDRowRef},
		},
	})

	m.addTable(&Desc{
		UID:       uid.TableMBRControl,
		Name:      "MBRControl",
		Kind:      KindObject,
		SingleRow: uid.RowMBRControl,
		Columns: []ColumnDesc{
			{Name: "UID", IsUnique: true, Type: typeUIDBytes},
			{Name: "Enable", Type: typeUIDBool},
			{Name: "Done", Type: typeUIDBool},
			{Name: "MBRDoneOnReset", Type: typeUIDUint},
		},
	})

	m.addTable(&Desc{
		UID:  uid.TableKAES256,
		Name: "K_AES_256",
		Kind: KindObject,
		Columns: []ColumnDesc{
			{Name: "UID", IsUnique: true, Type: typeUIDBytes},
			{Name: "Name", Type: typeUIDName},
			{Name: "CommonName", Type: typeUIDName},
			{Name: "Mode", Type: typeUIDUint},
		},
	})

	m.add("Locking", "GlobalRange", uid.GlobalRange)

	return m
}
