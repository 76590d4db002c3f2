package table

import "github.com/outerbridge/tcgstorage/uid"

// Type UIDs for the handful of column types this module resolves names
// against. These are module-local identifiers (not on-wire UIDs); they
// only need to be stable keys into a Collection's type table.
var (
	typeUIDBytes  = mustType("0000000500000001")
	typeUIDUint   = mustType("0000000500000002")
	typeUIDBool   = mustType("0000000500000003")
	typeUIDName   = mustType("0000000500000004")
	typeUIDRowRef = mustType("0000000500000005")
)

func mustType(s string) uid.UID {
	u, err := uid.Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// coreModule returns the Core Specification's generic tables: Table,
// SP, Authority, C_PIN, the method/session-manager names every SSC
// shares. Grounded on the teacher's pkg/core/table/{table,admin,cpin,
// thissp}.go naming (column indices/names mirror CPINInfoRow,
// Admin_TPerInfoRow) and the well-known UID set in package uid.
func coreModule() Module {
	m := newStaticModule("Core")

	m.addType(typeUIDBytes, &Type{Kind: TypeBytes})
	m.addType(typeUIDUint, &Type{Kind: TypeInteger, Width: 8, Signed: false})
	m.addType(typeUIDBool, &Type{Kind: TypeEnumeration, Ranges: []Range{{0, 1}}, Names: map[uint64]string{0: "False", 1: "True"}})
	m.addType(typeUIDName, &Type{Kind: TypeBytes})
	m.addType(typeUIDRowRef, &Type{Kind: TypeGeneralReference, GeneralRefKind: "object"})

	m.addTable(&Desc{
		UID:  uid.TableTable,
		Name: "Table",
		Kind: KindObject,
		Columns: []ColumnDesc{
			{Name: "UID", IsUnique: true, Type: typeUIDBytes},
			{Name: "Name", Type: typeUIDName},
			{Name: "CommonName", Type: typeUIDName},
			{Name: "TemplateID", Type: typeUIDRowRef},
			{Name: "Kind", Type: typeUIDUint},
			{Name: "Column", Type: typeUIDUint},
			{Name: "NumColumns", Type: typeUIDUint},
			{Name: "Rows", Type: typeUIDUint},
			{Name: "RowsFree", Type: typeUIDUint},
			{Name: "RowBytes", Type: typeUIDUint},
			{Name: "LastID", Type: typeUIDUint},
			{Name: "MinSize", Type: typeUIDUint},
			{Name: "MaxSize", Type: typeUIDUint},
		},
	})

	m.addTable(&Desc{
		UID:  uid.TableSP,
		Name: "SP",
		Kind: KindObject,
		Columns: []ColumnDesc{
			{Name: "UID", IsUnique: true, Type: typeUIDBytes},
			{Name: "Name", Type: typeUIDName},
			{Name: "ORG", Type: typeUIDRowRef},
			{Name: "EffectiveAuth", Type: typeUIDUint},
			{Name: "DateofIssue", Type: typeUIDBytes},
			{Name: "Bytes", Type: typeUIDUint},
			{Name: "LifeCycleState", Type: typeUIDUint},
			{Name: "Frozen", Type: typeUIDBool},
		},
	})

	m.addTable(&Desc{
		UID:  uid.TableAuthority,
		Name: "Authority",
		Kind: KindObject,
		Columns: []ColumnDesc{
			{Name: "UID", IsUnique: true, Type: typeUIDBytes},
			{Name: "Name", Type: typeUIDName},
			{Name: "CommonName", Type: typeUIDName},
			{Name: "IsClass", Type: typeUIDBool},
			{Name: "Class", Type: typeUIDRowRef},
			{Name: "Enabled", Type: typeUIDBool},
			{Name: "Secure", Type: typeUIDUint},
			{Name: "HashAndSign", Type: typeUIDUint},
			{Name: "PresentCertificate", Type: typeUIDBool},
			{Name: "Operation", Type: typeUIDUint},
			{Name: "Credential", Type: typeUIDRowRef},
		},
	})

	m.addTable(&Desc{
		UID:  uid.TableCPIN,
		Name: "C_PIN",
		Kind: KindObject,
		Columns: []ColumnDesc{
			{Name: "UID", IsUnique: true, Type: typeUIDBytes},
			{Name: "Name", Type: typeUIDName},
			{Name: "CommonName", Type: typeUIDName},
			{Name: "PIN", Type: typeUIDBytes},
			{Name: "CharSet", Type: typeUIDRowRef},
			{Name: "TryLimit", Type: typeUIDUint},
			{Name: "Tries", Type: typeUIDUint},
			{Name: "Persistence", Type: typeUIDBool},
		},
	})

	m.add("Authority", "Anybody", uid.AuthorityAnybody)
	m.add("Authority", "SID", uid.AuthoritySID)
	m.add("Authority", "PSID", uid.AuthorityPSID)

	m.add("Method", "Properties", uid.MethodIDProperties)
	m.add("Method", "StartSession", uid.MethodIDStartSession)
	m.add("Method", "SyncSession", uid.MethodIDSyncSession)
	m.add("Method", "CloseSession", uid.MethodIDCloseSession)
	m.add("Method", "Next", uid.MethodIDNext)
	m.add("Method", "GetACL", uid.MethodIDGetACL)
	m.add("Method", "GenKey", uid.MethodIDGenKey)
	m.add("Method", "Get", uid.MethodIDGet)
	m.add("Method", "Set", uid.MethodIDSet)
	m.add("Method", "Authenticate", uid.MethodIDAuthenticate)
	m.add("Method", "Revert", uid.MethodIDRevert)
	m.add("Method", "Activate", uid.MethodIDActivate)

	m.add("InvokingID", "SessionManager", uid.SessionManager)
	m.add("InvokingID", "ThisSP", uid.InvokeIDThisSP)

	return m
}
