// Package uid defines the 8-byte object identifier used throughout the
// TCG object model, its table/descriptor helpers, and the well-known UIDs
// a host needs without a full specification-module lookup.
package uid

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// UID is an opaque 64-bit identifier, big-endian on the wire. By
// convention the high 32 bits denote a container (table or kind) and the
// low 32 bits denote the object's index within it.
type UID [8]byte

// Null is the sentinel UID(0), used both as "no value" and as the
// cursor-exhausted marker returned by Next.
var Null UID

// IsNull reports whether u is the zero UID.
func (u UID) IsNull() bool { return u == Null }

// Bytes returns the 8-byte big-endian wire representation.
func (u UID) Bytes() []byte { return append([]byte(nil), u[:]...) }

// FromBytes parses an 8-byte big-endian UID. It errors on any other length.
func FromBytes(b []byte) (UID, error) {
	var u UID
	if len(b) != 8 {
		return u, fmt.Errorf("uid: want 8 bytes, got %d", len(b))
	}
	copy(u[:], b)
	return u, nil
}

// High returns the high 32 bits (the container/table half).
func (u UID) High() uint32 { return binary.BigEndian.Uint32(u[0:4]) }

// Low returns the low 32 bits (the object index half).
func (u UID) Low() uint32 { return binary.BigEndian.Uint32(u[4:8]) }

func fromHalves(hi, lo uint32) UID {
	var u UID
	binary.BigEndian.PutUint32(u[0:4], hi)
	binary.BigEndian.PutUint32(u[4:8], lo)
	return u
}

// ContainingTable returns the table UID that contains the object u
// belongs to: the object's high half becomes a table UID of the form
// 0x0000'xxxx'0000'0000.
func (u UID) ContainingTable() UID {
	return fromHalves(u.High(), 0)
}

// ToDescriptor converts a table UID (0x0000'xxxx'0000'0000) to its
// descriptor-object UID (0x0000'0001'0000'xxxx).
func (u UID) ToDescriptor() UID {
	tableID := u.High() & 0x0000FFFF
	return fromHalves(0x00000001, tableID)
}

// String renders the canonical hex form AAAA'BBBB'CCCC'DDDD.
func (u UID) String() string {
	h := hex.EncodeToString(u[:])
	return fmt.Sprintf("%s'%s'%s'%s", h[0:4], h[4:8], h[8:12], h[12:16])
}

// Parse reads a UID from either the canonical "AAAA'BBBB'CCCC'DDDD" form or
// a bare 16-hex-digit string.
func Parse(s string) (UID, error) {
	clean := strings.ReplaceAll(s, "'", "")
	clean = strings.ReplaceAll(clean, " ", "")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return UID{}, fmt.Errorf("uid: parse %q: %w", s, err)
	}
	return FromBytes(b)
}

func mustParse(s string) UID {
	u, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Well-known invoking IDs.
var (
	InvokeIDNull   = Null
	InvokeIDThisSP = mustParse("0000000000000001")
)

// SessionManager is the fixed invoking ID the session-manager methods
// (Properties, StartSession, SyncSession, CloseSession) are invoked on.
var SessionManager = mustParse("00000000000000FF")

// Session-manager method IDs.
var (
	MethodIDProperties   = mustParse("000000000000FF01")
	MethodIDStartSession = mustParse("000000000000FF02")
	MethodIDSyncSession  = mustParse("000000000000FF03")
	MethodIDCloseSession = mustParse("000000000000FF06")
)

// SP-scoped method IDs, fixed across SPs.
var (
	MethodIDNext         = mustParse("0000000600000008")
	MethodIDGetACL       = mustParse("000000060000000D")
	MethodIDGenKey       = mustParse("0000000600000010")
	MethodIDGet          = mustParse("0000000600000016")
	MethodIDSet          = mustParse("0000000600000017")
	MethodIDAuthenticate = mustParse("000000060000001C")
	MethodIDRevert       = mustParse("0000000600000202")
	MethodIDActivate     = mustParse("0000000600000203")
	MethodIDRandom       = mustParse("0000000600000601")
)

// Table UIDs.
var (
	TableTable      = mustParse("0000000100000000")
	TableSP         = mustParse("0000020500000000")
	TableAuthority  = mustParse("0000000900000000")
	TableCPIN       = mustParse("0000000B00000000")
	TableLocking    = mustParse("0000080200000000")
	TableMBRControl = mustParse("0000080300000000")
	TableKAES256    = mustParse("0000080600000000")
)

// SP UIDs (Opal family).
var (
	AdminSP   = mustParse("0000020500000001")
	LockingSP = mustParse("0000020500000002")
)

// Authority UIDs.
var (
	AuthorityAnybody             = mustParse("0000000900000001")
	AuthoritySID                 = mustParse("0000000900000006")
	AuthorityPSID                = mustParse("000000090001FF01")
	LockingAuthorityBandMaster0  = mustParse("0000000900008001")
	LockingAuthorityAdmin1       = mustParse("0000000900010001")
)

// C_PIN row UIDs.
var (
	CPINMSID   = mustParse("0000000B00008402")
	CPINSID    = mustParse("0000000B00000001")
	CPINAdmin1 = mustParse("0000000B00010001")
)

// GlobalRange is the row UID of the Locking table's always-present global
// range.
var GlobalRange = mustParse("0000080200000001")

// RowMBRControl is the MBRControl table's single row, always present
// regardless of how a caller iterates the table (see TableDesc.SingleRow
// in package table).
var RowMBRControl = mustParse("0000080300000001")

// RowMBR is the row within the Locking SP's byte-addressed MBR table
// that Get/Set with a row-offset cell block reads and writes.
var RowMBR = mustParse("0000080400000000")

// TableMBR is the byte-addressed shadow MBR table itself.
var TableMBR = mustParse("0000080400000000")
