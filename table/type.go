// Package table implements the C9 module/name-resolution layer: the
// specification-driven tables of UIDs, names, column descriptors, and
// type descriptors that let a caller address a TCG object by a
// human-meaningful name instead of an 8-byte UID, plus a handful of
// well-known table operations (MBR, SP lifecycle) layered on top of the
// session's generic Get/Set/Next.
package table

import "github.com/outerbridge/tcgstorage/uid"

// TypeKind discriminates the Type tagged union (spec §3).
type TypeKind uint8

const (
	TypeInteger TypeKind = iota
	TypeBytes
	TypeEnumeration
	TypeAlternative
	TypeList
	TypeStruct
	TypeSet
	TypeRestrictedReference
	TypeGeneralReference
)

// Range is an inclusive [Low, High] bound, used by Enumeration and Set
// types to describe the legal values/positions a column may hold.
type Range struct {
	Low, High uint64
}

// StructField names one element of a Struct type; Optional elements may
// be absent from the encoded value (surfacing as a Named pair rather
// than a bare positional value).
type StructField struct {
	Name     string
	Type     uid.UID // key into a Collection's type table
	Optional bool
}

// Type is the structural description of an on-wire value (spec §3). A
// Type may itself carry an identifying UID (for Alternative members);
// that UID, along with every other UID referenced by a Type (element
// types, struct fields, restricted-reference tables), is stored as a
// plain uid.UID and resolved lazily against the owning Collection's
// type table rather than as a Go pointer, so that cyclic references
// between tables (a reference column whose target table itself has
// reference columns) never need unsafe recursive construction.
type Type struct {
	Kind TypeKind

	// Integer
	Width  int
	Signed bool

	// Bytes
	Length      int
	FixedLength bool

	// Enumeration / Set
	Ranges []Range
	Names  map[uint64]string

	// Alternative / List / Struct element types (UIDs into the owning
	// Collection's type table)
	Elems  []uid.UID
	Fields []StructField

	// RestrictedReference
	RefTables []uid.UID
	RefKind   string // "object" or "table"

	// GeneralReference
	GeneralRefKind string
}
