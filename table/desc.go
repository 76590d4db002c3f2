package table

import "github.com/outerbridge/tcgstorage/uid"

// Kind distinguishes an Object table (rows addressed by an arbitrary
// UID the peripheral assigns) from a Byte table (a single row of
// addressable byte offsets, used by the Locking SP's MBR table).
type Kind uint8

const (
	KindObject Kind = iota
	KindByte
)

// ColumnDesc names one column of a TableDesc.
type ColumnDesc struct {
	Name     string
	IsUnique bool
	Type     uid.UID // key into a Collection's type table
}

// Desc describes one table of the object model (spec §3's TableDesc).
// If SingleRow is non-null, the table exposes exactly that row
// regardless of how a caller iterates it (e.g. the MBRControl table
// always has exactly the MBRControl object as its one row).
type Desc struct {
	UID       uid.UID
	Name      string
	Kind      Kind
	SingleRow uid.UID
	Columns   []ColumnDesc
}

// Column looks up a column by name, used by name-based Get/Set helpers.
func (d *Desc) Column(name string) (ColumnDesc, int, bool) {
	for i, c := range d.Columns {
		if c.Name == name {
			return c, i, true
		}
	}
	return ColumnDesc{}, 0, false
}
