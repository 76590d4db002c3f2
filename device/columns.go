package device

import (
	"context"

	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/table"
	"github.com/outerbridge/tcgstorage/uid"
)

// Column is one column's decoded value paired with its descriptor.
type Column struct {
	Index int
	Desc  table.ColumnDesc
	Value stream.Value
}

// ColumnSeq lazily reads an object's columns one at a time, in the order
// its TableDesc declares them (spec §9's lazy column sequence).
type ColumnSeq struct {
	e      *EncryptedDevice
	object uid.UID
	desc   *table.Desc
	idx    int
}

// GetObjectColumns returns a ColumnSeq over object's columns, resolved
// via object's containing table's TableDesc. If the containing table
// isn't known to this façade's module Collection, the returned sequence
// is immediately exhausted.
func (e *EncryptedDevice) GetObjectColumns(object uid.UID) *ColumnSeq {
	desc, _ := e.modules.FindTable(object.ContainingTable())
	return &ColumnSeq{e: e, object: object, desc: desc}
}

// Next returns the next column, or ok=false once every declared column
// has been visited. An unset column comes back with an empty Value
// rather than stopping the sequence early.
func (c *ColumnSeq) Next(ctx context.Context) (col Column, ok bool, err error) {
	if c.desc == nil || c.idx >= len(c.desc.Columns) {
		return Column{}, false, nil
	}
	s, serr := c.e.session()
	if serr != nil {
		return Column{}, false, serr
	}
	colDesc := c.desc.Columns[c.idx]
	n := uint32(c.idx)
	c.idx++
	cells, err := s.Get(ctx, c.object, n, n)
	if err != nil {
		return Column{}, false, err
	}
	var v stream.Value
	for _, cell := range cells {
		if cell.Column == n {
			v = cell.Value
		}
	}
	return Column{Index: int(n), Desc: colDesc, Value: v}, true, nil
}

// GetObjectColumn reads a single column of object by number.
func (e *EncryptedDevice) GetObjectColumn(ctx context.Context, object uid.UID, col uint32) (stream.Value, error) {
	s, err := e.session()
	if err != nil {
		return stream.Value{}, err
	}
	return table.GetColumn(ctx, s, object, col)
}

// SetObjectColumn writes a single column of object.
func (e *EncryptedDevice) SetObjectColumn(ctx context.Context, object uid.UID, col uint32, v stream.Value) error {
	s, err := e.session()
	if err != nil {
		return err
	}
	return table.SetColumn(ctx, s, object, col, v)
}
