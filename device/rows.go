package device

import (
	"context"

	"github.com/outerbridge/tcgstorage/session"
	"github.com/outerbridge/tcgstorage/uid"
)

// RowSeq lazily walks a table's rows one Next call at a time: a finite,
// forward-only, non-restartable sequence bound to the session that
// produced it (spec §9's generator-style stream). Calling Next after the
// owning session has closed returns whatever error the peripheral gives
// for a method call on a dead session.
type RowSeq struct {
	s         *session.Session
	table     uid.UID
	singleRow uid.UID // non-null short-circuits to exactly one row
	emitted   bool

	buf  []uid.UID
	idx  int
	last uid.UID
	done bool
}

// GetTableRows returns a RowSeq over t's rows in the current session.
// Tables with a single fixed row (MBRControl) short-circuit to it
// without issuing a Next call, matching how the peripheral itself treats
// that table.
func (e *EncryptedDevice) GetTableRows(ctx context.Context, t uid.UID) (*RowSeq, error) {
	s, err := e.session()
	if err != nil {
		return nil, err
	}
	seq := &RowSeq{s: s, table: t}
	if d, ok := e.modules.FindTable(t); ok && !d.SingleRow.IsNull() {
		seq.singleRow = d.SingleRow
	}
	return seq, nil
}

// Next returns the next row UID, or ok=false once the table is
// exhausted.
func (r *RowSeq) Next(ctx context.Context) (u uid.UID, ok bool, err error) {
	if !r.singleRow.IsNull() {
		if r.emitted {
			return uid.Null, false, nil
		}
		r.emitted = true
		return r.singleRow, true, nil
	}
	if r.done {
		return uid.Null, false, nil
	}
	if r.idx >= len(r.buf) {
		rows, err := r.s.Next(ctx, r.table, r.last, 0)
		if err != nil {
			return uid.Null, false, err
		}
		if len(rows) == 0 {
			r.done = true
			return uid.Null, false, nil
		}
		r.buf = rows
		r.idx = 0
		r.last = rows[len(rows)-1]
	}
	u = r.buf[r.idx]
	r.idx++
	if u.IsNull() {
		r.done = true
		return uid.Null, false, nil
	}
	return u, true, nil
}
