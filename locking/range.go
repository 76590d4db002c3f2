// Package locking wraps the device façade's generic column access with
// the Locking SP's domain vocabulary: enumerable Ranges that can be
// locked/unlocked for read and write independently, matching the Opal
// family's band model. Grounded on the teacher's pkg/locking, which
// layers the same vocabulary over its lower-level Session/table calls;
// this package is that layer rebuilt atop the EncryptedDevice façade.
package locking

import (
	"context"
	"fmt"

	"github.com/outerbridge/tcgstorage/device"
	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// Locking table column numbers, fixed by the Opal family's TableDesc
// (see table.opalModule). Kept numeric here rather than resolved by
// name on every call, matching device's own column constants.
const (
	colUID              = 0
	colName             = 1
	colRangeStart       = 3
	colRangeLength      = 4
	colReadLockEnabled  = 5
	colWriteLockEnabled = 6
	colReadLocked       = 7
	colWriteLocked      = 8
	colActiveKey        = 10
)

// Bounds marks a Range's byte or block extent, relative to whatever unit
// the peripheral's RangeStart/RangeLength columns use (LBA for most
// drives). Unset is the zero value for a range whose extent this module
// hasn't read yet.
type Bounds struct {
	Start  uint64
	Length uint64
}

// Range is one row of the Locking table: a lockable extent of the
// backing storage plus its current enablement/lock state. Fields are a
// snapshot taken at Enumerate or Get time; call Refresh to re-read them.
type Range struct {
	d    *device.EncryptedDevice
	UID  uid.UID
	Name string

	Bounds Bounds

	ReadLockEnabled  bool
	WriteLockEnabled bool
	ReadLocked       bool
	WriteLocked      bool

	isGlobal bool
}

// IsGlobalRange reports whether r is the Locking table's always-present
// whole-device range.
func (r *Range) IsGlobalRange() bool { return r.isGlobal }

// Enumerate walks every row of the Locking table in the device's
// currently open session (which must be authenticated against the
// Locking SP) and returns a Range for each, in whatever order the
// peripheral's Next method yields them.
func Enumerate(ctx context.Context, d *device.EncryptedDevice) ([]*Range, error) {
	seq, err := d.GetTableRows(ctx, uid.TableLocking)
	if err != nil {
		return nil, fmt.Errorf("locking: Enumerate: %w", err)
	}
	var out []*Range
	for {
		row, ok, err := seq.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("locking: Enumerate: %w", err)
		}
		if !ok {
			break
		}
		r, err := Get(ctx, d, row)
		if err != nil {
			return nil, fmt.Errorf("locking: Enumerate: row %s: %w", row, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Get reads a single Locking table row's current state by UID. Pass
// uid.GlobalRange for the whole-device range.
func Get(ctx context.Context, d *device.EncryptedDevice, row uid.UID) (*Range, error) {
	r := &Range{d: d, UID: row, isGlobal: row == uid.GlobalRange}

	if v, err := d.GetObjectColumn(ctx, row, colName); err == nil && !v.IsEmpty() {
		if s, err := v.Bytes(); err == nil {
			r.Name = string(s)
		}
	}
	start, err := d.GetObjectColumn(ctx, row, colRangeStart)
	if err != nil {
		return nil, err
	}
	length, err := d.GetObjectColumn(ctx, row, colRangeLength)
	if err != nil {
		return nil, err
	}
	if !start.IsEmpty() {
		if u, err := start.Uint(); err == nil {
			r.Bounds.Start = u
		}
	}
	if !length.IsEmpty() {
		if u, err := length.Uint(); err == nil {
			r.Bounds.Length = u
		}
	}

	if err := r.refreshFlags(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Range) refreshFlags(ctx context.Context) error {
	vals, err := readBools(ctx, r.d, r.UID, colReadLockEnabled, colWriteLockEnabled, colReadLocked, colWriteLocked)
	if err != nil {
		return err
	}
	r.ReadLockEnabled = vals[0]
	r.WriteLockEnabled = vals[1]
	r.ReadLocked = vals[2]
	r.WriteLocked = vals[3]
	return nil
}

func readBools(ctx context.Context, d *device.EncryptedDevice, row uid.UID, cols ...uint32) ([]bool, error) {
	out := make([]bool, len(cols))
	for i, c := range cols {
		v, err := d.GetObjectColumn(ctx, row, c)
		if err != nil {
			return nil, err
		}
		if v.IsEmpty() {
			continue
		}
		u, err := v.Uint()
		if err != nil {
			return nil, &errs.Type{Cause: fmt.Errorf("locking: column %d not boolean-shaped: %w", c, err)}
		}
		out[i] = u != 0
	}
	return out, nil
}

// Refresh re-reads r's lock/enable flags and bounds from the device,
// overwriting the in-memory snapshot.
func (r *Range) Refresh(ctx context.Context) error {
	fresh, err := Get(ctx, r.d, r.UID)
	if err != nil {
		return err
	}
	*r = *fresh
	return nil
}

// SetReadLockEnabled turns the range's read-lock enforcement on or off.
// Disabling it does not clear ReadLocked; a subsequent enable picks the
// lock state back up.
func (r *Range) SetReadLockEnabled(ctx context.Context, v bool) error {
	if err := r.d.SetObjectColumn(ctx, r.UID, colReadLockEnabled, stream.NewUint(boolToUint(v))); err != nil {
		return fmt.Errorf("locking: SetReadLockEnabled: %w", err)
	}
	r.ReadLockEnabled = v
	return nil
}

// SetWriteLockEnabled turns the range's write-lock enforcement on or off.
func (r *Range) SetWriteLockEnabled(ctx context.Context, v bool) error {
	if err := r.d.SetObjectColumn(ctx, r.UID, colWriteLockEnabled, stream.NewUint(boolToUint(v))); err != nil {
		return fmt.Errorf("locking: SetWriteLockEnabled: %w", err)
	}
	r.WriteLockEnabled = v
	return nil
}

// LockRead locks the range against reads. ReadLockEnabled must already
// be set, or the peripheral rejects the write.
func (r *Range) LockRead(ctx context.Context) error { return r.setReadLocked(ctx, true) }

// UnlockRead unlocks the range for reads.
func (r *Range) UnlockRead(ctx context.Context) error { return r.setReadLocked(ctx, false) }

// LockWrite locks the range against writes.
func (r *Range) LockWrite(ctx context.Context) error { return r.setWriteLocked(ctx, true) }

// UnlockWrite unlocks the range for writes.
func (r *Range) UnlockWrite(ctx context.Context) error { return r.setWriteLocked(ctx, false) }

func (r *Range) setReadLocked(ctx context.Context, v bool) error {
	if err := r.d.SetObjectColumn(ctx, r.UID, colReadLocked, stream.NewUint(boolToUint(v))); err != nil {
		return fmt.Errorf("locking: setReadLocked: %w", err)
	}
	r.ReadLocked = v
	return nil
}

func (r *Range) setWriteLocked(ctx context.Context, v bool) error {
	if err := r.d.SetObjectColumn(ctx, r.UID, colWriteLocked, stream.NewUint(boolToUint(v))); err != nil {
		return fmt.Errorf("locking: setWriteLocked: %w", err)
	}
	r.WriteLocked = v
	return nil
}

// SetBounds changes a non-global range's extent. The global range always
// spans the whole device and cannot be resized.
func (r *Range) SetBounds(ctx context.Context, b Bounds) error {
	if r.isGlobal {
		return &errs.Logic{Msg: "locking: cannot resize the global range"}
	}
	if err := r.d.SetObjectColumn(ctx, r.UID, colRangeStart, stream.NewUint(b.Start)); err != nil {
		return fmt.Errorf("locking: SetBounds: start: %w", err)
	}
	if err := r.d.SetObjectColumn(ctx, r.UID, colRangeLength, stream.NewUint(b.Length)); err != nil {
		return fmt.Errorf("locking: SetBounds: length: %w", err)
	}
	r.Bounds = b
	return nil
}

// GenKey regenerates the range's media encryption key, cryptographically
// erasing everything previously encrypted under it. Thin wrapper over
// EncryptedDevice.GenMEK kept here so callers working in this package's
// vocabulary don't need to reach back into device for it.
func (r *Range) GenKey(ctx context.Context) error {
	return r.d.GenMEK(ctx, r.UID)
}

func boolToUint(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}
