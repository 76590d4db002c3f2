package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/method"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// Next walks table starting after from (uid.Null to start at the
// beginning), returning up to count row UIDs (0 means "peripheral's
// default page size").
func (s *Session) Next(ctx context.Context, table uid.UID, from uid.UID, count uint64) ([]uid.UID, error) {
	call := method.NewCall(table, uid.MethodIDNext)
	if !from.IsNull() {
		call.NamedBytes(0, from[:])
	}
	if count > 0 {
		call.NamedUInt(1, count)
	}
	result, err := s.ExecuteMethod(ctx, call, "Next")
	if err != nil {
		return nil, err
	}
	if len(result.Values) == 0 {
		return nil, nil // exhausted
	}
	rows, err := result.Values[0].List()
	if err != nil {
		return nil, &errs.Protocol{Cause: fmt.Errorf("session: Next result: %w", err)}
	}
	out := make([]uid.UID, 0, len(rows))
	for _, r := range rows {
		b, err := r.Bytes()
		if err != nil {
			return nil, &errs.Protocol{Cause: fmt.Errorf("session: Next row: %w", err)}
		}
		u, err := uid.FromBytes(b)
		if err != nil {
			return nil, &errs.Protocol{Cause: err}
		}
		out = append(out, u)
	}
	return out, nil
}

// Cell is one (column, value) pair returned by Get or sent to Set.
type Cell struct {
	Column uint32
	Value  stream.Value
}

// Get reads columns [startColumn, endColumn] (inclusive) of object. An
// Enterprise-dialect peripheral wraps the cell-range descriptor in an
// extra list nesting level that the Core dialect omits; ProtocolLevel
// on the session's ControlSession selects which shape to send.
func (s *Session) Get(ctx context.Context, object uid.UID, startColumn, endColumn uint32) ([]Cell, error) {
	cellBlock := stream.NewList(
		stream.NewNamed(stream.NewUint(0), stream.NewUint(uint64(startColumn))), // StartColumn
		stream.NewNamed(stream.NewUint(1), stream.NewUint(uint64(endColumn))),   // EndColumn
	)
	call := method.NewCall(object, uid.MethodIDGet)
	if s.cs.ProtocolLevel == ProtocolEnterprise {
		call.Arg(stream.NewList(cellBlock))
	} else {
		call.Arg(cellBlock)
	}
	result, err := s.ExecuteMethod(ctx, call, "Get")
	if err != nil {
		return nil, err
	}
	if len(result.Values) == 0 {
		return nil, &errs.Protocol{Cause: fmt.Errorf("session: Get: empty result")}
	}
	rowList, err := result.Values[0].List()
	if err != nil {
		return nil, &errs.Protocol{Cause: fmt.Errorf("session: Get result shape: %w", err)}
	}
	var cells []Cell
	for _, item := range rowList {
		name, val, nerr := item.Named()
		if nerr != nil {
			continue
		}
		col, cerr := name.Uint()
		if cerr != nil {
			continue
		}
		cells = append(cells, Cell{Column: uint32(col), Value: val})
	}
	return cells, nil
}

// Set writes cells to object as a single Named(1, [cells...]) argument.
// Unlike Get, the shape does not depend on ProtocolLevel: Enterprise and
// Core sessions send the same form.
func (s *Session) Set(ctx context.Context, object uid.UID, cells []Cell) error {
	var named []stream.Value
	for _, c := range cells {
		named = append(named, stream.NewNamed(stream.NewUint(uint64(c.Column)), c.Value))
	}
	call := method.NewCall(object, uid.MethodIDSet)
	call.Arg(stream.NewNamed(stream.NewUint(1), stream.NewList(named...))) // "Values"
	_, err := s.ExecuteMethod(ctx, call, "Set")
	return err
}

// GenKey regenerates the active encryption key for a K_AES_256 object
// (typically a Locking table row's K_AES_256 column UID).
func (s *Session) GenKey(ctx context.Context, object uid.UID) error {
	call := method.NewCall(object, uid.MethodIDGenKey)
	_, err := s.ExecuteMethod(ctx, call, "GenKey")
	return err
}

// Authenticate proves proof as authority's credential. A credential the
// peripheral rejects (NOT_AUTHORIZED status, or a zero success value)
// surfaces as *errs.Password; transport and protocol failures keep
// their own kinds.
func (s *Session) Authenticate(ctx context.Context, authority uid.UID, proof []byte) error {
	call := method.NewCall(uid.InvokeIDThisSP, uid.MethodIDAuthenticate).
		Bytes(authority[:]).
		NamedBytes(0, proof)
	result, err := s.ExecuteMethod(ctx, call, "Authenticate")
	if err != nil {
		var inv *errs.Invocation
		if errors.As(err, &inv) && inv.Kind == "NOT_AUTHORIZED" {
			return &errs.Password{Authority: authority.String()}
		}
		return err
	}
	if len(result.Values) == 0 {
		return nil // some peripherals return no value on bare success
	}
	ok, verr := result.Values[0].Uint()
	if verr != nil {
		return nil
	}
	if ok == 0 {
		return &errs.Password{Authority: authority.String()}
	}
	return nil
}

// Revert invokes Revert on sp, which the peripheral executes by erasing
// the SP back to its factory state (all of its tables, rows, and keys
// are discarded). The session is implicitly gone afterward; callers
// must not call Close on it.
func (s *Session) Revert(ctx context.Context, sp uid.UID) error {
	call := method.NewCall(sp, uid.MethodIDRevert)
	_, err := s.ExecuteMethod(ctx, call, "Revert")
	return err
}

// Activate transitions sp (typically the Locking SP) from
// Manufactured-Inactive to Manufactured, making its tables usable.
func (s *Session) Activate(ctx context.Context, sp uid.UID) error {
	call := method.NewCall(sp, uid.MethodIDActivate)
	_, err := s.ExecuteMethod(ctx, call, "Activate")
	return err
}
