package device

import (
	"context"
	"fmt"

	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/method"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/table"
	"github.com/outerbridge/tcgstorage/uid"
)

// lockingActiveKeyColumn is the Locking table's ActiveKey column,
// holding the K_AES_256 object UID whose key GenMEK regenerates.
const lockingActiveKeyColumn = 10

// cpinColumnPIN is the C_PIN table's PIN column.
const cpinColumnPIN = 3

// GenMEK regenerates lockingRange's media encryption key by reading its
// ActiveKey column (the K_AES_256 object backing it) and invoking GenKey
// on that object. The old key is destroyed as soon as the peripheral
// executes this: a fast cryptographic erase of whatever was encrypted
// under it.
func (e *EncryptedDevice) GenMEK(ctx context.Context, lockingRange uid.UID) error {
	s, err := e.session()
	if err != nil {
		return err
	}
	v, err := table.GetColumn(ctx, s, lockingRange, lockingActiveKeyColumn)
	if err != nil {
		return err
	}
	keyBytes, err := v.Bytes()
	if err != nil {
		return &errs.Type{Cause: fmt.Errorf("device: GenMEK: ActiveKey column: %w", err)}
	}
	keyObj, err := uid.FromBytes(keyBytes)
	if err != nil {
		return &errs.Protocol{Cause: err}
	}
	return s.GenKey(ctx, keyObj)
}

// GenPIN generates length cryptographically random bytes with the
// peripheral's Random method and stores them as credObj's PIN column,
// returning the generated PIN so the caller can record or display it.
// credObj is typically a C_PIN table row (e.g. uid.CPINAdmin1).
func (e *EncryptedDevice) GenPIN(ctx context.Context, credObj uid.UID, length int) ([]byte, error) {
	s, err := e.session()
	if err != nil {
		return nil, err
	}
	call := method.NewCall(uid.InvokeIDThisSP, uid.MethodIDRandom).UInt(uint64(length))
	result, err := s.ExecuteMethod(ctx, call, "Random")
	if err != nil {
		return nil, err
	}
	if len(result.Values) == 0 {
		return nil, &errs.Protocol{Cause: fmt.Errorf("device: GenPIN: Random returned no value")}
	}
	pin, err := result.Values[0].Bytes()
	if err != nil {
		return nil, &errs.Type{Cause: fmt.Errorf("device: GenPIN: Random result: %w", err)}
	}
	if err := table.SetColumn(ctx, s, credObj, cpinColumnPIN, stream.NewBytes(pin)); err != nil {
		return nil, err
	}
	return pin, nil
}
