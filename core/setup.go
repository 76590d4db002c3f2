package core

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/outerbridge/tcgstorage/drive"
)

// ComIDState is the peripheral-reported state of an allocated ComID.
type ComIDState uint32

const (
	ComIDInvalid     ComIDState = 0
	ComIDInactive    ComIDState = 1
	ComIDIssued      ComIDState = 2
	ComIDAssociated  ComIDState = 3
)

// StackResetStatus is the peripheral's response to a StackReset request.
type StackResetStatus uint32

const (
	StackResetSuccess StackResetStatus = 0
	StackResetFailure StackResetStatus = 1
)

const (
	requestCodeVerifyComIDValid uint32 = 1
	requestCodeStackReset       uint32 = 2
)

// VerifyComIDValid issues a VerifyComIdValid request on security protocol
// 0x02 and returns the reported ComID state.
func VerifyComIDValid(ctx context.Context, d drive.Interface, comID, comIDExt uint16) (ComIDState, error) {
	req := make([]byte, 8)
	binary.BigEndian.PutUint16(req[0:2], comID)
	binary.BigEndian.PutUint16(req[2:4], comIDExt)
	binary.BigEndian.PutUint32(req[4:8], requestCodeVerifyComIDValid)

	resp, err := handleComIDRequest(ctx, d, comID, comIDExt, req)
	if err != nil {
		return ComIDInvalid, err
	}
	if len(resp) < 4 {
		return ComIDInvalid, fmt.Errorf("core: VerifyComIdValid: short response")
	}
	return ComIDState(binary.BigEndian.Uint32(resp[0:4])), nil
}

// StackReset issues a StackReset request on security protocol 0x02. On
// StackResetSuccess the peripheral has discarded all ComID state; the host
// must re-run session setup.
func StackReset(ctx context.Context, d drive.Interface, comID, comIDExt uint16) (StackResetStatus, error) {
	req := make([]byte, 8)
	binary.BigEndian.PutUint16(req[0:2], comID)
	binary.BigEndian.PutUint16(req[2:4], comIDExt)
	binary.BigEndian.PutUint32(req[4:8], requestCodeStackReset)

	resp, err := handleComIDRequest(ctx, d, comID, comIDExt, req)
	if err != nil {
		return StackResetFailure, err
	}
	if len(resp) < 4 {
		return StackResetFailure, fmt.Errorf("core: StackReset: short response")
	}
	return StackResetStatus(binary.BigEndian.Uint32(resp[0:4])), nil
}

// handleComIDRequest sends req on security protocol 0x02 under comID and
// reads the fixed-size response, extracting the payload past the 12-byte
// response header (the two-byte length field at offset 10 bounds it).
func handleComIDRequest(ctx context.Context, d drive.Interface, comID, comIDExt uint16, req []byte) ([]byte, error) {
	protocolSpecific := comID
	if err := d.SecuritySend(ctx, drive.ProtocolComIDManagement, protocolSpecific, req); err != nil {
		return nil, fmt.Errorf("core: setup channel send: %w", err)
	}
	buf := make([]byte, 512)
	n, err := d.SecurityReceive(ctx, drive.ProtocolComIDManagement, protocolSpecific, buf)
	if err != nil {
		return nil, fmt.Errorf("core: setup channel receive: %w", err)
	}
	buf = buf[:n]
	if len(buf) < 12 {
		return nil, fmt.Errorf("core: setup channel response too short")
	}
	length := int(binary.BigEndian.Uint16(buf[10:12]))
	if len(buf) < 12+length {
		return nil, fmt.Errorf("core: setup channel response truncated")
	}
	return buf[12 : 12+length], nil
}
