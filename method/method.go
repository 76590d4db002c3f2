// Package method builds and parses TCG method invocations: the
// [InvokingID, MethodID, [args], EndOfData, [status,0,0]] value sequence
// a Session sends to and receives from a Trusted Peripheral.
package method

import (
	"fmt"

	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// Flag controls how optional parameters are encoded in a Call.
type Flag uint8

// FlagOptionalAsName encodes optional parameters as Named values (key,
// value) rather than bare positional values. Enterprise SSC peripherals
// expect bare positional optionals; Opal-family peripherals expect Named.
const FlagOptionalAsName Flag = 1

// Call builds one method invocation's argument list incrementally, then
// serializes it to the wire token sequence a Session sends as a packet
// payload.
type Call struct {
	invokingID uid.UID
	methodID   uid.UID
	args       []stream.Value
}

// NewCall starts a method invocation of methodID on invokingID.
func NewCall(invokingID, methodID uid.UID) *Call {
	return &Call{invokingID: invokingID, methodID: methodID}
}

// Arg appends a positional argument.
func (c *Call) Arg(v stream.Value) *Call {
	c.args = append(c.args, v)
	return c
}

// UInt appends an unsigned integer argument.
func (c *Call) UInt(v uint64) *Call { return c.Arg(stream.NewUint(v)) }

// Int appends a signed integer argument.
func (c *Call) Int(v int64) *Call { return c.Arg(stream.NewInt(v)) }

// Bytes appends a byte-string argument.
func (c *Call) Bytes(b []byte) *Call { return c.Arg(stream.NewBytes(b)) }

// NamedUInt appends a Named(name, uint) argument, used for optional
// method parameters regardless of Flag (the named-parameter convention
// applies to keyword arguments; Flag governs positional-optional
// encoding separately via NamedOrPositional).
func (c *Call) NamedUInt(name uint64, v uint64) *Call {
	return c.Arg(stream.NewNamed(stream.NewUint(name), stream.NewUint(v)))
}

// NamedBool appends a Named(name, 0|1) argument.
func (c *Call) NamedBool(name uint64, v bool) *Call {
	var iv uint64
	if v {
		iv = 1
	}
	return c.NamedUInt(name, iv)
}

// NamedBytes appends a Named(name, bytes) argument.
func (c *Call) NamedBytes(name uint64, b []byte) *Call {
	return c.Arg(stream.NewNamed(stream.NewUint(name), stream.NewBytes(b)))
}

// NamedOrPositional appends v as a Named(name, v) pair under
// FlagOptionalAsName, or as a bare positional v otherwise. This is the
// Enterprise-vs-Opal optional-parameter split spec.md §4.8 describes.
func (c *Call) NamedOrPositional(flags Flag, name uint64, v stream.Value) *Call {
	if flags&FlagOptionalAsName != 0 {
		return c.Arg(stream.NewNamed(stream.NewUint(name), v))
	}
	return c.Arg(v)
}

// List appends a List argument built from vs.
func (c *Call) List(vs ...stream.Value) *Call { return c.Arg(stream.NewList(vs...)) }

// Build serializes the call to its wire token sequence:
//
//	CALL bytes(invokingID) bytes(methodID) [args...] END_OF_DATA [status 0 0]
func (c *Call) Build() []byte {
	var out []byte
	out = append(out, stream.EncodeToken(stream.Call)...)
	out = append(out, stream.Tokenize(stream.NewBytes(c.invokingID[:]))...)
	out = append(out, stream.Tokenize(stream.NewBytes(c.methodID[:]))...)
	out = append(out, stream.Tokenize(stream.NewList(c.args...))...)
	out = append(out, stream.EncodeToken(stream.EndOfData)...)
	out = append(out, stream.Tokenize(stream.NewList(stream.NewUint(0), stream.NewUint(0), stream.NewUint(0)))...)
	return out
}

// StatusCode is the first element of a method result's trailing status
// list, reported by the peripheral for every invocation.
type StatusCode uint8

// Status codes, per the Core Specification's method status table.
const (
	StatusSuccess            StatusCode = 0x00
	StatusNotAuthorized      StatusCode = 0x01
	StatusObsolete0x02       StatusCode = 0x02
	StatusSPBusy             StatusCode = 0x03
	StatusSPFailed           StatusCode = 0x04
	StatusSPDisabled         StatusCode = 0x05
	StatusSPFrozen           StatusCode = 0x06
	StatusNoSessionsAvail    StatusCode = 0x07
	StatusUniquenessConflict StatusCode = 0x08
	StatusInsufficientSpace  StatusCode = 0x09
	StatusInsufficientRows   StatusCode = 0x0A
	StatusInvalidFunction    StatusCode = 0x0B // draft-only in some SSCs
	StatusInvalidParameter   StatusCode = 0x0C
	StatusInvalidReference   StatusCode = 0x0D // draft-only
	StatusUnknownError       StatusCode = 0x0E // draft-only
	StatusTPerMalfunction    StatusCode = 0x0F
	StatusTransactionFailure StatusCode = 0x10
	StatusResponseOverflow   StatusCode = 0x11
	StatusAuthorityLocked    StatusCode = 0x12
	StatusFail               StatusCode = 0x3F
)

var statusNames = map[StatusCode]string{
	StatusSuccess:            "SUCCESS",
	StatusNotAuthorized:      "NOT_AUTHORIZED",
	StatusObsolete0x02:       "OBSOLETE",
	StatusSPBusy:             "SP_BUSY",
	StatusSPFailed:           "SP_FAILED",
	StatusSPDisabled:         "SP_DISABLED",
	StatusSPFrozen:           "SP_FROZEN",
	StatusNoSessionsAvail:    "NO_SESSIONS_AVAILABLE",
	StatusUniquenessConflict: "UNIQUENESS_CONFLICT",
	StatusInsufficientSpace:  "INSUFFICIENT_SPACE",
	StatusInsufficientRows:   "INSUFFICIENT_ROWS",
	StatusInvalidFunction:    "INVALID_FUNCTION",
	StatusInvalidParameter:   "INVALID_PARAMETER",
	StatusInvalidReference:   "INVALID_REFERENCE",
	StatusUnknownError:       "UNKNOWN_ERROR",
	StatusTPerMalfunction:    "TPER_MALFUNCTION",
	StatusTransactionFailure: "TRANSACTION_FAILURE",
	StatusResponseOverflow:   "RESPONSE_OVERFLOW",
	StatusAuthorityLocked:    "AUTHORITY_LOCKED_OUT",
	StatusFail:               "FAIL",
}

// String renders the status code's name, or a hex fallback for codes not
// in the known table (the peripheral is free to use SSC-specific codes
// in the unassigned range).
func (s StatusCode) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("STATUS_0x%02X", uint8(s))
}

// Result is a decoded method response: the values between InvokingID
// (absent, since a result carries no invoking/method IDs) and
// EndOfData, plus the trailing status code.
type Result struct {
	Values []stream.Value
	Status StatusCode
}

// Unsolicited is a CALL-shaped message the peripheral sent without a
// matching request, used to signal the host that it has torn the
// session down (a CloseSession call on SessionManager/MethodIDCloseSession).
type Unsolicited struct {
	InvokingID uid.UID
	MethodID   uid.UID
	Args       []stream.Value
}

// ParseResponse decodes one packet payload's worth of tokens as either a
// normal method Result or, if the payload begins with a CALL token
// rather than a bare value list, an Unsolicited invocation.
func ParseResponse(b []byte) (*Result, *Unsolicited, error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("method: empty response")
	}
	if b[0] == stream.Call {
		u, err := parseUnsolicited(b)
		if err != nil {
			return nil, nil, err
		}
		return nil, u, nil
	}
	r, err := parseResult(b)
	if err != nil {
		return nil, nil, err
	}
	return r, nil, nil
}

func parseUnsolicited(b []byte) (*Unsolicited, error) {
	rest := b[1:] // past CALL
	invV, rest, err := stream.Detokenize(rest)
	if err != nil {
		return nil, fmt.Errorf("method: unsolicited invokingID: %w", err)
	}
	invB, err := invV.Bytes()
	if err != nil {
		return nil, fmt.Errorf("method: unsolicited invokingID: %w", err)
	}
	invokingID, err := uid.FromBytes(invB)
	if err != nil {
		return nil, fmt.Errorf("method: unsolicited invokingID: %w", err)
	}
	methV, rest, err := stream.Detokenize(rest)
	if err != nil {
		return nil, fmt.Errorf("method: unsolicited methodID: %w", err)
	}
	methB, err := methV.Bytes()
	if err != nil {
		return nil, fmt.Errorf("method: unsolicited methodID: %w", err)
	}
	methodID, err := uid.FromBytes(methB)
	if err != nil {
		return nil, fmt.Errorf("method: unsolicited methodID: %w", err)
	}
	argsV, rest, err := stream.Detokenize(rest)
	if err != nil {
		return nil, fmt.Errorf("method: unsolicited args: %w", err)
	}
	args, err := argsV.List()
	if err != nil {
		return nil, fmt.Errorf("method: unsolicited args: %w", err)
	}
	_ = rest // trailing EndOfData/status list not meaningful for a CALL we didn't send
	return &Unsolicited{InvokingID: invokingID, MethodID: methodID, Args: args}, nil
}

func parseResult(b []byte) (*Result, error) {
	var values []stream.Value
	rest := b
	for {
		if len(rest) == 0 {
			return nil, fmt.Errorf("method: response missing EndOfData")
		}
		if rest[0] == stream.EndOfData {
			rest = rest[1:]
			break
		}
		var v stream.Value
		var err error
		v, rest, err = stream.Detokenize(rest)
		if err != nil {
			return nil, fmt.Errorf("method: response value: %w", err)
		}
		values = append(values, v)
	}
	statusV, _, err := stream.Detokenize(rest)
	if err != nil {
		return nil, fmt.Errorf("method: status list: %w", err)
	}
	statusList, err := statusV.List()
	if err != nil {
		return nil, fmt.Errorf("method: status list: %w", err)
	}
	if len(statusList) == 0 {
		return nil, fmt.Errorf("method: empty status list")
	}
	code, err := statusList[0].Uint()
	if err != nil {
		return nil, fmt.Errorf("method: status code: %w", err)
	}
	return &Result{Values: values, Status: StatusCode(code)}, nil
}
