// Package session implements the session-manager handshake and the
// per-session method-invocation channel: HostProperties/TPerProperties
// negotiation, StartSession/SyncSession, ExecuteMethod, and the
// EndSession close handshake.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/outerbridge/tcgstorage/core"
	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/method"
	"github.com/outerbridge/tcgstorage/metrics"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// ProtocolLevel distinguishes the two method-invocation dialects a
// peripheral may speak: Enterprise SSC (bare positional optionals, a
// different Authenticate/Get/Set argument shape) and the Opal-family
// Core dialect (Named optionals).
type ProtocolLevel int

const (
	ProtocolUnknown ProtocolLevel = iota
	ProtocolEnterprise
	ProtocolCore
)

// HostProperties are the communication parameters the host proposes
// during session-manager Properties negotiation.
type HostProperties struct {
	MaxComPacketSize         uint32
	MaxResponseComPacketSize uint32
	MaxPacketSize            uint32
	MaxIndTokenSize          uint32
	MaxPackets               uint32
	MaxSubpackets            uint32
	MaxMethods               uint32
}

// InitialHostProperties are the values this host proposes before it has
// learned anything about the peripheral, chosen conservatively so any
// compliant TPer accepts them outright.
var InitialHostProperties = HostProperties{
	MaxComPacketSize:         2048,
	MaxResponseComPacketSize: 2048,
	MaxPacketSize:            2028,
	MaxIndTokenSize:          1992,
	MaxPackets:               1,
	MaxSubpackets:            1,
	MaxMethods:               1,
}

// TPerProperties are the communication parameters the peripheral
// reports back, possibly narrower than what the host proposed.
type TPerProperties struct {
	MaxComPacketSize         uint32
	MaxResponseComPacketSize uint32
	MaxPacketSize            uint32
	MaxIndTokenSize          uint32
	MaxPackets               uint32
	MaxSubpackets             uint32
	MaxMethods               uint32
	MaxSessions              uint32
}

// InitialTPerProperties are the minimums the Core Specification
// guarantees every compliant peripheral supports, used until the real
// Properties exchange completes.
var InitialTPerProperties = TPerProperties{
	MaxComPacketSize:         2048,
	MaxResponseComPacketSize: 2048,
	MaxPacketSize:            2028,
	MaxIndTokenSize:          1992,
	MaxPackets:               1,
	MaxSubpackets:            1,
	MaxMethods:               1,
	MaxSessions:              1,
}

// ErrTPerClosedSession is the cause wrapped inside the Invocation(FAIL)
// error ExecuteMethod returns when the peripheral sends an unsolicited
// CloseSession call rather than answering the in-flight method: the
// peripheral has torn the session down on its own initiative (a timeout,
// an internal reset) and the caller must treat the session as Ended.
// Test with errors.Is.
var ErrTPerClosedSession = errors.New("session: tper closed session")

// ControlSession is the fixed HSN=0/TSN=0 channel every Session's
// Properties negotiation and StartSession call travels over, bound to
// one ComID allocation.
type ControlSession struct {
	Peripheral *core.Peripheral

	HostProperties HostProperties
	TPerProperties TPerProperties
	ProtocolLevel  ProtocolLevel
}

// Session is one active HSN/TSN pair, opened against a specific
// Security Provider.
type Session struct {
	cs       *ControlSession
	HSN, TSN uint32
	SPID     uid.UID
	ReadOnly bool
}

// ControlSession returns the control session this Session was opened
// through, used by typed method wrappers that need ProtocolLevel.
func (s *Session) ControlSession() *ControlSession { return s.cs }

// invoke sends call over hsn/tsn and classifies the result: success
// returns the Result; a non-SUCCESS status becomes *errs.Invocation; an
// unsolicited CloseSession becomes Invocation(FAIL) wrapping
// ErrTPerClosedSession; any other unsolicited call becomes
// *errs.Protocol, and a response whose tokens don't parse becomes
// *errs.Format.
func invoke(ctx context.Context, p *core.Peripheral, hsn, tsn uint32, call *method.Call, methodName string) (*method.Result, error) {
	resp, err := p.Exchange(ctx, hsn, tsn, call.Build())
	if err != nil {
		return nil, err // already wrapped in errs.Device/Protocol by Exchange
	}
	result, unsol, err := method.ParseResponse(resp)
	if err != nil {
		return nil, &errs.Format{Cause: fmt.Errorf("session: parsing response to %s: %w", methodName, err)}
	}
	if unsol != nil {
		if unsol.InvokingID == uid.SessionManager && unsol.MethodID == uid.MethodIDCloseSession {
			metrics.ObserveMethodCall(methodName, method.StatusFail.String())
			return nil, &errs.Invocation{Method: methodName, Kind: method.StatusFail.String(), Cause: ErrTPerClosedSession}
		}
		return nil, &errs.Protocol{Cause: fmt.Errorf("session: unsolicited call %s while awaiting %s", unsol.MethodID, methodName)}
	}
	metrics.ObserveMethodCall(methodName, result.Status.String())
	if result.Status != method.StatusSuccess {
		return result, &errs.Invocation{Method: methodName, Kind: result.Status.String()}
	}
	return result, nil
}

// ExecuteMethod invokes call within this session (HSN/TSN already
// bound) and returns its decoded result values on success.
func (s *Session) ExecuteMethod(ctx context.Context, call *method.Call, methodName string) (*method.Result, error) {
	return invoke(ctx, s.cs.Peripheral, s.HSN, s.TSN, call, methodName)
}

// Close performs the EndSession handshake: the host emits the bare
// EndOfSession marker and waits for the peripheral's matching marker.
// The session is unusable after Close returns, regardless of error.
func (s *Session) Close(ctx context.Context) error {
	resp, err := s.cs.Peripheral.Exchange(ctx, s.HSN, s.TSN, []byte{stream.EndOfSession})
	if err != nil {
		return err
	}
	if len(resp) == 0 || resp[0] != stream.EndOfSession {
		return &errs.Protocol{Cause: fmt.Errorf("session: expected EndOfSession acknowledgement, got %v", resp)}
	}
	return nil
}
