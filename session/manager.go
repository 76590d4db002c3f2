package session

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/outerbridge/tcgstorage/core"
	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/method"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// ControlSessionOpt configures NewControlSession.
type ControlSessionOpt func(*controlSessionConfig)

type controlSessionConfig struct {
	hostProperties HostProperties
	skipReset      bool
}

// WithHostProperties overrides the proposed HostProperties instead of
// InitialHostProperties.
func WithHostProperties(hp HostProperties) ControlSessionOpt {
	return func(c *controlSessionConfig) { c.hostProperties = hp }
}

// WithoutStackReset skips the best-effort StackReset NewControlSession
// otherwise issues before negotiating properties, for peripherals or
// test doubles that don't support it.
func WithoutStackReset() ControlSessionOpt {
	return func(c *controlSessionConfig) { c.skipReset = true }
}

// NewControlSession binds a ControlSession to p: it best-effort resets
// the ComID's stack state (a prior host's abandoned session can
// otherwise wedge the peripheral), then negotiates HostProperties against
// the peripheral's TPerProperties over the HSN=0/TSN=0 control channel.
func NewControlSession(ctx context.Context, p *core.Peripheral, opts ...ControlSessionOpt) (*ControlSession, error) {
	cfg := controlSessionConfig{hostProperties: InitialHostProperties}
	for _, o := range opts {
		o(&cfg)
	}

	if !cfg.skipReset {
		p.Reset(ctx) // best-effort: some peripherals refuse StackReset outside a prior wedged state
	}

	cs := &ControlSession{
		Peripheral:     p,
		HostProperties: cfg.hostProperties,
		TPerProperties: InitialTPerProperties,
	}
	if err := cs.negotiateProperties(ctx); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *ControlSession) negotiateProperties(ctx context.Context) error {
	call := method.NewCall(uid.SessionManager, uid.MethodIDProperties)
	hp := cs.HostProperties
	call.Arg(stream.NewNamed(stream.NewUint(0), // "HostProperties" bag, keyed positionally by name in the response
		stream.NewList(
			stream.NewNamed(stream.NewBytes([]byte("MaxComPacketSize")), stream.NewUint(uint64(hp.MaxComPacketSize))),
			stream.NewNamed(stream.NewBytes([]byte("MaxResponseComPacketSize")), stream.NewUint(uint64(hp.MaxResponseComPacketSize))),
			stream.NewNamed(stream.NewBytes([]byte("MaxPacketSize")), stream.NewUint(uint64(hp.MaxPacketSize))),
			stream.NewNamed(stream.NewBytes([]byte("MaxIndTokenSize")), stream.NewUint(uint64(hp.MaxIndTokenSize))),
			stream.NewNamed(stream.NewBytes([]byte("MaxPackets")), stream.NewUint(uint64(hp.MaxPackets))),
			stream.NewNamed(stream.NewBytes([]byte("MaxSubpackets")), stream.NewUint(uint64(hp.MaxSubpackets))),
			stream.NewNamed(stream.NewBytes([]byte("MaxMethods")), stream.NewUint(uint64(hp.MaxMethods))),
		),
	))

	result, err := invoke(ctx, cs.Peripheral, 0, 0, call, "Properties")
	if err != nil {
		return err
	}
	tp := cs.TPerProperties
	for _, v := range result.Values {
		list, lerr := v.List()
		if lerr != nil {
			continue
		}
		for _, pair := range list {
			name, val, nerr := pair.Named()
			if nerr != nil {
				continue
			}
			nb, berr := name.Bytes()
			if berr != nil {
				continue
			}
			n, _ := val.Uint()
			switch string(nb) {
			case "MaxComPacketSize":
				tp.MaxComPacketSize = uint32(n)
			case "MaxResponseComPacketSize":
				tp.MaxResponseComPacketSize = uint32(n)
			case "MaxPacketSize":
				tp.MaxPacketSize = uint32(n)
			case "MaxIndTokenSize":
				tp.MaxIndTokenSize = uint32(n)
			case "MaxPackets":
				tp.MaxPackets = uint32(n)
			case "MaxSubpackets":
				tp.MaxSubpackets = uint32(n)
			case "MaxMethods":
				tp.MaxMethods = uint32(n)
			case "MaxSessions":
				tp.MaxSessions = uint32(n)
			}
		}
	}
	cs.TPerProperties = tp
	return nil
}

// SessionOpt configures NewSession.
type SessionOpt func(*sessionConfig)

type sessionConfig struct {
	readOnly         bool
	hostChallenge    []byte
	hostSigningAuth  uid.UID
	hasHostSigningAuth bool
	sessionTimeoutMS uint64
	hasTimeout       bool
	protocolLevel    ProtocolLevel
}

// WithReadOnly opens the session read-only.
func WithReadOnly() SessionOpt { return func(c *sessionConfig) { c.readOnly = true } }

// WithHostChallenge supplies the authenticating credential inline on
// StartSession, skipping a separate Authenticate call.
func WithHostChallenge(challenge []byte, signingAuthority uid.UID) SessionOpt {
	return func(c *sessionConfig) {
		c.hostChallenge = challenge
		c.hostSigningAuth = signingAuthority
		c.hasHostSigningAuth = true
	}
}

// WithSessionTimeout sets the optional SessionTimeout StartSession
// parameter (milliseconds), governing peripheral-side session reclaim.
func WithSessionTimeout(ms uint64) SessionOpt {
	return func(c *sessionConfig) {
		c.sessionTimeoutMS = ms
		c.hasTimeout = true
	}
}

// WithProtocolLevel pins the dialect NewSession assumes instead of
// defaulting to ProtocolCore; callers that already know the SSC from
// Level0Discovery should set this explicitly.
func WithProtocolLevel(l ProtocolLevel) SessionOpt {
	return func(c *sessionConfig) { c.protocolLevel = l }
}

// NewSession opens a session against spID: it picks a random nonzero
// host session number, issues StartSession over the control channel,
// and returns the Session the peripheral's SyncSession response
// confirms.
func (cs *ControlSession) NewSession(ctx context.Context, spID uid.UID, opts ...SessionOpt) (*Session, error) {
	cfg := sessionConfig{protocolLevel: ProtocolCore}
	for _, o := range opts {
		o(&cfg)
	}
	cs.ProtocolLevel = cfg.protocolLevel

	var write uint64
	if !cfg.readOnly {
		write = 1
	}
	hsn := randomHSN()
	call := method.NewCall(uid.SessionManager, uid.MethodIDStartSession).
		UInt(uint64(hsn)).
		Bytes(spID[:]).
		UInt(write)

	// Optional parameter keys follow the StartSession signature:
	// HostChallenge=0, HostSigningAuthority=3, SessionTimeout=5.
	if len(cfg.hostChallenge) > 0 {
		call.NamedBytes(0, cfg.hostChallenge)
	}
	if cfg.hasHostSigningAuth {
		call.NamedBytes(3, cfg.hostSigningAuth[:])
	}
	if cfg.hasTimeout {
		call.NamedUInt(5, cfg.sessionTimeoutMS)
	}

	result, err := invoke(ctx, cs.Peripheral, 0, 0, call, "StartSession")
	if err != nil {
		return nil, err
	}
	if len(result.Values) < 2 {
		return nil, &errs.Protocol{Cause: fmt.Errorf("session: SyncSession result too short: %d values", len(result.Values))}
	}
	gotHSN, err := result.Values[0].Uint()
	if err != nil {
		return nil, &errs.Protocol{Cause: fmt.Errorf("session: SyncSession HSN: %w", err)}
	}
	tsn, err := result.Values[1].Uint()
	if err != nil {
		return nil, &errs.Protocol{Cause: fmt.Errorf("session: SyncSession TSN: %w", err)}
	}
	if uint32(gotHSN) != hsn {
		return nil, &errs.Protocol{Cause: fmt.Errorf("session: SyncSession HSN mismatch: sent %d, got %d", hsn, gotHSN)}
	}
	return &Session{cs: cs, HSN: hsn, TSN: uint32(tsn), SPID: spID, ReadOnly: cfg.readOnly}, nil
}

func randomHSN() uint32 {
	for {
		h := rand.Uint32()
		if h != 0 {
			return h
		}
	}
}
