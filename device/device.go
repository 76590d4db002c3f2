// Package device implements the single-session EncryptedDevice façade: a
// convenience layer over core/session/table that runs discovery, binds a
// ComID, and exposes Login/Authenticate/Get/Set/GenKey/Revert/Activate as
// plain method calls instead of requiring a caller to hand-build method
// invocations. Grounded on the teacher's cmd/opalctl and cmd/gosedctl,
// both of which wrap the lower layers in exactly this shape for a CLI's
// benefit; this package is that wrapping pulled out as a reusable type.
package device

import (
	"context"
	"fmt"

	"github.com/outerbridge/tcgstorage/core"
	"github.com/outerbridge/tcgstorage/drive"
	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/feature"
	"github.com/outerbridge/tcgstorage/hash"
	"github.com/outerbridge/tcgstorage/metrics"
	"github.com/outerbridge/tcgstorage/session"
	"github.com/outerbridge/tcgstorage/table"
	"github.com/outerbridge/tcgstorage/uid"
)

// sscPreference is the order New tries Level-0 Discovery's advertised SSC
// features, most to least specific. The first one the peripheral
// advertises decides both which ComID New binds to and which method
// dialect (Enterprise vs Core) Session calls use.
var sscPreference = []feature.Code{
	feature.CodeOpalV2,
	feature.CodeRubyV1,
	feature.CodePyriteV2,
	feature.CodePyriteV1,
	feature.CodeOpalite,
	feature.CodeKeyPerIO,
	feature.CodeOpalV1,
	feature.CodeEnterprise,
}

// EncryptedDevice is the single-session convenience façade: it owns one
// Peripheral/ControlSession pair and at most one open Session, matching a
// CLI or short-lived provisioning script's usage pattern rather than a
// long-lived multi-tenant server's (see spec.md's Non-goals).
type EncryptedDevice struct {
	d         drive.Interface
	p         *core.Peripheral
	cs        *session.ControlSession
	discovery *core.Level0Discovery
	ssc       feature.Code
	modules   *table.Collection

	sess *session.Session // nil when no session is open
}

// New runs Level-0 Discovery, binds a Peripheral to the chosen SSC's
// ComID, and negotiates a ControlSession.
func New(ctx context.Context, d drive.Interface) (*EncryptedDevice, error) {
	d0, err := core.Discover(ctx, d)
	if err != nil {
		return nil, err
	}

	var chosen *feature.SSC
	var chosenCode feature.Code
	for _, code := range sscPreference {
		if s := d0.FindSSC(code); s != nil {
			chosen = s
			chosenCode = code
			break
		}
	}
	if chosen == nil {
		return nil, &errs.Logic{Msg: "device: no recognized SSC feature in Level-0 Discovery"}
	}

	comID := core.FindComID(d0, uint16(chosenCode), 0x0001)
	p := core.NewPeripheral(d, comID, 0, session.InitialHostProperties.MaxComPacketSize)

	st, err := p.VerifyComId(ctx)
	if err != nil {
		return nil, err
	}
	if st != core.ComIDIssued && st != core.ComIDAssociated {
		return nil, &errs.Device{Cause: fmt.Errorf("device: comID %d not usable: state %d", comID, st)}
	}

	cs, err := session.NewControlSession(ctx, p)
	if err != nil {
		return nil, err
	}

	return &EncryptedDevice{
		d:         d,
		p:         p,
		cs:        cs,
		discovery: d0,
		ssc:       chosenCode,
		modules:   table.Default(),
	}, nil
}

// Discovery returns the Level-0 Discovery response New parsed, letting a
// caller inspect Locking feature flags (MBRDone, Locked) before deciding
// what to do.
func (e *EncryptedDevice) Discovery() *core.Level0Discovery { return e.discovery }

// Modules returns the name/UID/table/type resolution Collection this
// façade resolves Get/Set columns and row iteration against.
func (e *EncryptedDevice) Modules() *table.Collection { return e.modules }

// SerialNumber returns the underlying drive's serial number, the salt
// every sedutil-compatible password hash in this module is derived
// from. Exposed so callers deriving a hash ahead of time (e.g. to
// display it, or to hash once and authenticate against several SPs)
// don't need their own handle on the drive.Interface.
func (e *EncryptedDevice) SerialNumber() (string, error) { return e.d.SerialNumber() }

func (e *EncryptedDevice) protocolLevel() session.ProtocolLevel {
	if e.ssc == feature.CodeEnterprise {
		return session.ProtocolEnterprise
	}
	return session.ProtocolCore
}

// Login opens a session against sp, closing any session this façade
// already holds first.
func (e *EncryptedDevice) Login(ctx context.Context, sp uid.UID, opts ...session.SessionOpt) error {
	if e.sess != nil {
		if err := e.End(ctx); err != nil {
			return err
		}
	}
	opts = append([]session.SessionOpt{session.WithProtocolLevel(e.protocolLevel())}, opts...)
	s, err := e.cs.NewSession(ctx, sp, opts...)
	if err != nil {
		return err
	}
	e.sess = s
	metrics.OpenSessions.Set(1)
	return nil
}

func (e *EncryptedDevice) session() (*session.Session, error) {
	if e.sess == nil {
		return nil, &errs.Logic{Msg: "device: no session open, call Login first"}
	}
	return e.sess, nil
}

// Authenticate proves proof as authority's credential within the current
// session. A rejected credential surfaces as *errs.Password.
func (e *EncryptedDevice) Authenticate(ctx context.Context, authority uid.UID, proof []byte) error {
	s, err := e.session()
	if err != nil {
		return err
	}
	return s.Authenticate(ctx, authority, proof)
}

// AuthenticateWithPassword hashes password the sedutil-compatible way
// using this device's serial number, then authenticates with it. Most
// Opal tooling derives credentials this way rather than sending a raw
// passphrase as the proof bytes.
func (e *EncryptedDevice) AuthenticateWithPassword(ctx context.Context, authority uid.UID, password string) error {
	serial, err := e.d.SerialNumber()
	if err != nil {
		return &errs.Device{Cause: err}
	}
	return e.Authenticate(ctx, authority, hash.SedutilDTA(password, serial))
}

// End closes the current session, if any.
func (e *EncryptedDevice) End(ctx context.Context) error {
	if e.sess == nil {
		return nil
	}
	err := e.sess.Close(ctx)
	e.sess = nil
	metrics.OpenSessions.Set(0)
	return err
}

// StackReset discards all ComID state at the peripheral, implicitly
// closing any open session. Callers must Login again afterward.
func (e *EncryptedDevice) StackReset(ctx context.Context) error {
	e.sess = nil
	metrics.OpenSessions.Set(0)
	st, err := e.p.Reset(ctx)
	if err != nil {
		return err
	}
	if st != core.StackResetSuccess {
		return &errs.Device{Cause: fmt.Errorf("device: StackReset reported failure")}
	}
	return nil
}

// Reset discards this façade's local idea of having a session open
// without touching the peripheral, for recovery after
// session.ErrTPerClosedSession or a caller-observed timeout.
func (e *EncryptedDevice) Reset() {
	e.sess = nil
	metrics.OpenSessions.Set(0)
}

// Revert invokes Revert on sp. The session is gone as soon as the
// peripheral executes the erase; callers must Login again against
// whatever SP remains reachable afterward.
func (e *EncryptedDevice) Revert(ctx context.Context, sp uid.UID) error {
	s, err := e.session()
	if err != nil {
		return err
	}
	err = s.Revert(ctx, sp)
	e.sess = nil
	metrics.OpenSessions.Set(0)
	return err
}

// Activate transitions sp (typically the Locking SP) out of its
// Manufactured-Inactive state.
func (e *EncryptedDevice) Activate(ctx context.Context, sp uid.UID) error {
	s, err := e.session()
	if err != nil {
		return err
	}
	return s.Activate(ctx, sp)
}
