package device

import (
	"context"
	"fmt"

	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/hash"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/table"
	"github.com/outerbridge/tcgstorage/uid"
)

// Locking table columns this package references by number rather than by
// name lookup, since TakeOwnership runs before any caller has reason to
// resolve a TableDesc for itself.
const (
	lockingColReadLockEnabled  = 5
	lockingColWriteLockEnabled = 6
)

// TakeOwnershipOpt configures TakeOwnership.
type TakeOwnershipOpt func(*takeOwnershipConfig)

type takeOwnershipConfig struct {
	loadPBA []byte
}

// WithPBAImage has TakeOwnership load image into the Locking SP's shadow
// MBR table as its final step.
func WithPBAImage(image []byte) TakeOwnershipOpt {
	return func(c *takeOwnershipConfig) { c.loadPBA = image }
}

// TakeOwnership runs the standard first-contact provisioning sequence a
// freshly manufactured Opal drive needs before its Locking SP is usable:
// read the factory MSID, authenticate as SID with it, set a new SID
// password, activate the Locking SP, authenticate into it as Admin1 with
// the same new password, enable the global range's locking, and turn on
// shadow MBR (optionally loading a PBA image). Grounded on
// cmd/gosedctl's initialSetupCmd.Run, which walks this same sequence by
// hand against the lower-level table helpers; this method is that
// sequence expressed against the façade instead.
func (e *EncryptedDevice) TakeOwnership(ctx context.Context, newPassword string, opts ...TakeOwnershipOpt) error {
	cfg := takeOwnershipConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	serial, err := e.d.SerialNumber()
	if err != nil {
		return &errs.Device{Cause: err}
	}
	newHash := hash.SedutilDTA(newPassword, serial)

	if err := e.Login(ctx, uid.AdminSP); err != nil {
		return fmt.Errorf("device: TakeOwnership: login to AdminSP: %w", err)
	}

	msidVal, err := e.GetObjectColumn(ctx, uid.CPINMSID, cpinColumnPIN)
	if err != nil {
		return fmt.Errorf("device: TakeOwnership: reading C_PIN::MSID: %w", err)
	}
	msid, err := msidVal.Bytes()
	if err != nil {
		return fmt.Errorf("device: TakeOwnership: C_PIN::MSID not bytes: %w", err)
	}

	// According to the TCG Opal Application Note, the session should be
	// closed and reopened after authenticating with the MSID; this
	// module elevates it in place instead, matching the teacher's
	// documented shortcut.
	if err := e.Authenticate(ctx, uid.AuthoritySID, msid); err != nil {
		return fmt.Errorf("device: TakeOwnership: authenticating SID with MSID: %w", err)
	}

	if err := e.SetObjectColumn(ctx, uid.CPINSID, cpinColumnPIN, stream.NewBytes(newHash)); err != nil {
		return fmt.Errorf("device: TakeOwnership: setting new SID PIN: %w", err)
	}

	adminSess, err := e.session()
	if err != nil {
		return err
	}
	lcs, err := table.GetLifeCycleState(ctx, adminSess, uid.LockingSP)
	if err != nil {
		return fmt.Errorf("device: TakeOwnership: reading LockingSP lifecycle state: %w", err)
	}
	if lcs != table.LifeCycleManufacturedInactive {
		return fmt.Errorf("device: TakeOwnership: LockingSP lifecycle state is %s, want %s", lcs, table.LifeCycleManufacturedInactive)
	}
	if err := e.Activate(ctx, uid.LockingSP); err != nil {
		return fmt.Errorf("device: TakeOwnership: activating LockingSP: %w", err)
	}
	if err := e.End(ctx); err != nil {
		return fmt.Errorf("device: TakeOwnership: closing AdminSP session: %w", err)
	}

	if err := e.Login(ctx, uid.LockingSP); err != nil {
		return fmt.Errorf("device: TakeOwnership: login to LockingSP: %w", err)
	}
	if err := e.Authenticate(ctx, uid.LockingAuthorityAdmin1, newHash); err != nil {
		return fmt.Errorf("device: TakeOwnership: authenticating as Admin1: %w", err)
	}

	if err := e.SetObjectColumn(ctx, uid.GlobalRange, lockingColReadLockEnabled, stream.NewUint(1)); err != nil {
		return fmt.Errorf("device: TakeOwnership: enabling read lock: %w", err)
	}
	if err := e.SetObjectColumn(ctx, uid.GlobalRange, lockingColWriteLockEnabled, stream.NewUint(1)); err != nil {
		return fmt.Errorf("device: TakeOwnership: enabling write lock: %w", err)
	}

	lockingSess, err := e.session()
	if err != nil {
		return err
	}
	if err := table.SetMBRDone(ctx, lockingSess, true); err != nil {
		return fmt.Errorf("device: TakeOwnership: SetMBRDone: %w", err)
	}
	if err := table.SetMBREnable(ctx, lockingSess, true); err != nil {
		return fmt.Errorf("device: TakeOwnership: SetMBREnable: %w", err)
	}

	if len(cfg.loadPBA) > 0 {
		if err := table.LoadPBAImage(ctx, lockingSess, cfg.loadPBA); err != nil {
			return fmt.Errorf("device: TakeOwnership: LoadPBAImage: %w", err)
		}
	}

	return nil
}
