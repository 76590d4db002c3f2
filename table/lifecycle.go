package table

import (
	"context"
	"fmt"

	"github.com/outerbridge/tcgstorage/session"
	"github.com/outerbridge/tcgstorage/uid"
)

// LifeCycleState is the SP table's LifeCycleState column value,
// grounded on the teacher's LifeCycleState enum
// (pkg/core/table/admin.go), which in turn follows the Core
// Specification's SP table LifeCycleState value assignment.
type LifeCycleState int

const (
	LifeCycleIssued LifeCycleState = iota
	LifeCycleIssuedDisabled
	LifeCycleIssuedFrozen
	LifeCycleIssuedDisabledFrozen
	LifeCycleIssuedFailed
	_
	_
	_
	LifeCycleManufacturedInactive
	LifeCycleManufactured
	LifeCycleManufacturedDisabled
	LifeCycleManufacturedFrozen
	LifeCycleManufacturedDisabledFrozen
	LifeCycleManufacturedFailed
)

func (l LifeCycleState) String() string {
	switch l {
	case LifeCycleIssued:
		return "Issued"
	case LifeCycleIssuedDisabled:
		return "Issued-Disabled"
	case LifeCycleIssuedFrozen:
		return "Issued-Frozen"
	case LifeCycleIssuedDisabledFrozen:
		return "Issued-DisabledFrozen"
	case LifeCycleIssuedFailed:
		return "Issued-Failed"
	case LifeCycleManufacturedInactive:
		return "Manufactured-Inactive"
	case LifeCycleManufactured:
		return "Manufactured"
	case LifeCycleManufacturedDisabled:
		return "Manufactured-Disabled"
	case LifeCycleManufacturedFrozen:
		return "Manufactured-Frozen"
	case LifeCycleManufacturedDisabledFrozen:
		return "Manufactured-DisabledFrozen"
	case LifeCycleManufacturedFailed:
		return "Manufactured-Failed"
	default:
		return fmt.Sprintf("LifeCycleState(%d)", int(l))
	}
}

const spColLifeCycleState = 6

// GetLifeCycleState reads an SP's LifeCycleState column from the SP
// table (the row UID is the SP's own UID). Used before Activate to
// confirm the Locking SP is Manufactured-Inactive.
func GetLifeCycleState(ctx context.Context, s *session.Session, sp uid.UID) (LifeCycleState, error) {
	v, err := GetColumn(ctx, s, sp, spColLifeCycleState)
	if err != nil {
		return -1, err
	}
	n, err := v.Uint()
	if err != nil {
		return -1, fmt.Errorf("table: GetLifeCycleState: %w", err)
	}
	return LifeCycleState(n), nil
}
