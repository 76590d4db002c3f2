package core

import (
	"context"
	"fmt"

	"github.com/outerbridge/tcgstorage/drive"
	"github.com/outerbridge/tcgstorage/errs"
)

// Discover issues a Level-0 Discovery request (security protocol 0x01,
// protocol-specific 0x0001) directly against the device, ahead of any
// ComID allocation: discovery is the one exchange a host can make before
// it knows which ComIDs the peripheral supports.
func Discover(ctx context.Context, d drive.Interface) (*Level0Discovery, error) {
	buf := make([]byte, 2048)
	n, err := d.SecurityReceive(ctx, drive.ProtocolMain, 0x0001, buf)
	if err != nil {
		return nil, &errs.Device{Cause: fmt.Errorf("core: discovery: %w", err)}
	}
	d0, err := ParseLevel0Discovery(buf[:n])
	if err != nil {
		return nil, &errs.Protocol{Cause: err}
	}
	return d0, nil
}

// FindComID picks a ComID to use for a session: the SSC feature's base
// ComID when the discovery response advertises one for ssc, otherwise
// the host falls back to the caller-supplied default (some peripherals
// only report a usable ComID through vendor-specific means).
func FindComID(d0 *Level0Discovery, ssc uint16, fallback uint16) (comID uint16) {
	for _, s := range d0.SSCs {
		if uint16(s.Code) == ssc && s.BaseComID != 0 {
			return s.BaseComID
		}
	}
	return fallback
}
