package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/outerbridge/tcgstorage/drive"
	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/metrics"
	"github.com/outerbridge/tcgstorage/wire"
)

// Peripheral is the trusted peripheral endpoint bound to one allocated
// ComID: it owns the single in-flight Exchange the spec requires (one
// outstanding IF-SEND/IF-RECV pair per ComID at a time) and the
// outstandingData retry loop that recovers a response too large for the
// host's first receive buffer.
type Peripheral struct {
	d                drive.Interface
	comID, comIDExt  uint16
	maxComPacketSize uint32

	mu sync.Mutex
}

// NewPeripheral binds a Peripheral to an already-allocated ComID.
// maxComPacketSize bounds how large a receive buffer Exchange will grow
// to while draining OutstandingData; it should be the negotiated
// HostProperties.MaxComPacketSize (or a generous default before
// properties negotiation has happened).
func NewPeripheral(d drive.Interface, comID, comIDExt uint16, maxComPacketSize uint32) *Peripheral {
	if maxComPacketSize == 0 {
		maxComPacketSize = 2048
	}
	return &Peripheral{d: d, comID: comID, comIDExt: comIDExt, maxComPacketSize: maxComPacketSize}
}

// ComID reports the bound ComID pair.
func (p *Peripheral) ComID() (uint16, uint16) { return p.comID, p.comIDExt }

// VerifyComId issues a VerifyComIdValid request on the setup channel.
func (p *Peripheral) VerifyComId(ctx context.Context) (ComIDState, error) {
	st, err := VerifyComIDValid(ctx, p.d, p.comID, p.comIDExt)
	if err != nil {
		return st, &errs.Device{Cause: err}
	}
	return st, nil
}

// Reset issues a StackReset request, discarding all ComID state at the
// peripheral. Any Session bound to this Peripheral is no longer valid
// after a successful reset.
func (p *Peripheral) Reset(ctx context.Context) (StackResetStatus, error) {
	st, err := StackReset(ctx, p.d, p.comID, p.comIDExt)
	if err != nil {
		return st, &errs.Device{Cause: err}
	}
	return st, nil
}

const (
	exchangePollInterval = 25 * time.Millisecond
	exchangeTotalBudget  = 30 * time.Second
)

// Exchange sends one payload (a token stream, typically a MethodCall or
// EOS marker) as a single sub-packet under hsn/tsn and returns the
// payload bytes of the first data sub-packet in the reply.
//
// Only one Exchange runs at a time per Peripheral: the TCG Storage
// Architecture Core Specification requires a single outstanding
// IF-SEND/IF-RECV pair per ComID, so Exchange takes p.mu for its
// duration.
func (p *Peripheral) Exchange(ctx context.Context, hsn, tsn uint32, payload []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	started := time.Now()
	defer func() { metrics.ObserveExchange(time.Since(started)) }()

	cp := wire.ComPacket{
		ComID:    p.comID,
		ComIDExt: p.comIDExt,
		Packets: []wire.Packet{{
			TSN: tsn,
			HSN: hsn,
			SubPackets: []wire.SubPacket{
				{Kind: wire.KindData, Payload: payload},
			},
		}},
	}
	out := wire.MarshalComPacket(cp)
	if err := p.d.SecuritySend(ctx, drive.ProtocolMain, p.comID, out); err != nil {
		return nil, &errs.Device{Cause: fmt.Errorf("core: exchange send: %w", err)}
	}

	bufSize := uint32(len(out))
	if bufSize < 512 {
		bufSize = 512
	}
	deadline := time.Now().Add(exchangeTotalBudget)

	for {
		if err := ctx.Err(); err != nil {
			return nil, &errs.Device{Cause: err}
		}
		buf := make([]byte, bufSize)
		n, err := p.d.SecurityReceive(ctx, drive.ProtocolMain, p.comID, buf)
		if err != nil {
			return nil, &errs.Device{Cause: fmt.Errorf("core: exchange receive: %w", err)}
		}
		resp, err := wire.UnmarshalComPacket(buf[:n])
		if err != nil {
			return nil, &errs.Protocol{Cause: err}
		}

		payload, ok := firstDataPayload(resp)
		if ok {
			return payload, nil
		}

		if resp.OutstandingData == 0 {
			// Nothing ready yet and the peripheral reports nothing
			// outstanding either: a legitimate empty poll result, keep
			// waiting within budget.
			if time.Now().After(deadline) {
				return nil, &errs.Protocol{Cause: fmt.Errorf("core: exchange: no response within %s", exchangeTotalBudget)}
			}
			if err := sleep(ctx, exchangePollInterval); err != nil {
				return nil, &errs.Device{Cause: err}
			}
			continue
		}

		// Outstanding data reported: grow the receive buffer to hold it,
		// bounded by the negotiated max ComPacket size, and retry.
		want := resp.OutstandingData
		if want > p.maxComPacketSize {
			want = p.maxComPacketSize
		}
		if want > bufSize {
			bufSize = want
		} else {
			bufSize *= 2
			if bufSize > p.maxComPacketSize {
				bufSize = p.maxComPacketSize
			}
		}
		if time.Now().After(deadline) {
			return nil, &errs.Protocol{Cause: fmt.Errorf("core: exchange: outstanding data never drained within %s", exchangeTotalBudget)}
		}
		if err := sleep(ctx, exchangePollInterval); err != nil {
			return nil, &errs.Device{Cause: err}
		}
	}
}

func firstDataPayload(cp wire.ComPacket) ([]byte, bool) {
	for _, pk := range cp.Packets {
		for _, sp := range pk.SubPackets {
			if sp.Kind == wire.KindData && len(sp.Payload) > 0 {
				return sp.Payload, true
			}
		}
	}
	return nil, false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
