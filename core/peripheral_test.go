package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/outerbridge/tcgstorage/wire"
)

func dataComPacket(comID uint16, hsn, tsn uint32, payload []byte) []byte {
	return wire.MarshalComPacket(wire.ComPacket{
		ComID: comID,
		Packets: []wire.Packet{{
			TSN:        tsn,
			HSN:        hsn,
			SubPackets: []wire.SubPacket{{Kind: wire.KindData, Payload: payload}},
		}},
	})
}

func TestExchangeReturnsFirstDataPayload(t *testing.T) {
	want := []byte{0xF9, 0xF0, 0x00, 0x00, 0x00, 0xF1}
	d := &scriptDrive{responses: [][]byte{dataComPacket(0x0800, 7, 9, want)}}
	p := NewPeripheral(d, 0x0800, 0, 2048)

	got, err := p.Exchange(context.Background(), 7, 9, []byte{0xF8})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("payload = % x, want % x", got, want)
	}

	// The request went out as a single data sub-packet under the session
	// numbers we passed.
	sent, err := wire.UnmarshalComPacket(d.sent[0])
	if err != nil {
		t.Fatalf("unmarshal sent frame: %v", err)
	}
	if sent.ComID != 0x0800 || len(sent.Packets) != 1 {
		t.Fatalf("sent frame shape wrong: %+v", sent)
	}
	if sent.Packets[0].HSN != 7 || sent.Packets[0].TSN != 9 {
		t.Fatalf("session numbers wrong: %+v", sent.Packets[0])
	}
}

func TestExchangeRetriesOnOutstandingData(t *testing.T) {
	want := []byte{0x2A}
	pending := wire.MarshalComPacket(wire.ComPacket{ComID: 0x0800, OutstandingData: 1024})
	d := &scriptDrive{responses: [][]byte{pending, dataComPacket(0x0800, 1, 2, want)}}
	p := NewPeripheral(d, 0x0800, 0, 4096)

	got, err := p.Exchange(context.Background(), 1, 2, []byte{0xF8})
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("payload = % x, want % x", got, want)
	}
}

func TestExchangeCancellation(t *testing.T) {
	// Nothing ever arrives; cancellation must end the poll loop.
	empty := wire.MarshalComPacket(wire.ComPacket{ComID: 0x0800})
	d := &scriptDrive{responses: [][]byte{empty, empty, empty}}
	p := NewPeripheral(d, 0x0800, 0, 2048)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Exchange(ctx, 1, 2, []byte{0xF8}); err == nil {
		t.Fatalf("want error on cancelled context")
	}
}
