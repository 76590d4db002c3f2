package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func TestSubPacketLengthIsUnpadded(t *testing.T) {
	sp := SubPacket{Kind: KindData, Payload: []byte{1, 2, 3, 4, 5}}
	raw := MarshalSubPacket(sp)
	if len(raw) != 12+5 {
		t.Fatalf("sub-packet is %d bytes, want 17", len(raw))
	}
	if got := binary.BigEndian.Uint32(raw[8:12]); got != 5 {
		t.Fatalf("length field = %d, want the unpadded 5", got)
	}
}

func TestPacketPadsSubPackets(t *testing.T) {
	p := Packet{
		TSN:        7,
		HSN:        9,
		SubPackets: []SubPacket{{Kind: KindData, Payload: []byte{1, 2, 3, 4, 5}}},
	}
	raw := MarshalPacket(p)
	// 24-byte header + 12-byte sub-packet header + 5 payload + 3 padding.
	if len(raw) != 24+12+5+3 {
		t.Fatalf("packet is %d bytes, want 44", len(raw))
	}
	if got := binary.BigEndian.Uint32(raw[20:24]); got != 20 {
		t.Fatalf("packet length field = %d, want the padded 20", got)
	}
	if !bytes.Equal(raw[len(raw)-3:], []byte{0, 0, 0}) {
		t.Fatalf("padding bytes not zero: % x", raw[len(raw)-3:])
	}
}

func TestComPacketRoundTrip(t *testing.T) {
	cp := ComPacket{
		ComID:    0x0800,
		ComIDExt: 0x0001,
		Packets: []Packet{{
			TSN:       0x1000,
			HSN:       0x2000,
			SeqNumber: 0,
			SubPackets: []SubPacket{
				{Kind: KindData, Payload: []byte{0xF8, 0xA1, 0x00}},
			},
		}},
	}
	raw := MarshalComPacket(cp)
	got, err := UnmarshalComPacket(raw)
	if err != nil {
		t.Fatalf("UnmarshalComPacket: %v", err)
	}
	if !reflect.DeepEqual(got, cp) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, cp)
	}
}

func TestComPacketRoundTripMultipleSubPackets(t *testing.T) {
	cp := ComPacket{
		ComID: 0x07FE,
		Packets: []Packet{{
			TSN: 1,
			HSN: 2,
			SubPackets: []SubPacket{
				{Kind: KindData, Payload: []byte{0xAA}},
				{Kind: KindCreditControl, Payload: []byte{0, 0, 0, 4}},
			},
		}},
	}
	got, err := UnmarshalComPacket(MarshalComPacket(cp))
	if err != nil {
		t.Fatalf("UnmarshalComPacket: %v", err)
	}
	if !reflect.DeepEqual(got, cp) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, cp)
	}
}

func TestComPacketEmpty(t *testing.T) {
	cp := ComPacket{ComID: 0x0800, OutstandingData: 128}
	raw := MarshalComPacket(cp)
	if len(raw) != 20 {
		t.Fatalf("empty com-packet is %d bytes, want 20", len(raw))
	}
	got, err := UnmarshalComPacket(raw)
	if err != nil {
		t.Fatalf("UnmarshalComPacket: %v", err)
	}
	if got.OutstandingData != 128 || len(got.Packets) != 0 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	cp := ComPacket{
		ComID:   0x0800,
		Packets: []Packet{{SubPackets: []SubPacket{{Kind: KindData, Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8}}}}},
	}
	raw := MarshalComPacket(cp)
	for _, cut := range []int{4, 19, 25, len(raw) - 1} {
		if _, err := UnmarshalComPacket(raw[:cut]); !errors.Is(err, ErrTruncated) {
			t.Errorf("UnmarshalComPacket(cut at %d) err = %v, want ErrTruncated", cut, err)
		}
	}
}
