// Package wire implements the three nested frame types used to carry
// token streams to and from a trusted peripheral: ComPacket, Packet, and
// SubPacket, all big-endian with 4-byte payload padding.
package wire

import (
	"encoding/binary"
	"fmt"
)

// SubPacketKind identifies the payload carried by a SubPacket.
type SubPacketKind uint16

const (
	KindData          SubPacketKind = 0x0000
	KindCreditControl SubPacketKind = 0x8001
)

// SubPacket is the innermost frame: a token stream payload.
type SubPacket struct {
	Kind    SubPacketKind
	Payload []byte
}

// Packet carries one or more SubPackets for a given session (TSN, HSN).
type Packet struct {
	TSN             uint32
	HSN             uint32
	SeqNumber       uint32
	AckType         uint16
	Acknowledgement uint32
	SubPackets      []SubPacket
}

// ComPacket is the outermost frame, bound to a ComID.
type ComPacket struct {
	ComID           uint16
	ComIDExt        uint16
	OutstandingData uint32
	MinTransfer     uint32
	Packets         []Packet
}

func pad4(n int) int {
	if n%4 == 0 {
		return 0
	}
	return 4 - n%4
}

// MarshalSubPacket serializes a SubPacket: 12-byte header followed by its
// unpadded payload. The caller is responsible for appending padding before
// embedding it in a Packet.
func MarshalSubPacket(sp SubPacket) []byte {
	buf := make([]byte, 12+len(sp.Payload))
	binary.BigEndian.PutUint16(buf[6:8], uint16(sp.Kind))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(sp.Payload)))
	copy(buf[12:], sp.Payload)
	return buf
}

// MarshalPacket serializes a Packet: 24-byte header followed by its
// sub-packets (each padded to a 4-byte boundary), with the header length
// field counting the padded sub-packet bytes.
func MarshalPacket(p Packet) []byte {
	var body []byte
	for _, sp := range p.SubPackets {
		raw := MarshalSubPacket(sp)
		body = append(body, raw...)
		body = append(body, make([]byte, pad4(len(raw)))...)
	}
	buf := make([]byte, 24+len(body))
	binary.BigEndian.PutUint32(buf[0:4], p.TSN)
	binary.BigEndian.PutUint32(buf[4:8], p.HSN)
	binary.BigEndian.PutUint32(buf[8:12], p.SeqNumber)
	binary.BigEndian.PutUint16(buf[14:16], p.AckType)
	binary.BigEndian.PutUint32(buf[16:20], p.Acknowledgement)
	binary.BigEndian.PutUint32(buf[20:24], uint32(len(body)))
	copy(buf[24:], body)
	return buf
}

// MarshalComPacket serializes a ComPacket: 20-byte header followed by its
// packets (each padded to a 4-byte boundary), with the header length field
// counting the padded packet bytes.
func MarshalComPacket(cp ComPacket) []byte {
	var body []byte
	for _, p := range cp.Packets {
		raw := MarshalPacket(p)
		body = append(body, raw...)
		body = append(body, make([]byte, pad4(len(raw)))...)
	}
	buf := make([]byte, 20+len(body))
	binary.BigEndian.PutUint16(buf[4:6], cp.ComID)
	binary.BigEndian.PutUint16(buf[6:8], cp.ComIDExt)
	binary.BigEndian.PutUint32(buf[8:12], cp.OutstandingData)
	binary.BigEndian.PutUint32(buf[12:16], cp.MinTransfer)
	binary.BigEndian.PutUint32(buf[16:20], uint32(len(body)))
	copy(buf[20:], body)
	return buf
}

// ErrTruncated is returned when a buffer is too short for the frame it
// claims to hold.
var ErrTruncated = fmt.Errorf("wire: truncated frame")

// UnmarshalSubPacket parses one SubPacket from the head of b, returning
// the parsed value and the number of bytes consumed (unpadded).
func UnmarshalSubPacket(b []byte) (SubPacket, int, error) {
	if len(b) < 12 {
		return SubPacket{}, 0, fmt.Errorf("%w: sub-packet header", ErrTruncated)
	}
	kind := SubPacketKind(binary.BigEndian.Uint16(b[6:8]))
	length := int(binary.BigEndian.Uint32(b[8:12]))
	if len(b) < 12+length {
		return SubPacket{}, 0, fmt.Errorf("%w: sub-packet payload (need %d, have %d)", ErrTruncated, 12+length, len(b))
	}
	payload := append([]byte(nil), b[12:12+length]...)
	return SubPacket{Kind: kind, Payload: payload}, 12 + length, nil
}

// UnmarshalPacket parses one Packet from the head of b, returning the
// parsed value and the number of bytes consumed (header + padded body).
func UnmarshalPacket(b []byte) (Packet, int, error) {
	if len(b) < 24 {
		return Packet{}, 0, fmt.Errorf("%w: packet header", ErrTruncated)
	}
	p := Packet{
		TSN:             binary.BigEndian.Uint32(b[0:4]),
		HSN:             binary.BigEndian.Uint32(b[4:8]),
		SeqNumber:       binary.BigEndian.Uint32(b[8:12]),
		AckType:         binary.BigEndian.Uint16(b[14:16]),
		Acknowledgement: binary.BigEndian.Uint32(b[16:20]),
	}
	length := int(binary.BigEndian.Uint32(b[20:24]))
	if len(b) < 24+length {
		return Packet{}, 0, fmt.Errorf("%w: packet body (need %d, have %d)", ErrTruncated, 24+length, len(b))
	}
	body := b[24 : 24+length]
	for len(body) > 0 {
		sp, n, err := UnmarshalSubPacket(body)
		if err != nil {
			return Packet{}, 0, err
		}
		p.SubPackets = append(p.SubPackets, sp)
		consumed := n + pad4(n)
		if consumed > len(body) {
			consumed = len(body)
		}
		body = body[consumed:]
	}
	return p, 24 + length, nil
}

// UnmarshalComPacket parses one ComPacket from b. The entire buffer is
// expected to hold exactly one ComPacket (callers read a receive buffer
// sized by the negotiated MaxComPacketSize and pass the whole thing).
func UnmarshalComPacket(b []byte) (ComPacket, error) {
	if len(b) < 20 {
		return ComPacket{}, fmt.Errorf("%w: com-packet header", ErrTruncated)
	}
	cp := ComPacket{
		ComID:           binary.BigEndian.Uint16(b[4:6]),
		ComIDExt:        binary.BigEndian.Uint16(b[6:8]),
		OutstandingData: binary.BigEndian.Uint32(b[8:12]),
		MinTransfer:     binary.BigEndian.Uint32(b[12:16]),
	}
	length := int(binary.BigEndian.Uint32(b[16:20]))
	if len(b) < 20+length {
		return ComPacket{}, fmt.Errorf("%w: com-packet body (need %d, have %d)", ErrTruncated, 20+length, len(b))
	}
	body := b[20 : 20+length]
	for len(body) > 0 {
		p, n, err := UnmarshalPacket(body)
		if err != nil {
			return ComPacket{}, err
		}
		cp.Packets = append(cp.Packets, p)
		consumed := n + pad4(n)
		if consumed > len(body) {
			consumed = len(body)
		}
		body = body[consumed:]
	}
	return cp, nil
}
