package drive

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/outerbridge/tcgstorage/method"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
	"github.com/outerbridge/tcgstorage/wire"
)

// MethodHandler answers one SP-scoped method invocation (anything other
// than the built-in session-manager methods Mock already understands).
// A nil Handler makes every such call return StatusNotAuthorized.
type MethodHandler func(hsn uint32, invokingID, methodID uid.UID, args []stream.Value) ([]stream.Value, method.StatusCode)

// Mock is an in-memory trusted-peripheral simulator: enough of the wire
// protocol and session-manager method set to exercise core, session, and
// device against a fake device without real hardware. It is used by this
// module's own tests and by the CLI's --mock mode.
type Mock struct {
	mu sync.Mutex

	serial         string
	discoveryRaw   []byte
	comID, comIDExt uint16

	sessions map[uint32]bool // open HSNs
	nextTSN  uint32

	pending map[uint16][]byte // queued response bytes per protocol-specific value

	Handler MethodHandler

	// Intercept, when set, answers an Exchange payload before Mock's own
	// dispatch runs; ok=false falls through to normal handling. Used to
	// inject peripheral-initiated traffic such as an unsolicited
	// CloseSession call.
	Intercept func(hsn uint32, payload []byte) (reply []byte, ok bool)
}

// NewMock builds a Mock bound to a single fixed ComID (matching the
// common case of an SSC that exposes exactly one base ComID) and the
// given raw Level-0 Discovery response body.
func NewMock(serial string, comID, comIDExt uint16, discoveryRaw []byte) *Mock {
	return &Mock{
		serial:       serial,
		discoveryRaw: discoveryRaw,
		comID:        comID,
		comIDExt:     comIDExt,
		sessions:     make(map[uint32]bool),
		pending:      make(map[uint16][]byte),
		nextTSN:      1,
	}
}

// SerialNumber implements Interface.
func (m *Mock) SerialNumber() (string, error) { return m.serial, nil }

// Close implements Interface.
func (m *Mock) Close() error { return nil }

// SecuritySend implements Interface.
func (m *Mock) SecuritySend(ctx context.Context, protocol SecurityProtocol, protocolSpecific uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch protocol {
	case ProtocolComIDManagement:
		return m.handleComIDRequest(protocolSpecific, data)
	case ProtocolMain:
		if protocolSpecific == 0x0001 {
			// Discovery is read-only; nothing to queue on send.
			return nil
		}
		return m.handleExchange(protocolSpecific, data)
	case ProtocolInformation:
		m.pending[protocolSpecific] = []byte{0x00, 0x00} // empty supported-protocol list
		return nil
	default:
		return fmt.Errorf("drive/mock: unsupported protocol 0x%02x", protocol)
	}
}

// SecurityReceive implements Interface.
func (m *Mock) SecurityReceive(ctx context.Context, protocol SecurityProtocol, protocolSpecific uint16, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if protocol == ProtocolMain && protocolSpecific == 0x0001 {
		if len(buf) < len(m.discoveryRaw) {
			return 0, ErrShortBuffer
		}
		return copy(buf, m.discoveryRaw), nil
	}
	resp, ok := m.pending[protocolSpecific]
	if !ok {
		// Nothing queued: report an empty ComPacket for the main RPC
		// channel so callers polling for OutstandingData see zero.
		if protocol == ProtocolMain {
			empty := wire.MarshalComPacket(wire.ComPacket{ComID: m.comID, ComIDExt: m.comIDExt})
			if len(buf) < len(empty) {
				return 0, ErrShortBuffer
			}
			return copy(buf, empty), nil
		}
		return 0, nil
	}
	if len(buf) < len(resp) {
		return 0, ErrShortBuffer
	}
	delete(m.pending, protocolSpecific)
	return copy(buf, resp), nil
}

func (m *Mock) handleComIDRequest(comID uint16, req []byte) error {
	if len(req) < 8 {
		return fmt.Errorf("drive/mock: short ComID request")
	}
	requestCode := binary.BigEndian.Uint32(req[4:8])
	payload := make([]byte, 4)
	switch requestCode {
	case 1: // VerifyComIdValid
		binary.BigEndian.PutUint32(payload, 2) // ComIDIssued
	case 2: // StackReset
		binary.BigEndian.PutUint32(payload, 0) // StackResetSuccess
		m.sessions = make(map[uint32]bool)
	default:
		return fmt.Errorf("drive/mock: unknown ComID request code %d", requestCode)
	}
	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[10:12], uint16(len(payload)))
	m.pending[comID] = append(header, payload...)
	return nil
}

func (m *Mock) handleExchange(comID uint16, raw []byte) error {
	cp, err := wire.UnmarshalComPacket(raw)
	if err != nil {
		return fmt.Errorf("drive/mock: %w", err)
	}
	var replyPayload []byte
	var hsn uint32
	for _, pk := range cp.Packets {
		hsn = pk.HSN
		for _, sp := range pk.SubPackets {
			if sp.Kind != wire.KindData || len(sp.Payload) == 0 {
				continue
			}
			replyPayload = m.handlePayload(hsn, sp.Payload)
		}
	}
	if replyPayload == nil {
		return nil
	}
	reply := wire.ComPacket{
		ComID:    m.comID,
		ComIDExt: m.comIDExt,
		Packets: []wire.Packet{{
			TSN: m.nextTSN,
			HSN: hsn,
			SubPackets: []wire.SubPacket{
				{Kind: wire.KindData, Payload: replyPayload},
			},
		}},
	}
	m.nextTSN++
	m.pending[m.comID] = wire.MarshalComPacket(reply)
	return nil
}

func (m *Mock) handlePayload(hsn uint32, payload []byte) []byte {
	if m.Intercept != nil {
		if reply, ok := m.Intercept(hsn, payload); ok {
			return reply
		}
	}
	if len(payload) == 1 && payload[0] == stream.EndOfSession {
		delete(m.sessions, hsn)
		return []byte{stream.EndOfSession}
	}
	if len(payload) == 0 || payload[0] != stream.Call {
		return resultBytes(nil, method.StatusInvalidParameter)
	}
	invokingID, methodID, args, err := decodeCall(payload)
	if err != nil {
		return resultBytes(nil, method.StatusInvalidParameter)
	}
	if invokingID == uid.SessionManager {
		return m.handleSessionManagerCall(hsn, methodID, args)
	}
	if m.Handler == nil {
		return resultBytes(nil, method.StatusNotAuthorized)
	}
	values, status := m.Handler(hsn, invokingID, methodID, args)
	return resultBytes(values, status)
}

func (m *Mock) handleSessionManagerCall(hsn uint32, methodID uid.UID, args []stream.Value) []byte {
	switch methodID {
	case uid.MethodIDStartSession:
		if len(args) < 2 {
			return resultBytes(nil, method.StatusInvalidParameter)
		}
		requestedHSN, err := args[0].Uint()
		if err != nil {
			return resultBytes(nil, method.StatusInvalidParameter)
		}
		m.sessions[uint32(requestedHSN)] = true
		m.nextTSN++
		return resultBytes([]stream.Value{
			stream.NewUint(requestedHSN),
			stream.NewUint(uint64(m.nextTSN)),
		}, method.StatusSuccess)
	case uid.MethodIDProperties:
		return resultBytes([]stream.Value{
			stream.NewList(
				stream.NewNamed(stream.NewBytes([]byte("MaxComPacketSize")), stream.NewUint(2048)),
				stream.NewNamed(stream.NewBytes([]byte("MaxResponseComPacketSize")), stream.NewUint(2048)),
				stream.NewNamed(stream.NewBytes([]byte("MaxPackets")), stream.NewUint(1)),
				stream.NewNamed(stream.NewBytes([]byte("MaxSubpackets")), stream.NewUint(1)),
				stream.NewNamed(stream.NewBytes([]byte("MaxMethods")), stream.NewUint(1)),
			),
		}, method.StatusSuccess)
	case uid.MethodIDCloseSession:
		delete(m.sessions, hsn)
		return resultBytes(nil, method.StatusSuccess)
	default:
		return resultBytes(nil, method.StatusInvalidFunction)
	}
}

// decodeCall parses the [CALL invokingID methodID [args] EndOfData
// [status,0,0]] shape a host sends, mirroring method.Call.Build's wire
// layout exactly (a request and its eventual unsolicited-reply form
// share this shape, which is why method.ParseResponse's Unsolicited path
// reuses the same structure).
func decodeCall(b []byte) (invokingID, methodID uid.UID, args []stream.Value, err error) {
	rest := b[1:]
	var v stream.Value
	v, rest, err = stream.Detokenize(rest)
	if err != nil {
		return
	}
	invB, err := v.Bytes()
	if err != nil {
		return
	}
	invokingID, err = uid.FromBytes(invB)
	if err != nil {
		return
	}
	v, rest, err = stream.Detokenize(rest)
	if err != nil {
		return
	}
	methB, err := v.Bytes()
	if err != nil {
		return
	}
	methodID, err = uid.FromBytes(methB)
	if err != nil {
		return
	}
	v, _, err = stream.Detokenize(rest)
	if err != nil {
		return
	}
	args, err = v.List()
	return
}

func resultBytes(values []stream.Value, status method.StatusCode) []byte {
	var out []byte
	for _, v := range values {
		out = append(out, stream.Tokenize(v)...)
	}
	out = append(out, stream.EncodeToken(stream.EndOfData)...)
	out = append(out, stream.Tokenize(stream.NewList(stream.NewUint(uint64(status)), stream.NewUint(0), stream.NewUint(0)))...)
	return out
}
