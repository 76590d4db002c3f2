package core

import (
	"context"
	"testing"

	"github.com/outerbridge/tcgstorage/drive"
)

// scriptDrive replays canned SecurityReceive responses in order,
// recording everything sent. Used where drive.Mock is too smart: these
// tests assert against exact byte strings.
type scriptDrive struct {
	sent      [][]byte
	responses [][]byte
}

func (s *scriptDrive) SecuritySend(ctx context.Context, protocol drive.SecurityProtocol, protocolSpecific uint16, data []byte) error {
	s.sent = append(s.sent, append([]byte(nil), data...))
	return nil
}

func (s *scriptDrive) SecurityReceive(ctx context.Context, protocol drive.SecurityProtocol, protocolSpecific uint16, buf []byte) (int, error) {
	if len(s.responses) == 0 {
		return 0, nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	if len(buf) < len(r) {
		return 0, drive.ErrShortBuffer
	}
	return copy(buf, r), nil
}

func (s *scriptDrive) SerialNumber() (string, error) { return "SCRIPTED", nil }
func (s *scriptDrive) Close() error                  { return nil }

func TestVerifyComIDValidAssociated(t *testing.T) {
	resp := make([]byte, 46)
	copy(resp, []byte{
		0xDE, 0xAD, 0xBE, 0xEF, // comID, comIDExt echoed back
		0x00, 0x00, 0x00, 0x01, // request code
		0x00, 0x00, // reserved
		0x00, 0x22, // available data length
		0x00, 0x00, 0x00, 0x03, // comID state: ASSOCIATED
	})
	d := &scriptDrive{responses: [][]byte{resp}}

	st, err := VerifyComIDValid(context.Background(), d, 0xDEAD, 0xBEEF)
	if err != nil {
		t.Fatalf("VerifyComIDValid: %v", err)
	}
	if st != ComIDAssociated {
		t.Fatalf("state = %d, want ASSOCIATED", st)
	}

	// The request is the fixed 8-byte {comID, comIDExt, requestCode=1}.
	if len(d.sent) != 1 {
		t.Fatalf("sent %d requests, want 1", len(d.sent))
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x00, 0x00, 0x01}
	if string(d.sent[0]) != string(want) {
		t.Fatalf("request = % x, want % x", d.sent[0], want)
	}
}

func TestStackResetFailure(t *testing.T) {
	resp := []byte{
		0xDE, 0xAD, 0xBE, 0xEF,
		0x00, 0x00, 0x00, 0x02, // request code
		0x00, 0x00,
		0x00, 0x04, // available data length
		0x00, 0x00, 0x00, 0x01, // FAILURE
	}
	d := &scriptDrive{responses: [][]byte{resp}}

	st, err := StackReset(context.Background(), d, 0xDEAD, 0xBEEF)
	if err != nil {
		t.Fatalf("StackReset: %v", err)
	}
	if st != StackResetFailure {
		t.Fatalf("status = %d, want FAILURE", st)
	}
}

func TestSetupChannelShortResponse(t *testing.T) {
	d := &scriptDrive{responses: [][]byte{{0x00, 0x01}}}
	if _, err := VerifyComIDValid(context.Background(), d, 1, 0); err == nil {
		t.Fatalf("want error for truncated setup-channel response")
	}
}
