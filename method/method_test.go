package method

import (
	"testing"

	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

func TestCallBuildRoundTrip(t *testing.T) {
	c := NewCall(uid.InvokeIDThisSP, uid.MethodIDGet).
		UInt(1).
		Bytes([]byte("x"))
	b := c.Build()

	if b[0] != stream.Call {
		t.Fatalf("expected leading CALL token, got 0x%02x", b[0])
	}

	rest := b[1:]
	invV, rest, err := stream.Detokenize(rest)
	if err != nil {
		t.Fatalf("detokenize invokingID: %v", err)
	}
	invB, _ := invV.Bytes()
	got, err := uid.FromBytes(invB)
	if err != nil || got != uid.InvokeIDThisSP {
		t.Fatalf("invokingID mismatch: %v %v", got, err)
	}

	methV, rest, err := stream.Detokenize(rest)
	if err != nil {
		t.Fatalf("detokenize methodID: %v", err)
	}
	methB, _ := methV.Bytes()
	gotMeth, err := uid.FromBytes(methB)
	if err != nil || gotMeth != uid.MethodIDGet {
		t.Fatalf("methodID mismatch: %v %v", gotMeth, err)
	}

	argsV, rest, err := stream.Detokenize(rest)
	if err != nil {
		t.Fatalf("detokenize args: %v", err)
	}
	args, err := argsV.List()
	if err != nil {
		t.Fatalf("args not a list: %v", err)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}

	if len(rest) == 0 || rest[0] != stream.EndOfData {
		t.Fatalf("expected EndOfData next, got %v", rest)
	}
	rest = rest[1:]
	statusV, rest, err := stream.Detokenize(rest)
	if err != nil {
		t.Fatalf("detokenize status list: %v", err)
	}
	status, err := statusV.List()
	if err != nil || len(status) != 3 {
		t.Fatalf("status list malformed: %v %v", status, err)
	}
	if len(rest) != 0 {
		t.Fatalf("trailing bytes after status list: %v", rest)
	}
}

func TestParseResponseSuccess(t *testing.T) {
	var body []byte
	body = append(body, stream.Tokenize(stream.NewUint(42))...)
	body = append(body, stream.EncodeToken(stream.EndOfData)...)
	body = append(body, stream.Tokenize(stream.NewList(stream.NewUint(0), stream.NewUint(0), stream.NewUint(0)))...)

	res, unsol, err := ParseResponse(body)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if unsol != nil {
		t.Fatalf("expected a Result, got Unsolicited")
	}
	if res.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %v", res.Status)
	}
	if len(res.Values) != 1 {
		t.Fatalf("expected 1 value, got %d", len(res.Values))
	}
	v, err := res.Values[0].Uint()
	if err != nil || v != 42 {
		t.Fatalf("value mismatch: %v %v", v, err)
	}
}

func TestParseResponseNotAuthorized(t *testing.T) {
	var body []byte
	body = append(body, stream.EncodeToken(stream.EndOfData)...)
	body = append(body, stream.Tokenize(stream.NewList(stream.NewUint(uint64(StatusNotAuthorized)), stream.NewUint(0), stream.NewUint(0)))...)

	res, _, err := ParseResponse(body)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if res.Status != StatusNotAuthorized {
		t.Fatalf("expected NOT_AUTHORIZED, got %v", res.Status)
	}
	if res.Status.String() != "NOT_AUTHORIZED" {
		t.Fatalf("String() mismatch: %s", res.Status.String())
	}
}

func TestParseResponseUnsolicitedCloseSession(t *testing.T) {
	call := NewCall(uid.SessionManager, uid.MethodIDCloseSession).Build()
	res, unsol, err := ParseResponse(call)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if res != nil {
		t.Fatalf("expected Unsolicited, got Result")
	}
	if unsol.InvokingID != uid.SessionManager || unsol.MethodID != uid.MethodIDCloseSession {
		t.Fatalf("unsolicited call mismatch: %+v", unsol)
	}
}
