package stream

import (
	"bytes"
	"errors"
	"testing"
)

func TestValueTokenizeRoundTrip(t *testing.T) {
	for _, tt := range []struct {
		name string
		v    Value
	}{
		{"empty", Value{}},
		{"uint zero", NewUint(0)},
		{"uint small", NewUint(17)},
		{"uint wide", NewUint(0xDEADBEEFCAFE)},
		{"int negative", NewInt(-42)},
		{"int wide negative", NewInt(-0x12345678)},
		{"bytes empty", NewBytes(nil)},
		{"bytes short", NewBytes([]byte("1234"))},
		{"bytes medium", NewBytes(make([]byte, 100))},
		{"command eos", NewCommand(CmdEndOfSession)},
		{"list flat", NewList(NewUint(1), NewUint(2), NewUint(3))},
		{"list nested", NewList(NewList(NewBytes([]byte("a"))), NewUint(9))},
		{"list empty", NewList()},
		{"named int key", NewNamed(NewUint(3), NewBytes([]byte("pin")))},
		{"named bytes key", NewNamed(NewBytes([]byte("MaxPackets")), NewUint(1))},
		{"named nested", NewNamed(NewUint(0), NewList(NewNamed(NewUint(1), NewUint(2))))},
	} {
		t.Run(tt.name, func(t *testing.T) {
			b := Tokenize(tt.v)
			got, rest, err := Detokenize(b)
			if err != nil {
				t.Fatalf("Detokenize: %v", err)
			}
			if len(rest) != 0 {
				t.Fatalf("trailing bytes: % x", rest)
			}
			if !got.Equal(tt.v) {
				t.Fatalf("round trip mismatch: got %+v, want %+v", got, tt.v)
			}
		})
	}
}

func TestBytesTokenizeRoundTrip(t *testing.T) {
	// The reverse law: well-formed minimally-encoded token streams
	// survive detokenize+tokenize bit-identically.
	for _, tt := range []struct {
		name string
		in   []byte
	}{
		{"tiny atom", []byte{0x07}},
		{"short byte atom", append([]byte{0xA4}, []byte("1234")...)},
		{"list of atoms", []byte{StartList, 0x01, 0x02, EndList}},
		{"named pair", []byte{StartName, 0x00, 0x2A, EndName}},
		{"command", []byte{EndOfSession}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			v, rest, err := Detokenize(tt.in)
			if err != nil {
				t.Fatalf("Detokenize: %v", err)
			}
			if len(rest) != 0 {
				t.Fatalf("trailing bytes: % x", rest)
			}
			if got := Tokenize(v); !bytes.Equal(got, tt.in) {
				t.Fatalf("re-encode = % x, want % x", got, tt.in)
			}
		})
	}
}

func TestDetokenizeIntegerWidths(t *testing.T) {
	// Atom data lengths map to the nearest holding width: 3-byte atoms
	// decode as 4-byte integers, 5..7-byte atoms as 8-byte.
	for _, tt := range []struct {
		in        []byte
		wantWidth int
		wantVal   uint64
	}{
		{[]byte{0x81, 0xFF}, 1, 0xFF},
		{[]byte{0x82, 0x01, 0x00}, 2, 0x100},
		{[]byte{0x83, 0x01, 0x02, 0x03}, 4, 0x010203},
		{[]byte{0x84, 0x01, 0x02, 0x03, 0x04}, 4, 0x01020304},
		{[]byte{0x85, 0x01, 0x02, 0x03, 0x04, 0x05}, 8, 0x0102030405},
		{[]byte{0x88, 0, 0, 0, 0, 0, 0, 0, 1}, 8, 1},
	} {
		v, _, err := Detokenize(tt.in)
		if err != nil {
			t.Fatalf("Detokenize(% x): %v", tt.in, err)
		}
		if v.Width() != tt.wantWidth {
			t.Errorf("width(% x) = %d, want %d", tt.in, v.Width(), tt.wantWidth)
		}
		if got, _ := v.Uint(); got != tt.wantVal {
			t.Errorf("value(% x) = %#x, want %#x", tt.in, got, tt.wantVal)
		}
	}
}

func TestDetokenizeSignedAtom(t *testing.T) {
	v, _, err := Detokenize([]byte{0x91, 0xFF})
	if err != nil {
		t.Fatalf("Detokenize: %v", err)
	}
	if !v.Signed() {
		t.Fatalf("want signed")
	}
	if got, _ := v.Int(); got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
}

func TestDetokenizeStructuralMismatch(t *testing.T) {
	for _, tt := range []struct {
		name string
		in   []byte
	}{
		{"unterminated list", []byte{StartList, 0x01}},
		{"unterminated name", []byte{StartName, 0x00, 0x01}},
		{"name closed by end list", []byte{StartName, 0x00, 0x01, EndList}},
		{"bare end list", []byte{EndList}},
		{"bare end name", []byte{EndName}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Detokenize(tt.in); !errors.Is(err, ErrStructuralMismatch) {
				t.Errorf("Detokenize(% x) err = %v, want ErrStructuralMismatch", tt.in, err)
			}
		})
	}
}

func TestValueEquality(t *testing.T) {
	if NewUint(5).Equal(NewInt(5)) {
		t.Errorf("signedness must distinguish integers")
	}
	if NewList().Equal(Value{}) {
		t.Errorf("empty list must not equal Empty")
	}
	if !NewNamed(NewUint(1), NewBytes([]byte("x"))).Equal(NewNamed(NewUint(1), NewBytes([]byte("x")))) {
		t.Errorf("structurally equal named pairs must compare equal")
	}
}

func TestSurroundWithList(t *testing.T) {
	inner := EncodeUint(4)
	b := SurroundWithList(inner)
	v, rest, err := Detokenize(b)
	if err != nil || len(rest) != 0 {
		t.Fatalf("Detokenize: %v rest=% x", err, rest)
	}
	elems, err := v.List()
	if err != nil || len(elems) != 1 {
		t.Fatalf("want a 1-element list, got %v %v", elems, err)
	}
}
