package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/outerbridge/tcgstorage/feature"
)

// discoveryFixture builds a Level-0 Discovery body with a TPer feature,
// a Locking feature, an OpalV2 SSC, and one feature code this library
// doesn't know.
func discoveryFixture() []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 48)) // header

	buf.Write([]byte{0x00, 0x01, 0x10, 0x04}) // TPer, v1, len 4
	buf.WriteByte(0x41)                       // sync + ComID mgmt
	buf.Write([]byte{0x00, 0x00, 0x00})

	buf.Write([]byte{0x00, 0x02, 0x10, 0x04}) // Locking, v1, len 4
	buf.WriteByte(0x03)                       // supported + enabled
	buf.Write([]byte{0x00, 0x00, 0x00})

	buf.Write([]byte{0x02, 0x03, 0x20, 0x08}) // OpalV2, len 8
	buf.Write([]byte{0x10, 0x00})             // base ComID 0x1000
	buf.Write([]byte{0x00, 0x01})             // 1 ComID
	buf.Write([]byte{0x00, 0x00, 0x00, 0x00}) // variant fields

	buf.Write([]byte{0xC0, 0x01, 0x00, 0x02}) // vendor-specific, len 2
	buf.Write([]byte{0xAA, 0xBB})

	return buf.Bytes()
}

func TestParseLevel0Discovery(t *testing.T) {
	d0, err := ParseLevel0Discovery(discoveryFixture())
	if err != nil {
		t.Fatalf("ParseLevel0Discovery: %v", err)
	}
	if d0.TPer == nil || !d0.TPer.SyncSupported || !d0.TPer.ComIDMgmtSupported {
		t.Fatalf("TPer feature parsed wrong: %+v", d0.TPer)
	}
	if d0.TPer.AsyncSupported {
		t.Fatalf("async bit not set in fixture, parsed as set")
	}
	if d0.Locking == nil || !d0.Locking.Supported || !d0.Locking.Enabled || d0.Locking.Locked {
		t.Fatalf("Locking feature parsed wrong: %+v", d0.Locking)
	}

	ssc := d0.FindSSC(feature.CodeOpalV2)
	if ssc == nil {
		t.Fatalf("OpalV2 SSC missing")
	}
	if ssc.BaseComID != 0x1000 || ssc.NumComIDs != 1 {
		t.Fatalf("SSC ComID fields wrong: %+v", ssc)
	}

	if len(d0.UnknownFeatures) != 1 || d0.UnknownFeatures[0] != 0xC001 {
		t.Fatalf("unknown feature not recorded: %v", d0.UnknownFeatures)
	}
}

func TestFindComID(t *testing.T) {
	d0, err := ParseLevel0Discovery(discoveryFixture())
	if err != nil {
		t.Fatalf("ParseLevel0Discovery: %v", err)
	}
	if got := FindComID(d0, uint16(feature.CodeOpalV2), 0x0001); got != 0x1000 {
		t.Fatalf("FindComID = %#x, want the advertised 0x1000", got)
	}
	if got := FindComID(d0, uint16(feature.CodeEnterprise), 0x07FE); got != 0x07FE {
		t.Fatalf("FindComID fallback = %#x, want 0x07FE", got)
	}
}

func TestDiscoverViaDrive(t *testing.T) {
	d := &scriptDrive{responses: [][]byte{discoveryFixture()}}
	d0, err := Discover(context.Background(), d)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if d0.FindSSC(feature.CodeOpalV2) == nil {
		t.Fatalf("Discover lost the SSC descriptor")
	}
}
