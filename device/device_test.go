package device

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/outerbridge/tcgstorage/drive"
	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/method"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// buildDiscoveryRaw assembles a minimal Level-0 Discovery response body
// advertising a single OpalV2 SSC feature at the given base ComID,
// matching the {header}{feature descriptors} shape core.ParseLevel0Discovery
// expects.
func buildDiscoveryRaw(baseComID uint16) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 48)) // l0Header: length+major+minor+reserved+vendorID

	buf.Write([]byte{0x02, 0x03})       // feature code: OpalV2
	buf.WriteByte(0x10)                 // version
	buf.WriteByte(0x04)                 // descriptor length
	buf.Write([]byte{byte(baseComID >> 8), byte(baseComID)})
	buf.Write([]byte{0x00, 0x01}) // numComIDs

	return buf.Bytes()
}

func newTestDevice(t *testing.T, handler drive.MethodHandler) (*EncryptedDevice, *drive.Mock) {
	t.Helper()
	m := drive.NewMock("S2RBNB0HA12200B", 0x0800, 0, buildDiscoveryRaw(0x0800))
	m.Handler = handler
	d, err := New(context.Background(), m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, m
}

func TestNewBindsAdvertisedComID(t *testing.T) {
	d, _ := newTestDevice(t, nil)
	if d.Discovery().FindSSC(0x0203) == nil {
		t.Fatalf("expected OpalV2 SSC in discovery result")
	}
}

func TestAuthenticateSuccessAndFailure(t *testing.T) {
	const validProof = "correct-horse"
	handler := func(hsn uint32, invokingID, methodID uid.UID, args []stream.Value) ([]stream.Value, method.StatusCode) {
		if invokingID == uid.InvokeIDThisSP && methodID == uid.MethodIDAuthenticate {
			name, val, err := args[1].Named()
			if err != nil || name.Kind() == stream.KindEmpty {
				return nil, method.StatusInvalidParameter
			}
			proof, _ := val.Bytes()
			if string(proof) == validProof {
				return []stream.Value{stream.NewUint(1)}, method.StatusSuccess
			}
			return nil, method.StatusNotAuthorized
		}
		return nil, method.StatusNotAuthorized
	}
	d, _ := newTestDevice(t, handler)

	if err := d.Login(context.Background(), uid.AdminSP); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := d.Authenticate(context.Background(), uid.AuthoritySID, []byte(validProof)); err != nil {
		t.Fatalf("Authenticate(valid): %v", err)
	}

	err := d.Authenticate(context.Background(), uid.AuthoritySID, []byte{0x00})
	var perr *errs.Password
	if !errors.As(err, &perr) {
		t.Fatalf("Authenticate(wrong): err = %v, want *errs.Password", err)
	}
}

func TestGetTableRowsSingleRowTable(t *testing.T) {
	d, _ := newTestDevice(t, nil)
	if err := d.Login(context.Background(), uid.LockingSP); err != nil {
		t.Fatalf("Login: %v", err)
	}

	seq, err := d.GetTableRows(context.Background(), uid.TableMBRControl)
	if err != nil {
		t.Fatalf("GetTableRows: %v", err)
	}
	row, ok, err := seq.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next: row=%v ok=%v err=%v", row, ok, err)
	}
	if row != uid.RowMBRControl {
		t.Fatalf("got row %s, want %s", row, uid.RowMBRControl)
	}
	_, ok, err = seq.Next(context.Background())
	if err != nil {
		t.Fatalf("Next (exhausted): %v", err)
	}
	if ok {
		t.Fatalf("expected single-row table to exhaust after one row")
	}
}

func TestGetTableRowsWalksNext(t *testing.T) {
	rows := [][8]byte{uid.GlobalRange}
	handler := func(hsn uint32, invokingID, methodID uid.UID, args []stream.Value) ([]stream.Value, method.StatusCode) {
		if methodID == uid.MethodIDNext {
			if len(rows) == 0 {
				return []stream.Value{stream.NewList()}, method.StatusSuccess
			}
			var elems []stream.Value
			for _, r := range rows {
				elems = append(elems, stream.NewBytes(r[:]))
			}
			rows = nil
			return []stream.Value{stream.NewList(elems...)}, method.StatusSuccess
		}
		return nil, method.StatusNotAuthorized
	}
	d, _ := newTestDevice(t, handler)
	if err := d.Login(context.Background(), uid.LockingSP); err != nil {
		t.Fatalf("Login: %v", err)
	}

	seq, err := d.GetTableRows(context.Background(), uid.TableLocking)
	if err != nil {
		t.Fatalf("GetTableRows: %v", err)
	}
	row, ok, err := seq.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next: row=%v ok=%v err=%v", row, ok, err)
	}
	if row != uid.GlobalRange {
		t.Fatalf("got row %s, want %s", row, uid.GlobalRange)
	}
	_, ok, err = seq.Next(context.Background())
	if err != nil {
		t.Fatalf("Next (exhausted): %v", err)
	}
	if ok {
		t.Fatalf("expected exhaustion after one page")
	}
}
