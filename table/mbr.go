package table

import (
	"context"
	"fmt"

	"github.com/outerbridge/tcgstorage/errs"
	"github.com/outerbridge/tcgstorage/method"
	"github.com/outerbridge/tcgstorage/session"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

// MBRControl column numbers, grounded on the teacher's MBRControl_Set
// (pkg/core/table/locking.go). They equal the positions of the same
// columns in the MBRControl Desc, whose column 0 is the row's UID.
const (
	mbrColEnable         = 1
	mbrColDone           = 2
	mbrColDoneOnReset    = 3
)

// SetMBRDone sets the MBRControl table's Done column: true tells the
// peripheral the PBA image has been presented and Shadow MBR reads
// should stop being redirected to it.
func SetMBRDone(ctx context.Context, s *session.Session, done bool) error {
	return SetColumn(ctx, s, uid.RowMBRControl, mbrColDone, stream.NewUint(boolToUint(done)))
}

// SetMBREnable sets the MBRControl table's Enable column.
func SetMBREnable(ctx context.Context, s *session.Session, enable bool) error {
	return SetColumn(ctx, s, uid.RowMBRControl, mbrColEnable, stream.NewUint(boolToUint(enable)))
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// mbrChunkSize is a conservative per-Set payload size for writing the
// shadow MBR image: small enough to fit inside a single ComPacket under
// the negotiated host profile's MaxIndTokenSize even on a peripheral
// that reports the Core Specification's guaranteed minimums.
const mbrChunkSize = 1024

// LoadPBAImage writes image to the Locking SP's byte-addressed MBR
// table in mbrChunkSize chunks, each a Set(startRow=offset, value=chunk)
// call against the MBR table's row. Grounded on the teacher's
// LoadPBAImage (pkg/core/table/locking.go), which chunks the image the
// same way to stay within the negotiated token size.
func LoadPBAImage(ctx context.Context, s *session.Session, image []byte) error {
	for off := 0; off < len(image); off += mbrChunkSize {
		end := off + mbrChunkSize
		if end > len(image) {
			end = len(image)
		}
		chunk := image[off:end]
		call := method.NewCall(uid.TableMBR, uid.MethodIDSet).
			NamedUInt(0, uint64(off)).
			NamedBytes(1, chunk)
		if _, err := s.ExecuteMethod(ctx, call, "Set(MBR)"); err != nil {
			return fmt.Errorf("table: LoadPBAImage at offset %d: %w", off, err)
		}
	}
	return nil
}

// ReadMBR reads len(p) bytes of the shadow MBR image starting at off
// into p, returning the number of bytes actually read.
func ReadMBR(ctx context.Context, s *session.Session, p []byte, off uint32) (int, error) {
	call := method.NewCall(uid.TableMBR, uid.MethodIDGet).
		NamedUInt(0, uint64(off)).
		NamedUInt(1, uint64(off)+uint64(len(p))-1)
	result, err := s.ExecuteMethod(ctx, call, "Get(MBR)")
	if err != nil {
		return 0, err
	}
	if len(result.Values) == 0 {
		return 0, &errs.Protocol{Cause: fmt.Errorf("table: ReadMBR: empty result")}
	}
	b, berr := result.Values[0].Bytes()
	if berr != nil {
		return 0, &errs.Protocol{Cause: fmt.Errorf("table: ReadMBR: %w", berr)}
	}
	n := copy(p, b)
	return n, nil
}
