package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/outerbridge/tcgstorage/feature"
)

// Level0Discovery holds the parsed Level-0 Discovery response: the typed
// feature descriptors the peripheral advertised, plus the feature codes
// of any descriptors this package doesn't recognize (their payloads are
// skipped, not kept).
type Level0Discovery struct {
	TPer     *feature.TPer
	Locking  *feature.Locking
	SSCs     []*feature.SSC
	BlockSID *feature.BlockSID

	UnknownFeatures []feature.Code
}

// FindSSC returns the first matching SSC descriptor, or nil.
func (l *Level0Discovery) FindSSC(code feature.Code) *feature.SSC {
	for _, s := range l.SSCs {
		if s.Code == code {
			return s
		}
	}
	return nil
}

type l0Header struct {
	Length   uint32
	Major    uint16
	Minor    uint16
	_        [8]byte
	VendorID [32]byte
}

// ParseLevel0Discovery parses a raw Level-0 Discovery response body
// (protocol 0x01, protocol-specific 0x0001).
func ParseLevel0Discovery(raw []byte) (*Level0Discovery, error) {
	r := newByteReader(raw)
	var hdr l0Header
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("core: discovery header: %w", err)
	}
	d := &Level0Discovery{}
	for r.Len() >= 4 {
		var code uint16
		var version, length uint8
		if err := binary.Read(r, binary.BigEndian, &code); err != nil {
			return nil, fmt.Errorf("core: feature header: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &version); err != nil {
			return nil, fmt.Errorf("core: feature header: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("core: feature header: %w", err)
		}
		fc := feature.Code(code)
		lr := io.LimitReader(r, int64(length))
		switch fc {
		case feature.CodeTPer:
			f, err := feature.ReadTPerFeature(lr)
			if err != nil {
				return nil, err
			}
			d.TPer = f
		case feature.CodeLocking:
			f, err := feature.ReadLockingFeature(lr)
			if err != nil {
				return nil, err
			}
			d.Locking = f
		case feature.CodeBlockSID:
			f, err := feature.ReadBlockSIDFeature(lr)
			if err != nil {
				return nil, err
			}
			d.BlockSID = f
		case feature.CodeEnterprise, feature.CodeOpalV1, feature.CodeSingleUser,
			feature.CodeDataStore, feature.CodeOpalV2, feature.CodeOpalite,
			feature.CodePyriteV1, feature.CodePyriteV2, feature.CodeRubyV1,
			feature.CodeKeyPerIO, feature.CodeNamespaceLocking, feature.CodeDataRemoval:
			f, err := feature.ReadSSCFeature(fc, lr, int(length))
			if err != nil {
				return nil, err
			}
			d.SSCs = append(d.SSCs, f)
		default:
			d.UnknownFeatures = append(d.UnknownFeatures, fc)
		}
		io.Copy(io.Discard, lr) // consume any unread remainder of this descriptor
		if err := r.skipPadding(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// byteReader is a minimal io.Reader over a byte slice that tracks how many
// bytes remain, used so feature parsing can bound each descriptor's reader
// without copying.
type byteReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

func (r *byteReader) Len() int { return len(r.b) - r.pos }

// skipPadding is a no-op: Level-0 Discovery feature descriptors are not
// individually padded (only the packet framer pads to 4 bytes); kept as a
// named step so the parse loop documents that this was considered.
func (r *byteReader) skipPadding() error { return nil }
