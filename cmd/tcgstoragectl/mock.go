package main

import (
	"crypto/rand"
	"sort"

	"github.com/outerbridge/tcgstorage/drive"
	"github.com/outerbridge/tcgstorage/method"
	"github.com/outerbridge/tcgstorage/stream"
	"github.com/outerbridge/tcgstorage/uid"
)

const mockComID = 0x1000

// mockDiscovery assembles the Level-0 Discovery body the built-in mock
// peripheral advertises: a synchronous TPer, a locking-capable Locking
// feature, and an Opal v2 SSC bound to mockComID.
func mockDiscovery() []byte {
	body := make([]byte, 48)

	body = append(body, 0x00, 0x01, 0x10, 0x04, 0x41, 0x00, 0x00, 0x00) // TPer: sync + ComID mgmt
	body = append(body, 0x00, 0x02, 0x10, 0x04, 0x09, 0x00, 0x00, 0x00) // Locking: supported + media encryption
	body = append(body, 0x02, 0x03, 0x20, 0x08,
		byte(mockComID>>8), byte(mockComID&0xff), 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00) // Opal v2

	return body
}

// mockStore is the object model behind the built-in mock: per-object
// column values plus per-table row lists, enough for every sub-command
// to run end to end without hardware.
type mockStore struct {
	columns map[uid.UID]map[uint32]stream.Value
	rows    map[uid.UID][]uid.UID
}

func newMockDrive() drive.Interface {
	st := &mockStore{
		columns: map[uid.UID]map[uint32]stream.Value{
			uid.CPINMSID: {3: stream.NewBytes([]byte("1234"))},
			uid.CPINSID:  {3: stream.NewBytes([]byte("1234"))},
			uid.AdminSP:  {6: stream.NewUint(9)}, // Manufactured
			uid.LockingSP: {
				6: stream.NewUint(8), // Manufactured-Inactive
			},
			uid.GlobalRange: {
				3:  stream.NewUint(0),
				4:  stream.NewUint(0),
				5:  stream.NewUint(0),
				6:  stream.NewUint(0),
				7:  stream.NewUint(0),
				8:  stream.NewUint(0),
				10: stream.NewBytes([]byte{0x00, 0x00, 0x08, 0x06, 0x00, 0x00, 0x00, 0x01}),
			},
			uid.RowMBRControl: {1: stream.NewUint(0), 2: stream.NewUint(0)},
		},
		rows: map[uid.UID][]uid.UID{
			uid.TableSP:        {uid.AdminSP, uid.LockingSP},
			uid.TableAuthority: {uid.AuthorityAnybody, uid.AuthoritySID, uid.LockingAuthorityAdmin1},
			uid.TableCPIN:      {uid.CPINSID, uid.CPINMSID, uid.CPINAdmin1},
			uid.TableLocking:   {uid.GlobalRange},
			uid.TableTable: {
				uid.TableTable.ToDescriptor(), uid.TableSP.ToDescriptor(),
				uid.TableAuthority.ToDescriptor(), uid.TableCPIN.ToDescriptor(),
				uid.TableLocking.ToDescriptor(), uid.TableMBRControl.ToDescriptor(),
			},
		},
	}
	m := drive.NewMock("MOCK-0000-0001", mockComID, 0, mockDiscovery())
	m.Handler = st.handle
	return m
}

func (st *mockStore) handle(hsn uint32, invokingID, methodID uid.UID, args []stream.Value) ([]stream.Value, method.StatusCode) {
	switch methodID {
	case uid.MethodIDAuthenticate:
		// Every credential is accepted; the mock exists to exercise the
		// host stack, not to model PIN verification.
		return []stream.Value{stream.NewUint(1)}, method.StatusSuccess

	case uid.MethodIDNext:
		return st.next(invokingID, args)

	case uid.MethodIDGet:
		return st.get(invokingID, args)

	case uid.MethodIDSet:
		return st.set(invokingID, args)

	case uid.MethodIDGenKey, uid.MethodIDActivate, uid.MethodIDRevert:
		return nil, method.StatusSuccess

	case uid.MethodIDRandom:
		if len(args) == 0 {
			return nil, method.StatusInvalidParameter
		}
		n, err := args[0].Uint()
		if err != nil || n > 64 {
			return nil, method.StatusInvalidParameter
		}
		b := make([]byte, n)
		rand.Read(b)
		return []stream.Value{stream.NewBytes(b)}, method.StatusSuccess

	default:
		return nil, method.StatusInvalidFunction
	}
}

func (st *mockStore) next(tableID uid.UID, args []stream.Value) ([]stream.Value, method.StatusCode) {
	rows := st.rows[tableID]
	var from uid.UID
	for _, a := range args {
		name, val, err := a.Named()
		if err != nil {
			continue
		}
		if key, _ := name.Uint(); key == 0 {
			if b, err := val.Bytes(); err == nil {
				from, _ = uid.FromBytes(b)
			}
		}
	}
	start := 0
	if !from.IsNull() {
		for i, r := range rows {
			if r == from {
				start = i + 1
				break
			}
		}
		if start == 0 {
			return nil, method.StatusInvalidParameter
		}
	}
	var out []stream.Value
	for _, r := range rows[start:] {
		out = append(out, stream.NewBytes(r[:]))
	}
	return []stream.Value{stream.NewList(out...)}, method.StatusSuccess
}

func (st *mockStore) get(object uid.UID, args []stream.Value) ([]stream.Value, method.StatusCode) {
	cols, ok := st.columns[object]
	if !ok {
		return nil, method.StatusInvalidParameter
	}
	start, end := uint64(0), uint64(31)
	if len(args) > 0 {
		block, err := args[0].List()
		if err != nil {
			return nil, method.StatusInvalidParameter
		}
		for _, nv := range block {
			name, val, nerr := nv.Named()
			if nerr != nil {
				continue
			}
			key, _ := name.Uint()
			n, _ := val.Uint()
			switch key {
			case 0:
				start = n
			case 1:
				end = n
			}
		}
	}
	present := make([]uint32, 0, len(cols))
	for c := range cols {
		if uint64(c) >= start && uint64(c) <= end {
			present = append(present, c)
		}
	}
	sort.Slice(present, func(i, j int) bool { return present[i] < present[j] })
	var out []stream.Value
	for _, c := range present {
		out = append(out, stream.NewNamed(stream.NewUint(uint64(c)), cols[c]))
	}
	return []stream.Value{stream.NewList(out...)}, method.StatusSuccess
}

func (st *mockStore) set(object uid.UID, args []stream.Value) ([]stream.Value, method.StatusCode) {
	if st.columns[object] == nil {
		st.columns[object] = map[uint32]stream.Value{}
	}
	for _, a := range args {
		name, val, err := a.Named()
		if err != nil {
			continue
		}
		key, _ := name.Uint()
		if key != 1 {
			continue
		}
		cells, err := val.List()
		if err != nil {
			return nil, method.StatusInvalidParameter
		}
		for _, cell := range cells {
			cname, cval, cerr := cell.Named()
			if cerr != nil {
				continue
			}
			col, _ := cname.Uint()
			if col == 0 {
				// Column 0 is the object's own UID.
				return nil, method.StatusNotAuthorized
			}
			st.columns[object][uint32(col)] = cval
		}
	}
	return nil, method.StatusSuccess
}
