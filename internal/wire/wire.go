// Package wire frames the internal values liverepo persists and transports:
// collection member indexes and watch events. Decoding is strict; trailing
// bytes, bad magic, and inconsistent counts are rejected so foreign or
// corrupt entries never reach a codec.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindIndex byte = 1
	kindEvent byte = 2
)

// Event operations.
const (
	OpPut byte = 1
	OpDel byte = 2
)

var (
	ErrCorrupt = errors.New("liverepo: corrupt entry")
	magic4     = [...]byte{'L', 'R', 'E', 'P'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Index: magic(4) | ver(1) | kind(1=index) | rev(u64 be) | n(u32 be) |
// (idLen(u16 be) | id(idLen)) * n
//
// ids keep the collection's insertion order; rev increases on every rewrite
// so watchers observe content-only changes too.
func EncodeIndex(rev uint64, ids []string) ([]byte, error) {
	total := 4 + 1 + 1 + 8 + 4
	for _, id := range ids {
		if l := len(id); l == 0 || l > 0xFFFF {
			return nil, errors.New("liverepo: invalid id length in index")
		}
		total += 2 + len(id)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindIndex)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], rev)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(ids)))
	buf.Write(u4[:])

	for _, id := range ids {
		binary.BigEndian.PutUint16(u2[:], uint16(len(id)))
		buf.Write(u2[:])
		buf.WriteString(id)
	}

	return buf.Bytes(), nil
}

func DecodeIndex(b []byte) (rev uint64, ids []string, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindIndex {
		return 0, nil, ErrCorrupt
	}

	off := 6

	rev = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if n < 0 {
		return 0, nil, ErrCorrupt
	}

	// don't trust n for preallocation; bound by what the buffer can hold
	capHint := n
	if max := (len(b) - off) / 2; capHint > max {
		capHint = max
	}
	ids = make([]string, 0, capHint)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return 0, nil, ErrCorrupt
		}
		l := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if l <= 0 || l > len(b)-off {
			return 0, nil, ErrCorrupt
		}
		ids = append(ids, string(b[off:off+l]))
		off += l
	}
	if off != len(b) {
		return 0, nil, ErrCorrupt // trailing bytes
	}
	return rev, ids, nil
}

// Event: magic(4) | ver(1) | kind(2=event) | op(1) | vlen(u32 be) | payload(vlen)
//
// Delete events carry an empty payload.
func EncodeEvent(op byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEvent)
	buf.WriteByte(op)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeEvent(b []byte) (op byte, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEvent {
		return 0, nil, ErrCorrupt
	}
	op = b[6]
	if op != OpPut && op != OpDel {
		return 0, nil, ErrCorrupt
	}

	off := 7
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return 0, nil, ErrCorrupt // short or trailing bytes
	}
	return op, b[off : off+vlen], nil
}
