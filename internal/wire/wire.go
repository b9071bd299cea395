package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version      byte = 1
	kindSnapshot byte = 1

	// magic(4) | ver(1) | kind(1) | gen(8) | klen(2) | vlen(4)
	headerLen = 4 + 1 + 1 + 8 + 2 + 4
	maxKeyLen = 0xFFFF
)

var (
	ErrCorrupt     = errors.New("optcache: corrupt snapshot")
	ErrKeyMismatch = errors.New("optcache: snapshot key mismatch")
	magic4         = [...]byte{'O', 'P', 'T', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Snapshot frame:
//
//	magic(4) | ver(1) | kind(1=snapshot) | gen(u64 be) | klen(u16 be) | key(klen) | vlen(u32 be) | payload(vlen)
//
// The key is stored so a frame read back under another key (shared
// backends, hashed provider keys) is detected.
func EncodeSnapshot(key string, gen uint64, payload []byte) ([]byte, error) {
	if l := len(key); l == 0 || l > maxKeyLen {
		return nil, fmt.Errorf("optcache: invalid snapshot key length %d", l)
	}

	var buf bytes.Buffer
	buf.Grow(headerLen + len(key) + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindSnapshot)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(key)))
	buf.Write(u2[:])
	buf.WriteString(key)

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodeSnapshot validates a frame written for key and returns its
// generation and payload. The payload aliases b.
func DecodeSnapshot(key string, b []byte) (gen uint64, payload []byte, err error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindSnapshot {
		return 0, nil, ErrCorrupt
	}

	off := 6

	gen = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	klen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if klen == 0 || klen > len(b)-off {
		return 0, nil, ErrCorrupt
	}
	stored := b[off : off+klen]
	off += klen

	if off+4 > len(b) {
		return 0, nil, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // no trailing bytes
		return 0, nil, ErrCorrupt
	}

	if string(stored) != key {
		return 0, nil, ErrKeyMismatch
	}
	return gen, b[off : off+vlen], nil
}
