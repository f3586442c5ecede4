package eventlog

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
//   - ch/{channel}/m              last assigned sequence
//   - ch/{channel}/e/{seq_be8}    entries

var (
	chPrefix   = []byte("ch/")
	metaSuffix = []byte("/m")
	entrySeg   = []byte("/e/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// KeyLogMeta builds the channel metadata key.
func KeyLogMeta(channel string) []byte {
	k := make([]byte, 0, len(channel)+8)
	k = append(k, chPrefix...)
	k = append(k, channel...)
	k = append(k, metaSuffix...)
	return k
}

// KeyLogEntry builds the entry key with a big-endian sequence for proper ordering.
func KeyLogEntry(channel string, seq uint64) []byte {
	k := make([]byte, 0, len(channel)+16)
	k = append(k, chPrefix...)
	k = append(k, channel...)
	k = append(k, entrySeg...)
	k = appendBE8(k, seq)
	return k
}

// seqFromKey extracts the trailing sequence of an entry key.
func seqFromKey(k []byte) uint64 {
	return binary.BigEndian.Uint64(k[len(k)-8:])
}
