package pebblekv

import (
	"encoding/binary"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - c/{name}/m              list metadata: lastSeq(8B BE) | len(8B BE)
// - c/{name}/e/{seq_be8}    list entries
// - c/{name}/h/{field}      hash fields
// - c/{name}/s/{member}     set members (empty value)
//
// Every collection lives under c/{name}/ so dropping one is a prefix scan.

var (
	sep        = byte('/')
	collPrefix = []byte("c/")
	metaSuffix = []byte("m")
	entrySeg   = []byte("e/")
	hashSeg    = []byte("h/")
	setSeg     = []byte("s/")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyCollection builds the prefix shared by every key of a collection.
func keyCollection(name string) []byte {
	k := make([]byte, 0, len(collPrefix)+len(name)+16)
	k = append(k, collPrefix...)
	k = append(k, name...)
	k = append(k, sep)
	return k
}

func keyListMeta(name string) []byte {
	return append(keyCollection(name), metaSuffix...)
}

func keyListEntries(name string) []byte {
	return append(keyCollection(name), entrySeg...)
}

// keyListEntry builds the entry key with a big-endian sequence for proper ordering.
func keyListEntry(name string, seq uint64) []byte {
	return appendBE8(keyListEntries(name), seq)
}

func keyHash(name string) []byte {
	return append(keyCollection(name), hashSeg...)
}

func keyHashField(name, field string) []byte {
	return append(keyHash(name), field...)
}

func keySet(name string) []byte {
	return append(keyCollection(name), setSeg...)
}

func keySetMember(name, member string) []byte {
	return append(keySet(name), member...)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

type listMeta struct {
	lastSeq uint64
	n       uint64
}

func (m listMeta) encode() []byte {
	b := make([]byte, 0, 16)
	b = appendBE8(b, m.lastSeq)
	return appendBE8(b, m.n)
}

func decodeListMeta(b []byte) (listMeta, bool) {
	if len(b) < 16 {
		return listMeta{}, false
	}
	return listMeta{
		lastSeq: binary.BigEndian.Uint64(b[:8]),
		n:       binary.BigEndian.Uint64(b[8:16]),
	}, true
}
