package id

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"
)

// Size is the byte length of an ID.
const Size = 16

// ID is [8 bytes unix ms][8 bytes sequence], big-endian, so byte order is
// creation order.
type ID [Size]byte

// String returns the 32-character lowercase hex form used as a message key.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// Millis returns the creation time in unix milliseconds.
func (i ID) Millis() int64 { return int64(binary.BigEndian.Uint64(i[:8])) }

// Time returns the creation time.
func (i ID) Time() time.Time { return time.UnixMilli(i.Millis()) }

// Compare orders IDs by creation.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// Parse decodes the hex form produced by String.
func Parse(s string) (ID, error) {
	var i ID
	if len(s) != 2*Size {
		return i, fmt.Errorf("id: %q: want %d hex characters", s, 2*Size)
	}
	if _, err := hex.Decode(i[:], []byte(s)); err != nil {
		return i, fmt.Errorf("id: %q: %w", s, err)
	}
	return i, nil
}

// Generator hands out strictly increasing IDs within a process.
type Generator struct {
	mu       sync.Mutex
	now      func() int64
	lastMs   int64
	sequence uint64
}

// NewGenerator returns a Generator on the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: func() int64 { return time.Now().UnixMilli() }}
}

// Next returns a new ID. A clock that moves backwards is pinned to the last
// millisecond seen; a sequence exhausted within one millisecond waits for the
// next.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	switch {
	case ms > g.lastMs:
		g.sequence = 0
	case g.sequence < math.MaxUint64:
		g.sequence++
	default:
		for ms <= g.lastMs {
			time.Sleep(time.Millisecond / 8)
			ms = g.now()
		}
		g.sequence = 0
	}
	g.lastMs = ms

	var i ID
	binary.BigEndian.PutUint64(i[:8], uint64(ms))
	binary.BigEndian.PutUint64(i[8:], g.sequence)
	return i
}
