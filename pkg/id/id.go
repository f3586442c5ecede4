package id

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ID is a 128-bit, time-ordered identifier laid out as a UUIDv7:
// [48 bits ms_timestamp][4 bits version][12 bits sequence][2 bits variant][62 bits node].
type ID [16]byte

const maxSequence = 1<<12 - 1

// Bytes returns the raw 16-byte representation.
func (i ID) Bytes() []byte { b := make([]byte, 16); copy(b, i[:]); return b }

// String returns the canonical UUID text form.
func (i ID) String() string { return uuid.UUID(i).String() }

// Millis returns the embedded creation time in ms since the Unix epoch.
func (i ID) Millis() int64 {
	var b [8]byte
	copy(b[2:], i[0:6])
	return int64(binary.BigEndian.Uint64(b[:]))
}

// Compare returns -1, 0, 1 based on lexical comparison.
func (i ID) Compare(other ID) int {
	for idx := 0; idx < 16; idx++ {
		if i[idx] < other[idx] {
			return -1
		}
		if i[idx] > other[idx] {
			return 1
		}
	}
	return 0
}

// Parse decodes the canonical text form produced by String.
func Parse(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, err
	}
	return ID(u), nil
}

// Generator produces monotonically increasing IDs per process. Each generator
// draws a random 62-bit node so that IDs minted by different participants in
// the same millisecond do not collide.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint16
	node     [8]byte
}

// NewGenerator creates a new Generator with a random node.
func NewGenerator() *Generator {
	g := &Generator{}
	if _, err := rand.Read(g.node[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// uuid-derived node rather than an all-zero one.
		u := uuid.New()
		copy(g.node[:], u[8:])
	}
	return g
}

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new ID. If the clock goes backwards it pins to lastMs and
// increments the sequence; if the 12-bit sequence overflows it waits for the
// next millisecond.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		if g.sequence == maxSequence {
			for {
				ms = NowMs()
				if ms > g.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			g.sequence = 0
		} else {
			g.sequence++
		}
	} else {
		g.sequence = 0
	}

	g.lastMs = ms
	return makeID(ms, g.sequence, g.node)
}

// NextString is shorthand for Next().String().
func (g *Generator) NextString() string { return g.Next().String() }

func makeID(ms int64, seq uint16, node [8]byte) ID {
	var id ID
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(ms))
	copy(id[0:6], ts[2:8])
	id[6] = 0x70 | byte(seq>>8)&0x0f
	id[7] = byte(seq)
	copy(id[8:16], node[:])
	id[8] = 0x80 | id[8]&0x3f
	return id
}
