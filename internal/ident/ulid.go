// Package ident issues ULIDs: 26-character Crockford base32 strings whose
// first ten characters encode a millisecond timestamp, so ids sort by
// creation time.
package ident

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"time"
)

const (
	crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	Length    = 26
)

var ErrInvalid = errors.New("invalid ulid")

// Source issues monotonic ULIDs. Ids created within the same millisecond
// carry an increasing sequence in the first two random bytes.
type Source struct {
	mu   sync.Mutex
	now  func() time.Time
	last uint64
	seq  uint16
}

// NewSource returns a Source reading the wall clock, or now when non-nil.
func NewSource(now func() time.Time) *Source {
	if now == nil {
		now = time.Now
	}
	return &Source{now: now}
}

var defaultSource = NewSource(nil)

// New returns a ULID from the process-wide source.
func New() string { return defaultSource.New() }

func (s *Source) New() string {
	s.mu.Lock()
	ts := uint64(s.now().UnixMilli())
	if ts == s.last {
		s.seq++
	} else {
		s.last = ts
		s.seq = 0
	}
	seq := s.seq
	s.mu.Unlock()

	var b [16]byte
	b[0] = byte(ts >> 40)
	b[1] = byte(ts >> 32)
	b[2] = byte(ts >> 24)
	b[3] = byte(ts >> 16)
	b[4] = byte(ts >> 8)
	b[5] = byte(ts)
	rand.Read(b[6:])
	binary.BigEndian.PutUint16(b[6:8], seq)
	return encode(b)
}

// encode writes 128 bits as 26 five-bit groups, most significant first.
// The leading group holds only the top 3 bits.
func encode(b [16]byte) string {
	hi := binary.BigEndian.Uint64(b[:8])
	lo := binary.BigEndian.Uint64(b[8:])
	var out [Length]byte
	for i := Length - 1; i >= 0; i-- {
		out[i] = crockford[lo&31]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}

// Time returns the timestamp embedded in id.
func Time(id string) (time.Time, error) {
	if len(id) != Length {
		return time.Time{}, ErrInvalid
	}
	var ts uint64
	for i := range 10 {
		v := strings.IndexByte(crockford, upper(id[i]))
		if v < 0 {
			return time.Time{}, ErrInvalid
		}
		ts = ts<<5 | uint64(v)
	}
	return time.UnixMilli(int64(ts)), nil
}

// Valid reports whether id is a well-formed ULID.
func Valid(id string) bool {
	if len(id) != Length || id[0] > '7' {
		return false
	}
	for i := range len(id) {
		if strings.IndexByte(crockford, upper(id[i])) < 0 {
			return false
		}
	}
	return true
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
