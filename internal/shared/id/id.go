// Package id generates trace and span identifiers.
//
// Trace IDs are the 16 bytes of a ULID rendered as 32 lowercase hex
// characters, so they sort by creation time. Span IDs are 8 random bytes
// rendered as 16 hex characters. Both fit the B3 header format.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// TraceID identifies a trace
type TraceID string

// SpanID identifies a span within a trace
type SpanID string

// String methods for ID types
func (id TraceID) String() string { return string(id) }
func (id SpanID) String() string  { return string(id) }

// Hex lengths of generated identifiers. B3 also accepts 16-character
// trace IDs.
const (
	TraceIDLength      = 32
	ShortTraceIDLength = 16
	SpanIDLength       = 16
)

// ============================================================================
// Generator
// ============================================================================

// Generator generates ULID-based identifiers
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
	now       func() time.Time
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with cryptographically secure entropy
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
		now:     time.Now,
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
		now:     time.Now,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}

// TraceID creates a 128-bit trace identifier
func (g *Generator) TraceID() TraceID {
	u := g.Generate()
	return TraceID(hex.EncodeToString(u[:]))
}

// SpanID creates a 64-bit span identifier
func (g *Generator) SpanID() SpanID {
	var b [8]byte

	g.entropyMu.Lock()
	_, err := io.ReadFull(g.entropy, b[:])
	g.entropyMu.Unlock()

	if err != nil || b == [8]byte{} {
		// Fall back to the random tail of a ULID
		u := g.Generate()
		copy(b[:], u[8:])
	}
	return SpanID(hex.EncodeToString(b[:]))
}

// NewTraceID generates a trace ID with the default generator
func NewTraceID() TraceID {
	return Default().TraceID()
}

// NewSpanID generates a span ID with the default generator
func NewSpanID() SpanID {
	return Default().SpanID()
}

// ============================================================================
// Validation
// ============================================================================

// IsValidTraceID reports whether s is a non-zero 16 or 32 character hex ID
func IsValidTraceID(s string) bool {
	if len(s) != TraceIDLength && len(s) != ShortTraceIDLength {
		return false
	}
	return isNonZeroHex(s)
}

// IsValidSpanID reports whether s is a non-zero 16 character hex ID
func IsValidSpanID(s string) bool {
	return len(s) == SpanIDLength && isNonZeroHex(s)
}

func isNonZeroHex(s string) bool {
	nonZero := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '0':
		case c >= '1' && c <= '9', c >= 'a' && c <= 'f':
			nonZero = true
		default:
			return false
		}
	}
	return nonZero
}

// Timestamp extracts the creation time encoded in a generated trace ID
func Timestamp(traceID TraceID) (time.Time, error) {
	raw, err := hex.DecodeString(string(traceID))
	if err != nil {
		return time.Time{}, err
	}
	var u ulid.ULID
	if err := u.UnmarshalBinary(raw); err != nil {
		return time.Time{}, err
	}
	return ulid.Time(u.Time()), nil
}
