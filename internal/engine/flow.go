package engine

import (
	"sync"

	"github.com/google/uuid"
)

// FlowTokenGenerator produces flow tokens that correlate the log entries
// of one client request.
//
// Implementations must be safe for concurrent use: Submit callers and the
// worker goroutine may both reach Execute.
type FlowTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator produces time-sortable UUIDv7 tokens.
//
// The timestamp sits in the high bits, so tokens sort by creation time,
// which keeps flows readable when several are dumped together.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7, 36 characters.
// It panics if the system entropy source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined tokens in order, for tests and
// golden traces. It panics once the tokens run out, so a test that executes
// more requests than it planned for fails loudly.
//
// Thread-safety: FixedGenerator is safe for concurrent use; a mutex guards
// the index.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator over tokens.
//
// Example:
//
//	gen := NewFixedGenerator("flow-1", "flow-2")
//	gen.Generate() // "flow-1"
//	gen.Generate() // "flow-2"
//	gen.Generate() // panic
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
