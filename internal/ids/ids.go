package ids

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Generator hands out identifiers for reports and nested report entries.
// Normalization and edit reconciliation take it as a dependency so both are
// deterministic under test.
type Generator interface {
	// NewID returns a fresh identifier carrying the given kind prefix,
	// e.g. "risk-1716212345-0f8fad5b".
	NewID(kind string) string
}

// Random is the production generator: time-prefixed random ids, unique
// across calls and never derived from record content.
type Random struct{}

func (Random) NewID(kind string) string {
	return fmt.Sprintf("%s-%d-%s", kind, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// Sequence is a deterministic generator for tests: kind-1, kind-2, ...
type Sequence struct {
	mu sync.Mutex
	n  int
}

func (s *Sequence) NewID(kind string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", kind, s.n)
}
