// ABOUTME: Queue entry id generation.
// ABOUTME: Monotonic ULIDs, falling back to a timestamp plus random suffix if ULID generation fails.
package queue

import (
	"crypto/rand"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type idGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newIDGenerator(entropy io.Reader) *idGenerator {
	if entropy == nil {
		entropy = ulid.Monotonic(rand.Reader, 0)
	}
	return &idGenerator{entropy: entropy}
}

func (g *idGenerator) next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	if err != nil {
		return fallbackID(now)
	}
	return id.String()
}

// fallbackID is collision resistant without the ULID entropy source.
func fallbackID(now time.Time) string {
	return fmt.Sprintf("%019d-%016x", now.UnixNano(), mrand.Uint64())
}
