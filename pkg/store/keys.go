package store

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// KeyGenerator mints child ids locally. Ids are ULIDs: lexically sortable by
// creation time and unique without a round trip to Redis.
type KeyGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewKeyGenerator returns a generator with monotonic entropy, so ids minted
// within the same millisecond still sort in mint order.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns a fresh id.
func (g *KeyGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}
