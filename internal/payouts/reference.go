package payouts

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// referenceGenerator issues sortable payout references. Monotonic entropy
// is not safe for concurrent use, hence the mutex.
type referenceGenerator struct {
	mu      sync.Mutex
	prefix  string
	entropy *ulid.MonotonicEntropy
}

func newReferenceGenerator(prefix string) *referenceGenerator {
	return &referenceGenerator{
		prefix:  prefix,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (g *referenceGenerator) next(at time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), g.entropy)
	if err != nil {
		return "", err
	}
	return g.prefix + id.String(), nil
}
