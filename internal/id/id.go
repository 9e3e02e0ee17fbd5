// Package id generates transaction identifiers.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out monotonic ULIDs. Two ids minted in the same millisecond still
// sort in creation order, which gives history reads a stable tie-break.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator returns a Generator seeded from crypto/rand.
func NewGenerator() *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:     time.Now,
	}
}

// New returns a ULID string for the given instant.
func (g *Generator) New(at time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(at.UTC()), g.entropy)
	if err != nil {
		// only possible if the clock goes backwards past the monotonic window
		id = ulid.MustNew(ulid.Timestamp(at.UTC()), cryptoRand.Reader)
	}

	return id.String()
}

// Now returns a ULID for the current time.
func (g *Generator) Now() string {
	return g.New(g.now())
}

var defaultGenerator = NewGenerator()

// New returns a ULID string from the process-wide generator.
func New() string {
	return defaultGenerator.Now()
}
