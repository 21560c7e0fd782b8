package engine

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// operationIDs issues ULIDs stamped with simulated time, so operation IDs
// sort in posting order. A fixed seed makes the sequence reproducible.
type operationIDs struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newOperationIDs(seed int64) *operationIDs {
	if seed == 0 {
		_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
	}
	return &operationIDs{entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

func (g *operationIDs) next(at time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), g.entropy).String()
}
