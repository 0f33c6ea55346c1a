package ids

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// Generator produces a fresh identifier on every call.
type Generator func() string

// CreateULID returns a time-sortable ULID encoded as a 26-character string.
func CreateULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// CreateUUID returns a random (version 4) UUID in its canonical 36-character form.
func CreateUUID() string {
	return uuid.NewString()
}

// ForFormat maps a configured id format to its generator. Unknown formats
// report ok=false.
func ForFormat(format string) (Generator, bool) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "uuid":
		return CreateUUID, true
	case "ulid":
		return CreateULID, true
	default:
		return nil, false
	}
}
