// Package partition derives the stream partition key for an envelope.
//
// A key is a prefix of the lowercase hex digest of sender + ":" + id. The
// prefix is taken verbatim, never reduced modulo anything, so the default
// 16-character key spans 16^16 values. The same (sender, id) pair always maps
// to the same key, which keeps retries of one envelope on one shard while
// different envelopes from one sender spread across shards.
package partition

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

const (
	AlgorithmSHA256 = "sha256"
	AlgorithmXXH3   = "xxh3"

	// DefaultKeyLength is the number of hex characters kept from the digest.
	DefaultKeyLength = 16

	separator = ":"
)

var (
	ErrUnknownAlgorithm = errors.New("partition: unknown hash algorithm")
	ErrInvalidKeyLength = errors.New("partition: invalid key length")
)

// KeyDeriver computes a partition key from the sender and envelope id.
// Implementations must be pure.
type KeyDeriver interface {
	Derive(sender, id string) string
}

// DeriverFunc adapts a plain function to KeyDeriver.
type DeriverFunc func(sender, id string) string

func (f DeriverFunc) Derive(sender, id string) string { return f(sender, id) }

type hexDeriver struct {
	digest func(input string) []byte
	length int
}

func (d hexDeriver) Derive(sender, id string) string {
	sum := hex.EncodeToString(d.digest(sender + separator + id))
	return sum[:d.length]
}

// New returns the deriver for algorithm truncated to length hex characters.
// An empty algorithm selects sha256 and a zero length selects DefaultKeyLength.
func New(algorithm string, length int) (KeyDeriver, error) {
	algorithm = strings.ToLower(strings.TrimSpace(algorithm))
	if algorithm == "" {
		algorithm = AlgorithmSHA256
	}
	if length == 0 {
		length = DefaultKeyLength
	}

	digest, ok := digests[algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	if maxLen := MaxKeyLength(algorithm); length < 1 || length > maxLen {
		return nil, fmt.Errorf("%w: %d (must be between 1 and %d for %s)", ErrInvalidKeyLength, length, maxLen, algorithm)
	}

	return hexDeriver{digest: digest, length: length}, nil
}

// MaxKeyLength reports the full hex digest length of algorithm, or 0 when the
// algorithm is unknown.
func MaxKeyLength(algorithm string) int {
	switch algorithm {
	case AlgorithmSHA256:
		return sha256.Size * 2
	case AlgorithmXXH3:
		return 32
	default:
		return 0
	}
}

// Default is the sha256 deriver with DefaultKeyLength.
var Default KeyDeriver = hexDeriver{digest: sha256Digest, length: DefaultKeyLength}

// Derive computes a key with the Default deriver.
func Derive(sender, id string) string {
	return Default.Derive(sender, id)
}

var digests = map[string]func(string) []byte{
	AlgorithmSHA256: sha256Digest,
	AlgorithmXXH3:   xxh3Digest,
}

func sha256Digest(input string) []byte {
	sum := sha256.Sum256([]byte(input))
	return sum[:]
}

func xxh3Digest(input string) []byte {
	sum := xxh3.HashString128(input).Bytes()
	return sum[:]
}
