package partition

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexKey = regexp.MustCompile(`^[0-9a-f]+$`)

func TestDeriveMatchesSHA256Prefix(t *testing.T) {
	sum := sha256.Sum256([]byte("alice:0b6f3c0e-1111-4a5b-9c1d-222233334444"))
	want := hex.EncodeToString(sum[:])[:16]

	assert.Equal(t, want, Derive("alice", "0b6f3c0e-1111-4a5b-9c1d-222233334444"))
}

func TestDeriveIsPure(t *testing.T) {
	for _, algorithm := range []string{AlgorithmSHA256, AlgorithmXXH3} {
		t.Run(algorithm, func(t *testing.T) {
			d, err := New(algorithm, 0)
			require.NoError(t, err)

			first := d.Derive("alice", "id-1")
			second := d.Derive("alice", "id-1")

			assert.Equal(t, first, second)
			assert.Len(t, first, DefaultKeyLength)
			assert.Regexp(t, hexKey, first)
		})
	}
}

func TestDeriveSpreadsDistinctIDs(t *testing.T) {
	for _, algorithm := range []string{AlgorithmSHA256, AlgorithmXXH3} {
		t.Run(algorithm, func(t *testing.T) {
			d, err := New(algorithm, DefaultKeyLength)
			require.NoError(t, err)

			seen := make(map[string]struct{})
			for i := 0; i < 1000; i++ {
				seen[d.Derive("alice", fmt.Sprintf("id-%d", i))] = struct{}{}
			}
			assert.Len(t, seen, 1000)
		})
	}
}

func TestDeriveOrderMatters(t *testing.T) {
	assert.NotEqual(t, Derive("a", "b"), Derive("b", "a"))
	assert.NotEqual(t, Derive("ab", "c"), Derive("a", "bc"))
}

func TestNewHonoursLength(t *testing.T) {
	d, err := New("SHA256", 64)
	require.NoError(t, err)
	assert.Len(t, d.Derive("alice", "id"), 64)

	d, err = New(AlgorithmXXH3, 32)
	require.NoError(t, err)
	assert.Len(t, d.Derive("alice", "id"), 32)

	short, err := New(AlgorithmSHA256, 4)
	require.NoError(t, err)
	long, err := New(AlgorithmSHA256, 16)
	require.NoError(t, err)
	assert.Equal(t, long.Derive("alice", "id")[:4], short.Derive("alice", "id"))
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	_, err := New("md5", 16)
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)

	_, err = New(AlgorithmSHA256, 65)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = New(AlgorithmXXH3, 33)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = New(AlgorithmSHA256, -1)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestDeriverFunc(t *testing.T) {
	var d KeyDeriver = DeriverFunc(func(sender, id string) string { return sender })
	assert.Equal(t, "alice", d.Derive("alice", "ignored"))
}

func TestMaxKeyLength(t *testing.T) {
	assert.Equal(t, 64, MaxKeyLength(AlgorithmSHA256))
	assert.Equal(t, 32, MaxKeyLength(AlgorithmXXH3))
	assert.Zero(t, MaxKeyLength("crc32"))
}
