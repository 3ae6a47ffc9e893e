package hasher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := New(bcrypt.MinCost)

	hash, err := h.Hash("password123")
	require.NoError(t, err)

	assert.NotContains(t, string(hash), "password123")
	assert.True(t, h.Verify("password123", hash))
	assert.False(t, h.Verify("password124", hash))
}

func TestHash_Salted(t *testing.T) {
	h := New(bcrypt.MinCost)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHash_Cost(t *testing.T) {
	hash, err := New(bcrypt.MinCost + 1).Hash("pw")
	require.NoError(t, err)

	cost, err := bcrypt.Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)

	assert.Equal(t, bcrypt.DefaultCost, New(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, New(100).cost)
}

func TestVerify_MalformedHashFailsClosed(t *testing.T) {
	h := New(bcrypt.MinCost)

	for _, digest := range [][]byte{nil, []byte(""), []byte("not-a-bcrypt-hash"), []byte("$2a$10$short")} {
		assert.False(t, h.Verify("password123", digest), "digest %q", digest)
	}
}

func TestHash_TooLong(t *testing.T) {
	_, err := New(bcrypt.MinCost).Hash(strings.Repeat("a", 73))
	assert.Error(t, err)
}
