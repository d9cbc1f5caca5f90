package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	require.NotEqual(t, "correct horse", hash)

	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong horse"))
	assert.False(t, VerifyPassword(hash, ""))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("", "anything"))
	assert.False(t, VerifyPassword("not-a-bcrypt-digest", "anything"))
}

func TestHashPasswordDistinctSalts(t *testing.T) {
	a, err := HashPassword("same input", 4)
	require.NoError(t, err)
	b, err := HashPassword("same input", 4)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
