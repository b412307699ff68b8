package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple", 4)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotContains(t, hash, "correct horse", "hash must not embed the plaintext")

	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
}

func TestHashPasswordCostFallback(t *testing.T) {
	// Non-positive cost falls back to the bcrypt default instead of
	// erroring out.
	hash, err := HashPassword("secret-enough", 0)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "secret-enough"))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	// A corrupt stored hash compares false, it never panics.
	assert.False(t, VerifyPassword("definitely-not-bcrypt", "anything"))
	assert.False(t, VerifyPassword("", "anything"))
}
