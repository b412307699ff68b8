package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeShape(t *testing.T) {
	for _, n := range []int{1, 6, 12} {
		code, err := GenerateCode(n)
		require.NoError(t, err)
		assert.Len(t, code, n)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, r), "unexpected character %q", r)
		}
	}
}

func TestGenerateCodeDefaultLength(t *testing.T) {
	code, err := GenerateCode(0)
	require.NoError(t, err)
	assert.Len(t, code, DefaultCodeLength)
}

func TestGenerateCodeVaries(t *testing.T) {
	// Twenty draws from a 36^6 space; seeing only one distinct value
	// would mean the generator is broken, not unlucky.
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code, err := GenerateCode(6)
		require.NoError(t, err)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
