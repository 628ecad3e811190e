package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuthInfo(t *testing.T) {
	seen := make(map[string]bool)
	for range 20 {
		got, err := NewAuthInfo()
		require.NoError(t, err)
		assert.Len(t, got, authInfoLength)
		for _, r := range got {
			assert.True(t, strings.ContainsRune(authInfoAlphabet, r),
				"unexpected character %q", r)
		}
		assert.False(t, seen[got], "secrets must not repeat")
		seen[got] = true
	}
}
