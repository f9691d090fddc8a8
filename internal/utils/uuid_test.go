package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var uuidV4Pattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestGenerateSecureUUID_MatchesV4Format(t *testing.T) {
	id, err := GenerateSecureUUID()
	require := assert.New(t)
	require.NoError(err)
	require.Regexp(uuidV4Pattern, id)
}

func TestGenerateSecureUUID_IsUnique(t *testing.T) {
	seen := make(map[string]bool, 100)
	for i := 0; i < 100; i++ {
		id, err := GenerateSecureUUID()
		assert.NoError(t, err)
		assert.False(t, seen[id], "duplicate UUID generated")
		seen[id] = true
	}
}
