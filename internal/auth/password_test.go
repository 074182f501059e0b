package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=2,p=2$"))
	assert.True(t, VerifyPassword("correct horse battery staple", hash))
	assert.False(t, VerifyPassword("wrong password", hash))
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	h1, err := HashPassword("same password")
	require.NoError(t, err)
	h2, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "each hash must use a fresh salt")
	assert.True(t, VerifyPassword("same password", h1))
	assert.True(t, VerifyPassword("same password", h2))
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "not a PHC string", encoded: "plaintext"},
		{name: "wrong algorithm", encoded: "$bcrypt$v=19$m=65536,t=2,p=2$c2FsdA$aGFzaA"},
		{name: "wrong version", encoded: "$argon2id$v=18$m=65536,t=2,p=2$c2FsdA$aGFzaA"},
		{name: "bad parameters", encoded: "$argon2id$v=19$nope$c2FsdA$aGFzaA"},
		{name: "bad salt encoding", encoded: "$argon2id$v=19$m=65536,t=2,p=2$!!!$aGFzaA"},
		{name: "bad hash encoding", encoded: "$argon2id$v=19$m=65536,t=2,p=2$c2FsdA$!!!"},
		{name: "missing fields", encoded: "$argon2id$v=19$m=65536,t=2,p=2$c2FsdA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, VerifyPassword("any password", tt.encoded))
		})
	}
}
