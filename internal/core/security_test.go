package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_SaltedOutputDiffers(t *testing.T) {
	h1, err := HashPassword("Secret1!")
	require.NoError(t, err)

	h2, err := HashPassword("Secret1!")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "two hashes of the same password must differ")
	assert.True(t, strings.HasPrefix(h1, "$argon2id$"))
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Secret1!")
	require.NoError(t, err)

	assert.True(t, VerifyPassword("Secret1!", hash))
	assert.False(t, VerifyPassword("wrong-password", hash))
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	assert.False(t, VerifyPassword("Secret1!", "not-a-phc-string"))
	assert.False(t, VerifyPassword("Secret1!", "$argon2id$v=19$broken"))
	assert.False(t, VerifyPassword("Secret1!", ""))
}

func TestVerifyPasswordTimingSafe(t *testing.T) {
	hash, err := HashPassword("Secret1!")
	require.NoError(t, err)

	assert.True(t, VerifyPasswordTimingSafe("Secret1!", &hash))
	assert.False(t, VerifyPasswordTimingSafe("wrong", &hash))

	// No stored hash: always false, even for the dummy's plaintext.
	assert.False(t, VerifyPasswordTimingSafe("Secret1!", nil))
	empty := ""
	assert.False(t, VerifyPasswordTimingSafe("Secret1!", &empty))
}

func TestGenerateRefreshSecret(t *testing.T) {
	s1, err := GenerateRefreshSecret()
	require.NoError(t, err)

	s2, err := GenerateRefreshSecret()
	require.NoError(t, err)

	assert.NotEqual(t, s1, s2)
	// 32 bytes base64url without padding is 43 characters.
	assert.Len(t, s1, 43)
}

func TestHashToken(t *testing.T) {
	hash := HashToken("some-opaque-secret")

	assert.Len(t, hash, 64, "sha256 hex digest")
	assert.Equal(t, hash, HashToken("some-opaque-secret"))
	assert.NotEqual(t, hash, HashToken("other-secret"))

	assert.True(t, CompareTokenHash("some-opaque-secret", hash))
	assert.False(t, CompareTokenHash("other-secret", hash))
}
