package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.True(t, VerifyPassword(hash, "correct horse battery staple"))
	require.False(t, VerifyPassword(hash, "wrong password"))
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	first, err := HashPassword("same-password")
	require.NoError(t, err)
	second, err := HashPassword("same-password")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.True(t, VerifyPassword(first, "same-password"))
	require.True(t, VerifyPassword(second, "same-password"))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)
}

func TestHashPasswordWithParams(t *testing.T) {
	params := Argon2Parameters{Time: 1, Memory: 32, Threads: 2, KeyLength: 16}
	hash, err := HashPasswordWithParams("pw", params)
	require.NoError(t, err)
	require.Contains(t, hash, "m=32,t=1,p=2")
	require.True(t, VerifyPassword(hash, "pw"))
}

func TestArgon2ParametersValidate(t *testing.T) {
	require.NoError(t, DefaultArgon2Params().Validate())
	require.Error(t, Argon2Parameters{Time: 0, Memory: 64, Threads: 1, KeyLength: 32}.Validate())
	require.Error(t, Argon2Parameters{Time: 1, Memory: 64, Threads: 0, KeyLength: 32}.Validate())
	require.Error(t, Argon2Parameters{Time: 1, Memory: 4, Threads: 4, KeyLength: 32}.Validate())
	require.Error(t, Argon2Parameters{Time: 1, Memory: 64, Threads: 1, KeyLength: 0}.Validate())
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	require.False(t, VerifyPassword("not-a-hash", "pw"))
	require.False(t, VerifyPassword("$argon2i$v=19$m=32,t=1,p=2$c2FsdA$aGFzaA", "pw"))
	require.False(t, VerifyPassword("", "pw"))
}

func TestGenerateToken(t *testing.T) {
	token, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	other, err := GenerateToken(32)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}
