package security

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

func TestHashAndVerifyPassword(t *testing.T) {
	h, err := HashPassword("secret")
	require.NoError(t, err)

	parts := strings.Split(h, "$")
	require.Len(t, parts, 4)
	assert.Equal(t, "pbkdf2", parts[0])
	assert.Equal(t, "390000", parts[1])
	salt, err := base64.StdEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Len(t, salt, 16)

	assert.True(t, VerifyPassword("secret", h))
	assert.False(t, VerifyPassword("wrong", h))
}

func TestHashPassword_SaltsDiffer(t *testing.T) {
	p := PBKDF2Params{Iterations: 1000, SaltLen: 16, KeyLen: 32}
	a, err := HashPasswordWith("same", p)
	require.NoError(t, err)
	b, err := HashPasswordWith("same", p)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, VerifyPassword("same", a))
	assert.True(t, VerifyPassword("same", b))
}

func TestVerifyPassword_KnownEncoding(t *testing.T) {
	salt := []byte("0123456789abcdef")
	dk := pbkdf2.Key([]byte("hunter2"), salt, 10, 32, sha256.New)
	enc := "pbkdf2$10$" + base64.StdEncoding.EncodeToString(salt) + "$" + base64.StdEncoding.EncodeToString(dk)

	assert.True(t, VerifyPassword("hunter2", enc))
	assert.False(t, VerifyPassword("hunter3", enc))
}

func TestVerifyPassword_Malformed(t *testing.T) {
	cases := []string{
		"",
		"garbage",
		"pbkdf2$abc$c2FsdA==$a2V5",
		"pbkdf2$0$c2FsdA==$a2V5",
		"pbkdf2$-5$c2FsdA==$a2V5",
		"pbkdf2$10$!!!$a2V5",
		"pbkdf2$10$c2FsdA==$!!!",
		"pbkdf2$10$c2FsdA==$",
		"bcrypt$10$c2FsdA==$a2V5",
		"pbkdf2$10$c2FsdA==$a2V5$extra",
	}
	for _, enc := range cases {
		assert.False(t, VerifyPassword("anything", enc), "encoding %q", enc)
	}
}

func TestHashPasswordWith_BadParams(t *testing.T) {
	_, err := HashPasswordWith("x", PBKDF2Params{})
	assert.Error(t, err)
}
