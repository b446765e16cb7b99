// Package security holds the credential codec and the session token
// issuer used by the access gate.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2Scheme = "pbkdf2"

// PBKDF2Params controls key derivation for new hashes. Verification always
// uses the iteration count stored in the encoded string.
type PBKDF2Params struct {
	Iterations int
	SaltLen    int
	KeyLen     int
}

func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{
		Iterations: 390_000,
		SaltLen:    16,
		KeyLen:     sha256.Size,
	}
}

// HashPassword derives a PBKDF2-HMAC-SHA256 key with a fresh random salt.
// Format: pbkdf2$<iterations>$<salt_b64>$<key_b64>
func HashPassword(password string) (string, error) {
	return HashPasswordWith(password, DefaultPBKDF2Params())
}

func HashPasswordWith(password string, p PBKDF2Params) (string, error) {
	if p.Iterations <= 0 || p.SaltLen <= 0 || p.KeyLen <= 0 {
		return "", errors.New("invalid pbkdf2 parameters")
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}
	dk := pbkdf2.Key([]byte(password), salt, p.Iterations, p.KeyLen, sha256.New)
	enc := base64.StdEncoding
	return fmt.Sprintf("%s$%d$%s$%s",
		pbkdf2Scheme,
		p.Iterations,
		enc.EncodeToString(salt),
		enc.EncodeToString(dk),
	), nil
}

// VerifyPassword reports whether password matches encoded. A malformed or
// foreign encoding never matches.
func VerifyPassword(password, encoded string) bool {
	iterations, salt, want, err := parsePBKDF2(encoded)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(password), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func parsePBKDF2(s string) (int, []byte, []byte, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 4 {
		return 0, nil, nil, errors.New("invalid password hash format")
	}
	if parts[0] != pbkdf2Scheme {
		return 0, nil, nil, errors.New("unsupported password hash algorithm")
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return 0, nil, nil, errors.New("invalid pbkdf2 iterations")
	}
	enc := base64.StdEncoding
	salt, err := enc.DecodeString(parts[2])
	if err != nil {
		return 0, nil, nil, errors.New("invalid pbkdf2 salt")
	}
	key, err := enc.DecodeString(parts[3])
	if err != nil || len(key) == 0 {
		return 0, nil, nil, errors.New("invalid pbkdf2 key")
	}
	return iterations, salt, key, nil
}
