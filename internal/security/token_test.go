package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
)

type staticSettings struct {
	s models.SystemSettings
}

func (f *staticSettings) Snapshot() models.SystemSettings { return f.s }

func newSettings(secret string, minutes int) *staticSettings {
	return &staticSettings{s: models.SystemSettings{
		Security: models.SecuritySettings{SecretKey: secret, TokenExpiryMinutes: minutes},
	}}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	iss := NewTokenIssuer(newSettings("s3cret", 90))

	tok, err := iss.Issue("alice", models.RoleAdmin, 0)
	require.NoError(t, err)

	claims, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestIssue_DefaultExpiry(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name    string
		minutes int
		want    time.Duration
	}{
		{"configured", 15, 15 * time.Minute},
		{"unset falls back", 0, DefaultTokenExpiry},
		{"negative falls back", -3, DefaultTokenExpiry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss := NewTokenIssuer(newSettings("k", tt.minutes)).WithClock(clock)
			tok, err := iss.Issue("bob", models.RoleViewer, 0)
			require.NoError(t, err)

			claims, err := iss.Verify(tok)
			require.NoError(t, err)
			assert.True(t, now.Add(tt.want).Equal(claims.ExpiresAt.Time), "exp = %v", claims.ExpiresAt.Time)
		})
	}
}

func TestVerify_Expired(t *testing.T) {
	iss := NewTokenIssuer(newSettings("s3cret", 90))
	tok, err := iss.Issue("alice", models.RoleOwner, -time.Minute)
	require.NoError(t, err)

	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestVerify_ExpiresLater(t *testing.T) {
	now := time.Now()
	clock := now
	iss := NewTokenIssuer(newSettings("s3cret", 1)).WithClock(func() time.Time { return clock })
	tok, err := iss.Issue("alice", models.RoleOwner, 0)
	require.NoError(t, err)

	_, err = iss.Verify(tok)
	require.NoError(t, err)

	clock = now.Add(2 * time.Minute)
	_, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerify_Invalid(t *testing.T) {
	iss := NewTokenIssuer(newSettings("s3cret", 90))
	tok, err := iss.Issue("alice", models.RoleOwner, 0)
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	other := NewTokenIssuer(newSettings("different", 90))
	foreign, err := other.Issue("alice", models.RoleOwner, 0)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"tampered signature": tampered,
		"wrong secret":       foreign,
		"alg none":           none,
		"no subject":         noSubject,
		"no expiry":          noExpiry,
		"garbage":            "not.a.token",
		"empty":              "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := iss.Verify(tok)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestIssue_RequiresSecret(t *testing.T) {
	iss := NewTokenIssuer(newSettings("", 90))
	_, err := iss.Issue("alice", models.RoleOwner, 0)
	assert.Error(t, err)

	_, err = iss.Verify("x.y.z")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
