package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
)

// DefaultTokenExpiry applies when system.yaml carries no positive
// token_expiry_minutes.
const DefaultTokenExpiry = 90 * time.Minute

var (
	ErrTokenExpired = apperr.New(apperr.ErrUnauthenticated, "Token expired")
	ErrTokenInvalid = apperr.New(apperr.ErrUnauthenticated, "Invalid token")
)

// SettingsProvider returns the current instance settings. The issuer reads
// the secret and expiry from it on every call so a rotated secret takes
// effect immediately.
type SettingsProvider interface {
	Snapshot() models.SystemSettings
}

// Claims is the JWT payload: sub, role, exp and iat.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 session tokens.
type TokenIssuer struct {
	settings SettingsProvider
	now      func() time.Time
}

func NewTokenIssuer(settings SettingsProvider) *TokenIssuer {
	return &TokenIssuer{settings: settings, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	i.now = now
	return i
}

func (i *TokenIssuer) secret() ([]byte, error) {
	key := i.settings.Snapshot().Security.SecretKey
	if key == "" {
		return nil, errors.New("secret key is not configured")
	}
	return []byte(key), nil
}

// Issue signs a token for subject. A zero ttl uses the configured expiry.
func (i *TokenIssuer) Issue(subject string, role models.Role, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is required")
	}
	key, err := i.secret()
	if err != nil {
		return "", err
	}
	if ttl == 0 {
		ttl = i.defaultTTL()
	}

	now := i.now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *TokenIssuer) defaultTTL() time.Duration {
	minutes := i.settings.Snapshot().Security.TokenExpiryMinutes
	if minutes <= 0 {
		return DefaultTokenExpiry
	}
	return time.Duration(minutes) * time.Minute
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Errors are ErrTokenExpired or ErrTokenInvalid.
func (i *TokenIssuer) Verify(token string) (*Claims, error) {
	key, err := i.secret()
	if err != nil {
		return nil, ErrTokenInvalid
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, ErrTokenInvalid
	case !parsed.Valid || claims.Subject == "":
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
