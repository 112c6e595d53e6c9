// Package auth issues and verifies the signed access tokens that identify
// callers, and hashes the passwords they log in with.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used when neither the config nor the caller sets one.
const DefaultTokenTTL = 24 * time.Hour

// Claims carries the username in the standard "sub" claim.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 tokens with one secret that is fixed
// for the lifetime of the process.
type TokenService struct {
	secret     []byte
	defaultTTL time.Duration
	now        func() time.Time
}

func NewTokenService(secret []byte, defaultTTL time.Duration) *TokenService {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTokenTTL
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenService{secret: key, defaultTTL: defaultTTL, now: time.Now}
}

// NewRandomSecret returns a fresh 256-bit signing secret. Tokens signed with
// it stop verifying once the process exits.
func NewRandomSecret() []byte {
	return common.GenerateRandByteArray(32)
}

// Issue mints a token for subject that expires ttl from now. A non-positive
// ttl falls back to the service default.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty token subject")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	issued := s.now()
	return GenerateToken(subject, s.secret, issued, issued.Add(ttl))
}

// Verify returns the subject of a valid token. Bad signatures, unexpected
// algorithms, malformed input and expired tokens all yield
// common.ErrInvalidToken.
func (s *TokenService) Verify(token string) (string, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}

// GenerateToken signs an HS256 token for subject valid until expires.
func GenerateToken(subject string, secret []byte, issued, expires time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	return token.SignedString(secret)
}
