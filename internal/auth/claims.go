package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 60 * time.Minute

// Claims are the JWT claims issued to an authenticated caller.
type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Identity returns the caller the token was issued to.
func (c *Claims) Identity() Identity {
	return Identity{Username: c.Subject, Role: c.Role}
}

// GenerateAccessToken signs an HS256 token for id valid for ttl. A
// non-positive ttl means one hour.
func GenerateAccessToken(id Identity, secret string, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	if id.IsAnonymous() {
		return "", time.Time{}, ErrUnauthenticated
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	now := time.Now()
	expiresAt = now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			Issuer:    "fluxhaus",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Role: id.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken validates the signature and expiry of a token and returns its
// claims. Tokens with a role that cannot be configured are rejected.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if _, ok := ParseRole(string(claims.Role)); !ok {
		return nil, fmt.Errorf("%w: role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}
