// Package auth verifies the bearer tokens issued by the WeDesignz account
// service. Issuing tokens for real users happens elsewhere; SignJWT exists for
// dev tooling and tests.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity carried by a token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrMissingSecret = errors.New("jwt secret not configured")
	ErrInvalidToken  = errors.New("invalid token")
	// ErrTokenExpired wraps ErrInvalidToken.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

const (
	defaultTTL    = 24 * time.Hour
	defaultLeeway = 30 * time.Second
	devSecret     = "dev-secret"
)

// Keys signs and verifies HS256 tokens. Issuer and Audience are checked only
// when set.
type Keys struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// KeysFromEnv reads JWT_SECRET, JWT_ISSUER and JWT_AUDIENCE. Outside
// production a missing secret falls back to a fixed dev value.
func KeysFromEnv() (Keys, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("ENV"))) {
		case "production", "prod":
			return Keys{}, fmt.Errorf("%w: JWT_SECRET required in production", ErrMissingSecret)
		}
		secret = devSecret
	}
	return Keys{
		Secret:   []byte(secret),
		Issuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		Audience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
	}, nil
}

// Sign fills in iat, exp and the configured issuer and audience when absent.
func (k Keys) Sign(claims Claims) (string, error) {
	if len(k.Secret) == 0 {
		return "", ErrMissingSecret
	}
	if claims.Subject == "" {
		return "", errors.New("sub is required")
	}
	ttl := k.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	if claims.Issuer == "" {
		claims.Issuer = k.Issuer
	}
	if len(claims.Audience) == 0 && k.Audience != "" {
		claims.Audience = jwt.ClaimStrings{k.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.Secret)
}

// Verify parses token and returns its claims. Every failure is reported as
// ErrInvalidToken, with ErrTokenExpired for stale tokens.
func (k Keys) Verify(token string) (Claims, error) {
	if len(k.Secret) == 0 {
		return Claims{}, ErrMissingSecret
	}
	leeway := k.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
	}
	if k.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(k.Issuer))
	}
	if k.Audience != "" {
		opts = append(opts, jwt.WithAudience(k.Audience))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return k.Secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil, !parsed.Valid, claims.Subject == "":
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// SignJWT signs claims with the keys from the environment.
func SignJWT(claims Claims) (string, error) {
	keys, err := KeysFromEnv()
	if err != nil {
		return "", err
	}
	return keys.Sign(claims)
}

// VerifyJWT verifies token with the keys from the environment.
func VerifyJWT(token string) (Claims, error) {
	keys, err := KeysFromEnv()
	if err != nil {
		return Claims{}, err
	}
	return keys.Verify(token)
}
