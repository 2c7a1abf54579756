package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ahmedmirza994/whatsapp-sub001/errors"
)

const issuer = "whatsapp-backend"

// Claims is the JWT payload. The subject claim carries the user's email,
// which the gate resolves through the user directory.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager signs and validates bearer tokens with HS256. The secret
// comes from configuration so every replica of the service validates the
// same tokens without shared session state.
type TokenManager struct {
	secret   []byte
	duration time.Duration
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration}
}

// Generate creates a signed token whose subject is the user's email.
func (m *TokenManager) Generate(email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses the token and returns its subject. Every parse,
// signature or expiry failure collapses into ErrMalformedToken: the
// caller never learns which check failed.
func (m *TokenManager) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", errors.ErrMalformedToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", errors.ErrMalformedToken
	}
	return claims.Subject, nil
}
