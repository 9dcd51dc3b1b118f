package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// TokenProvider defines the contract for minting and validating admin
// session tokens.
type TokenProvider interface {
	Generate(userID uuid.UUID, username, role string) (string, error)
	Validate(tokenString string) (*Claims, error)
}

// Claims defines the custom JWT claims minted for admin sessions.
type Claims struct {
	UserID   uuid.UUID `json:"sub"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	jwt.RegisteredClaims
}

// JWTProvider implements TokenProvider using HMAC-SHA256 (HS256).
type JWTProvider struct {
	secret        []byte
	tokenDuration time.Duration
}

// NewJWTProvider creates a new token provider. secret must be at least
// 32 bytes (enforced by the configuration loader, C20); duration
// defaults to 2 hours when zero.
func NewJWTProvider(secret string, duration time.Duration) *JWTProvider {
	if duration <= 0 {
		duration = 2 * time.Hour
	}
	return &JWTProvider{
		secret:        []byte(secret),
		tokenDuration: duration,
	}
}

// Generate creates a signed session token for an authenticated admin.
func (p *JWTProvider) Generate(userID uuid.UUID, username, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies the JWT, rejecting expired or
// signature-invalid tokens.
func (p *JWTProvider) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
