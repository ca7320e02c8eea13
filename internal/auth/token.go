package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yukikurage/task-tracker-api/internal/models"
)

// ErrInvalidToken is the single error surfaced for any verification failure:
// malformed token, bad signature, or expiry. Callers must not learn which.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the identity and role a token was issued for.
type Claims struct {
	UserID uint64      `json:"-"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies signed bearer credentials. The signing
// secret and lifetime are fixed at construction and never mutated.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	return &TokenService{
		secret:   []byte(secret),
		lifetime: lifetime,
	}
}

// Issue produces a signed token binding userID and role, valid for the
// configured lifetime.
func (s *TokenService) Issue(userID uint64, role models.Role) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify decodes and validates a token, returning the bound claims. Any
// failure collapses to ErrInvalidToken.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims.UserID = userID

	if claims.Role != models.RoleUser && claims.Role != models.RoleAdmin {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
