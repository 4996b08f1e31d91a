package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and validates the short-lived tokens that sign
// transcript view links.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// TranscriptClaims is the JWT payload of a transcript view link.
type TranscriptClaims struct {
	// UserID is the transcript owner the link grants access to.
	UserID string `json:"uid"`
	// RequestedBy is the staff member the link was issued for.
	RequestedBy string `json:"req"`
	jwt.RegisteredClaims
}

// GenerateToken signs a view token for one user's transcript log.
func (tm *TokenManager) GenerateToken(userID, requestedBy string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tm.ttl)
	claims := &TranscriptClaims{
		UserID:      userID,
		RequestedBy: requestedBy,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates a view token and returns its claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*TranscriptClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &TranscriptClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*TranscriptClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
