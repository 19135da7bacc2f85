package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	jwtSecret           = []byte("change-me-in-production")
	jwtExpirationHours  = 24
	jwtRememberMeFactor = 30
)

// Claims deliberately carry identity only. Role membership is loaded fresh
// from the database on every request so a role change takes effect immediately.
type Claims struct {
	UserID   uuid.UUID `json:"userID"`
	Phone    string    `json:"phone"`
	Remember bool      `json:"remember,omitempty"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string, expirationHours int) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if expirationHours > 0 {
		jwtExpirationHours = expirationHours
	}
}

// GenerateToken issues a signed session token. With remember set, the lifetime
// is extended so the session outlives the browser session.
func GenerateToken(userID uuid.UUID, phone string, remember bool) (string, error) {
	lifetime := time.Duration(jwtExpirationHours) * time.Hour
	if remember {
		lifetime *= time.Duration(jwtRememberMeFactor)
	}

	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Phone:    phone,
		Remember: remember,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
