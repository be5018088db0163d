// Package auth mints and validates the HS256 JWTs that carry a user's login.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/artivault/internal/common"
)

// Claims embeds the registered claims and the caller's login.
type Claims struct {
	jwt.RegisteredClaims
	Login string `json:"login"`
}

// GenerateToken signs a token for login valid for validityDuration.
func GenerateToken(login string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
			Subject:   login,
		},
		Login: login,
	})

	return token.SignedString(secretKey)
}

// GetLoginFromToken verifies tokenString and returns the login it carries.
// Expired tokens yield common.ErrTokenExpired, everything else common.ErrInvalidToken.
func GetLoginFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Login == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Login, nil
}
