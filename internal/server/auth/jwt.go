// Package auth issues and parses the signed access tokens that carry the
// authenticated principal between login and vault calls.
package auth

import (
	"time"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims extends the registered claims with the principal: the case-folded
// account email that keys all owned records.
type Claims struct {
	jwt.RegisteredClaims
	Owner string `json:"owner"`
}

func GenerateToken(owner string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		Owner: owner,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func GetOwnerFromToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.Owner == "" {
		return "", common.ErrorInvalidToken
	}

	return claims.Owner, nil
}
