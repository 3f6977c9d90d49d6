package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var errCredentialInvalid = errors.New("session credential invalid")

// codec signs and parses the outward session credential.
type codec struct {
	secret []byte
}

func (c codec) encode(sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c codec) decode(credential string) (string, error) {
	token, err := jwt.ParseWithClaims(credential, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errCredentialInvalid
			}
			return c.secret, nil
		})
	if err != nil || !token.Valid {
		return "", errCredentialInvalid
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", errCredentialInvalid
	}
	return claims.Subject, nil
}
