package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod is the only algorithm access tokens are issued or accepted with.
const SigningMethod = "HS512"

var ErrInvalidToken = errors.New("invalid token")

// TokenMetadata struct to describe metadata in JWT.
type TokenMetadata struct {
	Id  uint
	Exp int64
}

// GenerateToken signs an access token for user id that expires after ttl.
// Issuing tokens belongs to the auth service; this is used by tests and
// operator tooling.
func GenerateToken(id uint, key string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{}

	claims["id"] = strconv.FormatUint(uint64(id), 10)
	claims["exp"] = time.Now().Add(ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString([]byte(key))
}

// CheckAndExtractTokenMetadata verifies token against key and returns the
// user it was issued for.
func CheckAndExtractTokenMetadata(token string, key string) (*TokenMetadata, error) {
	t, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{SigningMethod}))
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return metadata(claims)
}

// ClaimsUser returns the user id carried by verified claims.
func ClaimsUser(claims jwt.MapClaims) (uint, error) {
	m, err := metadata(claims)
	if err != nil {
		return 0, err
	}
	return m.Id, nil
}

func metadata(claims jwt.MapClaims) (*TokenMetadata, error) {
	raw, ok := claims["id"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}

	m := &TokenMetadata{Id: uint(id)}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		m.Exp = exp.Unix()
	}
	return m, nil
}
