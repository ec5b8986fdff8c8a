package utils

import (
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "secret", time.Minute)
	assert.Equal(t, err, nil)

	m, err := CheckAndExtractTokenMetadata(token, "secret")
	assert.Equal(t, err, nil)
	assert.Equal(t, m.Id, uint(42))
	assert.Equal(t, m.Exp > time.Now().Unix(), true)
}

func TestTokenRejected(t *testing.T) {
	token, err := GenerateToken(42, "secret", time.Minute)
	assert.Equal(t, err, nil)

	_, err = CheckAndExtractTokenMetadata(token, "other")
	assert.NotEqual(t, err, nil)

	expired, err := GenerateToken(42, "secret", -time.Minute)
	assert.Equal(t, err, nil)
	_, err = CheckAndExtractTokenMetadata(expired, "secret")
	assert.NotEqual(t, err, nil)

	_, err = CheckAndExtractTokenMetadata("garbage", "secret")
	assert.NotEqual(t, err, nil)
}

func TestTokenWrongAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "1"}).SignedString([]byte("secret"))
	assert.Equal(t, err, nil)

	_, err = CheckAndExtractTokenMetadata(token, "secret")
	assert.NotEqual(t, err, nil)
}

func TestClaimsUser(t *testing.T) {
	id, err := ClaimsUser(jwt.MapClaims{"id": "7"})
	assert.Equal(t, err, nil)
	assert.Equal(t, id, uint(7))

	_, err = ClaimsUser(jwt.MapClaims{"id": 7.0})
	assert.Equal(t, err, ErrInvalidToken)

	_, err = ClaimsUser(jwt.MapClaims{"id": "0"})
	assert.Equal(t, err, ErrInvalidToken)
}
