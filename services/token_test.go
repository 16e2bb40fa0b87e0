package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"parley/chat-service/models"
)

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		Email:    "alice@example.com",
		Username: "alice",
	}
}

func TestTokenService_RoundTrip(t *testing.T) {
	req := require.New(t)
	ts := NewTokenService("test-secret", time.Hour)
	user := testUser()

	// When a token is issued and verified
	token, err := ts.GenerateToken(user)
	req.NoError(err)
	req.NotEmpty(token)

	claims, err := ts.VerifyToken(token)
	req.NoError(err)

	// Then the identity survives the round trip
	req.Equal(user.ID.String(), claims.UserID)
	req.Equal(user.Email, claims.Email)
	req.Equal(user.Username, claims.Username)
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	token, err := issuer.GenerateToken(testUser())
	req.NoError(err)

	_, err = verifier.VerifyToken(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenService_RejectsExpired(t *testing.T) {
	req := require.New(t)
	ts := NewTokenService("test-secret", -time.Minute)

	token, err := ts.GenerateToken(testUser())
	req.NoError(err)

	_, err = ts.VerifyToken(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenService_RejectsGarbageAndEmpty(t *testing.T) {
	req := require.New(t)
	ts := NewTokenService("test-secret", time.Hour)

	_, err := ts.VerifyToken("")
	req.ErrorIs(err, ErrInvalidToken)

	_, err = ts.VerifyToken("not.a.token")
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenService_RejectsUnsignedAlgorithm(t *testing.T) {
	req := require.New(t)
	ts := NewTokenService("test-secret", time.Hour)

	// A token downgraded to alg=none must never verify
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":       uuid.NewString(),
		"email":    "mallory@example.com",
		"username": "mallory",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	req.NoError(err)

	_, err = ts.VerifyToken(token)
	req.ErrorIs(err, ErrInvalidToken)
}

func TestTokenService_RejectsTokenWithoutID(t *testing.T) {
	req := require.New(t)
	ts := NewTokenService("test-secret", time.Hour)

	anonymous := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "nobody@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	token, err := anonymous.SignedString([]byte("test-secret"))
	req.NoError(err)

	_, err = ts.VerifyToken(token)
	req.ErrorIs(err, ErrInvalidToken)
}
