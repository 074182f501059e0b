package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManagerGenerated("causerie-test")
	require.NoError(t, err)
	return m
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := newTestJWTManager(t)

	token, err := m.GenerateAccessToken("user-123", "alice", "#FF5733")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "#FF5733", claims.Color)
	assert.Equal(t, "causerie-test", claims.Issuer)
	assert.Equal(t, "user-123", claims.Subject)
	assert.NotEmpty(t, claims.ID, "tokens carry a unique jti")
}

func TestJWTManager_RejectsForeignKey(t *testing.T) {
	m1 := newTestJWTManager(t)
	m2 := newTestJWTManager(t)

	token, err := m1.GenerateAccessToken("user-123", "alice", "#FF5733")
	require.NoError(t, err)

	_, err = m2.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTManager_RejectsWrongIssuer(t *testing.T) {
	issuer, err := NewJWTManagerGenerated("someone-else")
	require.NoError(t, err)
	verifier := &JWTManager{
		privateKey: issuer.privateKey,
		publicKey:  issuer.publicKey,
		issuer:     "causerie-test",
	}

	token, err := issuer.GenerateAccessToken("user-123", "alice", "#FF5733")
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	m := newTestJWTManager(t)

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "causerie-test",
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		},
		UserID:   "user-123",
		Username: "alice",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(signed)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTManager_RejectsHMACToken(t *testing.T) {
	m := newTestJWTManager(t)

	// A token signed with HS256 must be rejected even if an attacker used
	// bytes of the public key as the HMAC secret.
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "causerie-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-123",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(signed)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	m := newTestJWTManager(t)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := m.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", token)
	}
}
