package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken(t *testing.T) {
	m := NewJWTManager("test-secret", "barrel-backend")

	token, err := m.GenerateToken("u-1", "supervisor", time.Hour)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "supervisor", claims.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	m := NewJWTManager("test-secret", "barrel-backend")

	expired, err := m.GenerateToken("u-1", "lab", -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewJWTManager("other-secret", "barrel-backend").GenerateToken("u-1", "lab", time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewJWTManager("test-secret", "someone-else").GenerateToken("u-1", "lab", time.Hour)
	require.NoError(t, err)

	noRole, err := m.GenerateToken("u-1", "", time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u-1", Role: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"no role":      noRole,
		"alg none":     none,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.ValidateToken(token)
			assert.Error(t, err)
		})
	}
}
