package service

import (
	"testing"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth(secret string, expiry time.Duration) *AuthService {
	return NewAuthService(&config.Config{JWTSecret: secret, JWTExpiry: expiry})
}

func TestAuthService_RoundTrip(t *testing.T) {
	auth := newAuth("test-secret", time.Hour)
	id := uuid.New()

	token, err := auth.IssueToken(id, RoleLecturer, "Dr. Achieng")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, RoleLecturer, claims.Role)
	assert.Equal(t, "Dr. Achieng", claims.Name)
	assert.True(t, claims.Role.Staff())
}

func TestAuthService_Rejects(t *testing.T) {
	auth := newAuth("test-secret", time.Hour)
	id := uuid.New()

	t.Run("wrong secret", func(t *testing.T) {
		token, err := newAuth("other-secret", time.Hour).IssueToken(id, RoleStudent, "")
		require.NoError(t, err)
		_, err = auth.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := newAuth("test-secret", -time.Minute).IssueToken(id, RoleStudent, "")
		require.NoError(t, err)
		_, err = auth.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("unsigned", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleAdmin, UserID: id})
		s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = auth.ValidateToken(s)
		assert.Error(t, err)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := auth.IssueToken(id, Role("guest"), "")
		assert.Error(t, err)
	})
}
