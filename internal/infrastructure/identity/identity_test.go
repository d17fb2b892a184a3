package identity

import (
	"context"
	"testing"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, key string) *Service {
	t.Helper()

	s, err := New(&config.Config{JWT: config.JWT{SigningKey: key}})
	require.NoError(t, err)

	return s
}

func TestGetUserFromToken(t *testing.T) {
	s := newTestService(t, "secret")

	token, err := s.BuildToken("42", []user.Role{user.RoleManager}, time.Hour)
	require.NoError(t, err)

	u, err := s.GetUserFromToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, &user.User{ID: "42", Roles: []user.Role{user.RoleManager}}, u)
	assert.True(t, s.HasRole(u, user.RoleAdmin, user.RoleManager))
	assert.False(t, s.HasRole(u, user.RoleAdmin))
}

func TestGetUserFromTokenRejects(t *testing.T) {
	s := newTestService(t, "secret")
	other := newTestService(t, "another secret")

	expired, err := s.BuildToken("42", []user.Role{user.RoleAdmin}, -time.Minute)
	require.NoError(t, err)

	forged, err := other.BuildToken("42", []user.Role{user.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	anonymous, err := s.BuildToken("", []user.Role{user.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42"},
		Roles:            []user.Role{user.RoleAdmin},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "bearer only", token: "Bearer "},
		{name: "garbage", token: "Bearer not.a.token"},
		{name: "expired", token: expired},
		{name: "wrong key", token: forged},
		{name: "no subject", token: anonymous},
		{name: "alg none", token: "Bearer " + unsigned},
	}
	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, err := s.GetUserFromToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, errs.ErrUnauthorized)
			assert.Nil(t, u)
		})
	}
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.EqualError(t, err, "nil dependency: config")

	_, err = New(&config.Config{})
	assert.Error(t, err)
}
