// Package identity reads caller identities issued by the authentication
// service. Tokens are HS256 JWTs carrying the user id as subject and the
// granted roles.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KretovDmitry/backoffice/internal/application/errs"
	"github.com/KretovDmitry/backoffice/internal/application/interfaces"
	"github.com/KretovDmitry/backoffice/internal/config"
	"github.com/KretovDmitry/backoffice/internal/domain/entities/user"
	"github.com/golang-jwt/jwt/v4"
)

type Claims struct {
	jwt.RegisteredClaims
	Roles []user.Role `json:"roles"`
}

type Service struct {
	secret []byte
}

func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("nil dependency: config")
	}
	if cfg.JWT.SigningKey == "" {
		return nil, errors.New("identity: jwt signing key is not configured")
	}
	return &Service{secret: []byte(cfg.JWT.SigningKey)}, nil
}

var (
	_ interfaces.AuthService = (*Service)(nil)
	_ interfaces.Identity    = (*Service)(nil)
)

// HasRole reports whether caller holds any of roles.
func (s *Service) HasRole(caller *user.User, roles ...user.Role) bool {
	return caller.HasAnyRole(roles...)
}

// GetUserFromToken verifies a bearer token and extracts the caller.
func (s *Service) GetUserFromToken(_ context.Context, token string) (*user.User, error) {
	claims := new(Claims)

	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", errs.ErrUnauthorized)
	}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		// Verify that the token method is HS256.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}

	return &user.User{ID: claims.Subject, Roles: claims.Roles}, nil
}

// BuildToken issues a token the way the authentication service does.
func (s *Service) BuildToken(userID string, roles []user.Role, ttl time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Roles: roles,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}

	return "Bearer " + signed, nil
}
