package user

import (
	"context"
	"slices"
)

// Role granted by the authentication service.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RolePOS      Role = "pos"
	RoleCustomer Role = "customer"
)

// User is the caller identity carried by a verified token.
type User struct {
	ID    string
	Roles []Role
}

func (u *User) HasAnyRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if slices.Contains(u.Roles, r) {
			return true
		}
	}
	return false
}

// key is an unexported type for keys defined in this package.
// This prevents collisions with keys defined in other packages.
type key int

// userKey is the key for user.User values in Contexts. It is
// unexported; clients use user.NewContext and user.FromContext
// instead of using this key directly.
var userKey key

// NewContext returns a new Context that carries value u.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// FromContext returns the User value stored in ctx, if any.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	return u, ok
}
