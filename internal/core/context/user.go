// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// Role names used across the API.
const (
	RoleCustomer  = "customer"
	RoleSupplier  = "supplier"
	RoleWarehouse = "warehouse"
	RoleCarrier   = "carrier"
	RoleAdmin     = "admin"
)

// UserContext contains authenticated user information.
type UserContext struct {
	UserID string
	Email  string
	Role   string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetRole returns the user's role from context or empty string.
func GetRole(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.Role
	}
	return ""
}

// HasRole checks if user has one of the given roles.
// Admin passes every role check.
func HasRole(ctx context.Context, roles ...string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsAdmin checks if user has the admin role.
func IsAdmin(ctx context.Context) bool {
	u := GetUser(ctx)
	return u != nil && u.Role == RoleAdmin
}
