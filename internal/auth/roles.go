package auth

import (
	"errors"

	"libtrack/internal/http-api/models"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrForbidden              = errors.New("insufficient permissions")
)

// RequireRole is the single capability check for role-gated operations.
// Services call it at their boundary instead of sprinkling role conditionals
// through handlers.
func RequireRole(user *models.User, role string) error {
	if user == nil {
		return ErrAuthenticationRequired
	}
	if user.Role != role {
		return ErrForbidden
	}
	return nil
}

// RequireAdmin is a convenience wrapper for admin-only operations.
func RequireAdmin(user *models.User) error {
	return RequireRole(user, models.RoleAdmin)
}
