package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims identifies the operator behind an API call. Tokens are minted by
// the broadcast back office.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// CanEdit reports whether the operator may change arrangements or convert days.
func (c *JWTClaims) CanEdit() bool {
	return c != nil && (c.Role == RoleAdmin || c.Role == RoleScheduler)
}

// Operator is the name written next to frozen LOGs and audit entries.
func (c *JWTClaims) Operator() string {
	switch {
	case c == nil:
		return ""
	case c.FullName != "":
		return c.FullName
	case c.Email != "":
		return c.Email
	default:
		return c.UserID
	}
}
