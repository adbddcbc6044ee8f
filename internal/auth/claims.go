package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Roles are a routing hint only; per-action authorization re-reads the stored
// user so a stale token cannot widen access.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType TokenType `json:"token_type"`
}
