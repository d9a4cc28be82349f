package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload minted by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Semester int      `json:"semester,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into the principal passed to services.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{ID: c.UserID, Role: c.Role, Semester: c.Semester}
}
