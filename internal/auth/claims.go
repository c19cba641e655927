package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the only supported JWT claims shape for this service.
// The realtime hub decodes these locally on handshake; no identity
// service is called synchronously.
//
// Invariant: Role is always present; Sector is required for agents and
// may be empty for admins (admins see every sector).
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Sector string `json:"sector,omitempty"`
}

// Identity is the decoded agent identity carried by sessions and contexts.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   string
	Sector string
}

func (c Claims) Identity() Identity {
	return Identity{
		UserID: c.UserID,
		Email:  c.Email,
		Name:   c.Name,
		Role:   c.Role,
		Sector: c.Sector,
	}
}
