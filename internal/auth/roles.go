package auth

// Role names. Keep these stable; they are part of the token contract.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

func IsKnownRole(role string) bool {
	return role == RoleAdmin || role == RoleAgent
}
