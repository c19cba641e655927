package rbac

import "chatdesk-platform/internal/auth"

func IsAdmin(role string) bool { return role == auth.RoleAdmin }

// CanAccessSector reports whether a caller may act on a conversation
// owned by the given sector.
//
// Rules:
//   - admin bypasses the sector check entirely
//   - agent must match the conversation's current sector at call time
//     (a conversation may have been transferred away after the agent
//     joined its room, so callers must re-check per mutation)
func CanAccessSector(role, callerSector, conversationSector string) bool {
	if IsAdmin(role) {
		return true
	}
	return callerSector != "" && callerSector == conversationSector
}
