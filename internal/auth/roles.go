package auth

import "strings"

// Role is the access level carried by a token.
type Role string

const (
	// RoleViewer reads OEE figures.
	RoleViewer Role = "viewer"
	// RoleSupervisor also exports reports.
	RoleSupervisor Role = "supervisor"
	// RoleAdmin also backfills state events.
	RoleAdmin Role = "admin"
)

var roleRanks = map[Role]int{
	RoleViewer:     1,
	RoleSupervisor: 2,
	RoleAdmin:      3,
}

// ParseRole accepts a role name in any case.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRanks[role]; !ok {
		return "", false
	}
	return role, true
}

// Satisfies tells if r grants at least the required level.
func (r Role) Satisfies(required Role) bool {
	return roleRanks[r] >= roleRanks[required] && roleRanks[r] > 0
}
