package auth

// Role names a caller's access level on the collector's query and
// export API. Viewers read points and station lists; operators
// additionally run exports and the replay tooling; admins cover
// everything else.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Roles are strictly ordered; an unknown role ranks below viewer and
// satisfies nothing.
var roleRanks = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole maps a token's role claim onto a known Role. It reports
// false for anything outside the three known values.
func NormalizeRole(value string) (Role, bool) {
	role := Role(value)
	_, known := roleRanks[role]
	if !known {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role grants everything required grants.
func RoleAtLeast(role Role, required Role) bool {
	return roleRanks[role] >= roleRanks[required]
}
