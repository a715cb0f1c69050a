package authz

const (
	RoleMember = 10
	RoleAdmin  = 50
)

// IsAdmin reports whether the role sees every ticket and task,
// regardless of ownership or assignment.
func IsAdmin(roleID int) bool {
	return roleID == RoleAdmin
}
