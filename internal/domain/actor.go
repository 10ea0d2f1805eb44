package domain

// Role differentiates ticket owners from staff.
type Role string

const (
	RoleUser       Role = "USER"
	RoleHandler    Role = "HANDLER"
	RoleSupervisor Role = "SUPERVISOR"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleHandler || r == RoleSupervisor
}

// IsStaff reports whether r is a handler or supervisor.
func (r Role) IsStaff() bool {
	return r == RoleHandler || r == RoleSupervisor
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor is used for updates produced by background jobs.
var SystemActor = Actor{ID: "system", Role: RoleSupervisor}
