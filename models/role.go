package models

import "strings"

// Role is the access tier of an account.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleAGM         Role = "AGM"
	RoleAreaManager Role = "area_manager"
	RoleBranch      Role = "branch"
)

// Roles lists every role from most to least senior.
var Roles = []Role{RoleAdmin, RoleAGM, RoleAreaManager, RoleBranch}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAGM, RoleAreaManager, RoleBranch:
		return true
	}
	return false
}

// Global reports whether the role acts on every branch.
func (r Role) Global() bool {
	return r == RoleAdmin || r == RoleAGM
}

// ParseRole accepts the stored spelling plus a few operator-friendly aliases
// ("agm", "area-manager", "Branch").
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "agm":
		return RoleAGM, true
	case "area_manager", "area-manager", "areamanager":
		return RoleAreaManager, true
	case "branch":
		return RoleBranch, true
	}
	return "", false
}
