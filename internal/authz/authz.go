package authz

import "github.com/upb/rcfms-admin/models"

// Level is a named capability required by an operation.
type Level string

const (
	SuperAdminOnly  Level = "super-admin-only"
	AnyAdmin        Level = "any-admin"
	UnitHeadOrAbove Level = "unit-head-or-above"
)

// levelRoles maps each level to its members.
// This is the single source of truth for the authorization model.
var levelRoles = map[Level][]models.Role{
	SuperAdminOnly: {
		models.RoleSuperAdmin,
	},
	AnyAdmin: {
		models.RoleSuperAdmin,
		models.RoleCenterHead,
	},
	UnitHeadOrAbove: {
		models.RoleSuperAdmin,
		models.RoleCenterHead,
		models.RoleSocialHead,
		models.RoleMedicalHead,
		models.RolePsychHead,
		models.RoleRehabHead,
		models.RoleHomelifeHead,
	},
}

// Authorize reports whether role is a member of level. Unknown roles and
// unknown levels are denied.
func Authorize(role models.Role, level Level) bool {
	roles, ok := levelRoles[level]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// RolesFor returns a copy of the roles granted a level, or nil for unknown levels.
func RolesFor(level Level) []models.Role {
	roles := levelRoles[level]
	if roles == nil {
		return nil
	}
	result := make([]models.Role, len(roles))
	copy(result, roles)
	return result
}

// Valid reports whether l is a known level.
func (l Level) Valid() bool {
	_, ok := levelRoles[l]
	return ok
}
