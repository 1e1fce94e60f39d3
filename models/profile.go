package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a staff role. The set is closed; anything else is rejected at the edges.
type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleCenterHead    Role = "center_head"
	RoleSocialHead    Role = "social_head"
	RoleMedicalHead   Role = "medical_head"
	RolePsychHead     Role = "psych_head"
	RoleRehabHead     Role = "rehab_head"
	RoleHomelifeHead  Role = "homelife_head"
	RoleSocialStaff   Role = "social_staff"
	RoleMedicalStaff  Role = "medical_staff"
	RolePsychStaff    Role = "psych_staff"
	RoleRehabStaff    Role = "rehab_staff"
	RoleHomelifeStaff Role = "homelife_staff"
)

// Unit is an organizational unit of the facility.
type Unit string

const (
	UnitSocial   Unit = "social"
	UnitMedical  Unit = "medical"
	UnitPsych    Unit = "psych"
	UnitRehab    Unit = "rehab"
	UnitHomelife Unit = "homelife"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{
	RoleSuperAdmin, RoleCenterHead,
	RoleSocialHead, RoleMedicalHead, RolePsychHead, RoleRehabHead, RoleHomelifeHead,
	RoleSocialStaff, RoleMedicalStaff, RolePsychStaff, RoleRehabStaff, RoleHomelifeStaff,
}

// AllUnits lists every unit in display order.
var AllUnits = []Unit{UnitSocial, UnitMedical, UnitPsych, UnitRehab, UnitHomelife}

// roleUnits maps each role to the unit it belongs to. Facility-wide roles map to nil.
var roleUnits = map[Role]*Unit{
	RoleSuperAdmin:    nil,
	RoleCenterHead:    nil,
	RoleSocialHead:    unitPtr(UnitSocial),
	RoleSocialStaff:   unitPtr(UnitSocial),
	RoleMedicalHead:   unitPtr(UnitMedical),
	RoleMedicalStaff:  unitPtr(UnitMedical),
	RolePsychHead:     unitPtr(UnitPsych),
	RolePsychStaff:    unitPtr(UnitPsych),
	RoleRehabHead:     unitPtr(UnitRehab),
	RoleRehabStaff:    unitPtr(UnitRehab),
	RoleHomelifeHead:  unitPtr(UnitHomelife),
	RoleHomelifeStaff: unitPtr(UnitHomelife),
}

func unitPtr(u Unit) *Unit { return &u }

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleUnits[r]
	return ok
}

// IsFacilityWide reports whether the role spans every unit.
func (r Role) IsFacilityWide() bool {
	u, ok := roleUnits[r]
	return ok && u == nil
}

// UnitFor returns the unit a role belongs to. ok is false for unknown roles;
// a facility-wide role returns (nil, true).
func UnitFor(r Role) (*Unit, bool) {
	u, ok := roleUnits[r]
	if !ok {
		return nil, false
	}
	if u == nil {
		return nil, true
	}
	cp := *u
	return &cp, true
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	for _, known := range AllUnits {
		if u == known {
			return true
		}
	}
	return false
}

// UnitMatchesRole reports whether unit is the one the role requires.
func UnitMatchesRole(r Role, unit *Unit) bool {
	want, ok := UnitFor(r)
	if !ok {
		return false
	}
	if want == nil || unit == nil {
		return want == nil && unit == nil
	}
	return *want == *unit
}

// Profile is the application-level record of a staff member. Its ID equals
// the identity ID it was provisioned with.
type Profile struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	WorkID    string    `json:"work_id" db:"work_id"`
	FullName  string    `json:"full_name" db:"full_name"`
	Role      Role      `json:"role" db:"role"`
	Unit      *Unit     `json:"unit" db:"unit"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}

// NewProfile creates an active profile for an identity, deriving the unit from the role.
func NewProfile(id uuid.UUID, email, workID, fullName string, role Role) *Profile {
	now := time.Now().UTC()
	unit, _ := UnitFor(role)
	return &Profile{
		ID:        id,
		Email:     email,
		WorkID:    workID,
		FullName:  fullName,
		Role:      role,
		Unit:      unit,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UnitName returns the unit as a plain string, empty for facility-wide profiles.
func (p *Profile) UnitName() string {
	if p.Unit == nil {
		return ""
	}
	return string(*p.Unit)
}

// IsUnitHead reports whether the profile heads a single unit.
func (p *Profile) IsUnitHead() bool {
	switch p.Role {
	case RoleSocialHead, RoleMedicalHead, RolePsychHead, RoleRehabHead, RoleHomelifeHead:
		return true
	}
	return false
}

// ProfileUpdate carries a partial update. Nil fields are left untouched.
type ProfileUpdate struct {
	Role     *Role
	Unit     *Unit
	IsActive *bool
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.Role == nil && u.Unit == nil && u.IsActive == nil
}
