package models

import "strings"

// Role represents the closed set of console roles.
type Role string

const (
	RoleSuperAdmin    Role = "superadmin"
	RoleOrgSuperAdmin Role = "orgsuperadmin"
	RoleOrgAdmin      Role = "orgadmin"
	RoleTrainer       Role = "trainer"
	RoleUser          Role = "user"
)

// AllRoles lists roles from most to least privileged.
var AllRoles = []Role{RoleSuperAdmin, RoleOrgSuperAdmin, RoleOrgAdmin, RoleTrainer, RoleUser}

// ParseRole normalises a role string. The boolean is false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleOrgSuperAdmin, RoleOrgAdmin, RoleTrainer, RoleUser:
		return true
	}
	return false
}

// Capabilities is the set of console actions a role may perform.
type Capabilities struct {
	CanEdit                bool `json:"canEdit"`
	CanDelete              bool `json:"canDelete"`
	CanAssign              bool `json:"canAssign"`
	CanImpersonate         bool `json:"canImpersonate"`
	CanManageCatalogue     bool `json:"canManageCatalogue"`
	CanManageUsers         bool `json:"canManageUsers"`
	CanManageOrganizations bool `json:"canManageOrganizations"`
	CanConvert             bool `json:"canConvert"`
}

var capabilityTable = map[Role]Capabilities{
	RoleSuperAdmin: {
		CanEdit: true, CanDelete: true, CanAssign: true, CanImpersonate: true,
		CanManageCatalogue: true, CanManageUsers: true, CanManageOrganizations: true, CanConvert: true,
	},
	RoleOrgSuperAdmin: {
		CanEdit: true, CanDelete: true, CanAssign: true,
		CanManageCatalogue: true, CanManageUsers: true, CanConvert: true,
	},
	RoleOrgAdmin: {CanAssign: true, CanManageUsers: true},
	RoleTrainer:  {CanAssign: true},
	RoleUser:     {},
}

// CapabilitiesFor returns the capability set of a role. Unknown roles get none.
func CapabilitiesFor(r Role) Capabilities {
	return capabilityTable[r]
}

// Capability names a single entry of Capabilities for route-level checks.
type Capability string

const (
	CapEdit                Capability = "edit"
	CapDelete              Capability = "delete"
	CapAssign              Capability = "assign"
	CapImpersonate         Capability = "impersonate"
	CapManageCatalogue     Capability = "manage_catalogue"
	CapManageUsers         Capability = "manage_users"
	CapManageOrganizations Capability = "manage_organizations"
	CapConvert             Capability = "convert"
)

// Has reports whether the set grants the named capability.
func (c Capabilities) Has(name Capability) bool {
	switch name {
	case CapEdit:
		return c.CanEdit
	case CapDelete:
		return c.CanDelete
	case CapAssign:
		return c.CanAssign
	case CapImpersonate:
		return c.CanImpersonate
	case CapManageCatalogue:
		return c.CanManageCatalogue
	case CapManageUsers:
		return c.CanManageUsers
	case CapManageOrganizations:
		return c.CanManageOrganizations
	case CapConvert:
		return c.CanConvert
	}
	return false
}
