package domain

import (
	"fmt"

	"tenantdesk/backend/internal/platform/apperr"
)

// Role is a permission level shared by organization members and team members.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// Roles lists every role in descending privilege order.
var Roles = []Role{RoleOwner, RoleAdmin, RoleManager, RoleMember}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleMember:
		return true
	}
	return false
}

// Label is the human readable role name used in choices and member labels.
func (r Role) Label() string {
	switch r {
	case RoleOwner:
		return "Owner"
	case RoleAdmin:
		return "Admin"
	case RoleManager:
		return "Manager"
	case RoleMember:
		return "Member"
	}
	return string(r)
}

// ParseRole validates raw at the data-entry boundary. An empty value yields the default member role.
func ParseRole(raw string) (Role, error) {
	if raw == "" {
		return RoleMember, nil
	}
	r := Role(raw)
	if !r.Valid() {
		return "", apperr.Invalidf("role", "%q is not a valid choice.", raw)
	}
	return r, nil
}

// Lattice evaluates the nested permission predicates for a role.
// OwnerOverride grants owner level regardless of Role: a superuser for organization members,
// organization admin rights for team members.
type Lattice struct {
	Role          Role
	OwnerOverride bool
}

func (l Lattice) HasOwner() bool   { return l.Role == RoleOwner || l.OwnerOverride }
func (l Lattice) HasAdmin() bool   { return l.Role == RoleAdmin || l.HasOwner() }
func (l Lattice) HasManager() bool { return l.Role == RoleManager || l.HasAdmin() }
func (l Lattice) HasMember() bool  { return l.Role == RoleMember || l.HasManager() }

// Grants reports whether the lattice satisfies the predicate for target.
func (l Lattice) Grants(target Role) bool {
	switch target {
	case RoleOwner:
		return l.HasOwner()
	case RoleAdmin:
		return l.HasAdmin()
	case RoleManager:
		return l.HasManager()
	case RoleMember:
		return l.HasMember()
	}
	return false
}

// CheckAssignable validates that a caller holding l may assign role to someone else.
// Owner needs owner permission and admin needs admin permission.
func (l Lattice) CheckAssignable(role Role) error {
	if (role == RoleOwner && !l.HasOwner()) || (role == RoleAdmin && !l.HasAdmin()) {
		return apperr.Invalid("role", fmt.Sprintf("Not allowed to set the %s role.", role))
	}
	return nil
}
