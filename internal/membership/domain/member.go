package domain

import (
	"time"

	userdomain "tenantdesk/backend/internal/user/domain"
)

// Member binds a user to an organization with a role.
type Member struct {
	ID        int64
	UserID    int64
	OrgID     int64
	Nickname  string
	Role      Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy *int64
	UpdatedBy *int64

	// User is loaded alongside the member by repositories.
	User *userdomain.User
}

// Lattice returns the permission lattice of m; a superuser always has owner level.
func (m *Member) Lattice() Lattice {
	if m == nil {
		return Lattice{}
	}
	return Lattice{Role: m.Role, OwnerOverride: m.User != nil && m.User.IsSuperuser}
}

func (m *Member) HasOwnerPermission() bool   { return m.Lattice().HasOwner() }
func (m *Member) HasAdminPermission() bool   { return m.Lattice().HasAdmin() }
func (m *Member) HasManagerPermission() bool { return m.Lattice().HasManager() }
func (m *Member) HasMemberPermission() bool  { return m.Lattice().HasMember() }

// Label is "full_name(nickname)" when both are set, else whichever is set, else the role label.
func (m *Member) Label() string {
	full := ""
	if m.User != nil {
		full = m.User.FullName()
	}
	switch {
	case full != "" && m.Nickname != "":
		return full + "(" + m.Nickname + ")"
	case full != "":
		return full
	case m.Nickname != "":
		return m.Nickname
	default:
		return m.Role.Label()
	}
}

// TenantID returns the organization the member belongs to.
func (m *Member) TenantID() int64 { return m.OrgID }

// Filter narrows member listings inside one organization.
type Filter struct {
	OrgID            int64
	Nickname         string
	NicknameContains string
	Roles            []string
	UserID           int64
	FullNameContains string
	EmailContains    string
	IncludeInactive  bool
}
