package domain

import (
	"time"

	memberdomain "tenantdesk/backend/internal/membership/domain"
	teamdomain "tenantdesk/backend/internal/team/domain"
)

// TeamMember binds an organization member to a team with a team-scoped role.
type TeamMember struct {
	ID        int64
	TeamID    int64
	MemberID  int64
	Role      memberdomain.Role
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy *int64
	UpdatedBy *int64

	Team   *teamdomain.Team
	Member *memberdomain.Member
}

// Lattice returns the team-scoped lattice. Organization admins always hold team owner level.
func (tm *TeamMember) Lattice() memberdomain.Lattice {
	if tm == nil {
		return memberdomain.Lattice{}
	}
	return memberdomain.Lattice{Role: tm.Role, OwnerOverride: tm.Member != nil && tm.Member.HasAdminPermission()}
}

func (tm *TeamMember) HasOwnerPermission() bool   { return tm.Lattice().HasOwner() }
func (tm *TeamMember) HasAdminPermission() bool   { return tm.Lattice().HasAdmin() }
func (tm *TeamMember) HasManagerPermission() bool { return tm.Lattice().HasManager() }
func (tm *TeamMember) HasMemberPermission() bool  { return tm.Lattice().HasMember() }

// Label uses the member label, matching how team members are offered as choices.
func (tm *TeamMember) Label() string {
	if tm.Member == nil {
		return tm.Role.Label()
	}
	return tm.Member.Label()
}

// TenantID resolves the organization through the team.
func (tm *TeamMember) TenantID() int64 {
	if tm.Team == nil {
		return 0
	}
	return tm.Team.OrgID
}

// Filter narrows team member listings inside one organization.
type Filter struct {
	OrgID                  int64
	TeamID                 int64
	MemberID               int64
	Roles                  []string
	TeamName               string
	TeamNameContains       string
	TeamSlug               string
	TeamSlugContains       string
	MemberFullNameContains string
	MemberEmailContains    string
}
