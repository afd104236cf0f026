package service

import (
	"context"
	"fmt"

	"tenantdesk/backend/internal/authz"
	"tenantdesk/backend/internal/db"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/rbac"
	teamdomain "tenantdesk/backend/internal/team/domain"
	"tenantdesk/backend/internal/teammember/domain"
	"tenantdesk/backend/internal/tenancy"
)

const alreadyOnTeam = "This member is already part of the team."

var uniqueErrors = map[string]error{
	"team_members_team_member_key": apperr.Invalid(apperr.NonFieldErrors, alreadyOnTeam),
}

// TeamMemberRepo is the minimal team member repository needed by the service.
type TeamMemberRepo interface {
	GetVisible(ctx context.Context, orgID, id int64) (*domain.TeamMember, error)
	GetPair(ctx context.Context, teamID, memberID int64) (*domain.TeamMember, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.TeamMember, error)
	Create(ctx context.Context, tm *domain.TeamMember) error
	Reactivate(ctx context.Context, tm *domain.TeamMember) error
	UpdateRole(ctx context.Context, tm *domain.TeamMember) error
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
}

// TeamLookup resolves teams of the session organization and the caller's relation to them.
type TeamLookup interface {
	GetActive(ctx context.Context, orgID, id int64) (*teamdomain.Team, error)
	HasActiveMember(ctx context.Context, teamID, memberID int64) (bool, error)
}

// MemberLookup loads organization members.
type MemberLookup interface {
	GetByID(ctx context.Context, id int64) (*memberdomain.Member, error)
}

// CreateInput names the team, the member and the team role.
type CreateInput struct {
	TeamID   int64
	MemberID int64
	Role     string
}

// UpdateInput changes the team role. Team and member are accepted only when unchanged.
type UpdateInput struct {
	TeamID   *int64
	MemberID *int64
	Role     *string
}

type TeamMemberService struct {
	teamMembers TeamMemberRepo
	teams       TeamLookup
	members     MemberLookup
	authz       *authz.Engine
}

func NewTeamMemberService(teamMembers TeamMemberRepo, teams TeamLookup, members MemberLookup, engine *authz.Engine) *TeamMemberService {
	return &TeamMemberService{teamMembers: teamMembers, teams: teams, members: members, authz: engine}
}

// List returns visible team members of the session organization matching f.
func (s *TeamMemberService) List(ctx context.Context, tc *tenancy.Context, f domain.Filter) ([]*domain.TeamMember, error) {
	if err := rbac.RequireOrgMember(tc); err != nil {
		return nil, err
	}
	f.OrgID = tc.OrgID
	return s.teamMembers.List(ctx, f)
}

func (s *TeamMemberService) Get(ctx context.Context, tc *tenancy.Context, id int64) (*domain.TeamMember, error) {
	return s.object(ctx, tc, id, authz.ActionRead)
}

// Create adds a member to a team. A previously removed pairing is reactivated under its old id.
// The caller must already be on the team or hold manager permission in the organization.
func (s *TeamMemberService) Create(ctx context.Context, tc *tenancy.Context, in CreateInput) (*domain.TeamMember, error) {
	if err := rbac.RequireOrgMember(tc); err != nil {
		return nil, err
	}
	role, err := memberdomain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	team, err := s.teams.GetActive(ctx, tc.OrgID, in.TeamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, apperr.Invalid("team", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", in.TeamID))
	}
	member, err := s.members.GetByID(ctx, in.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil || !member.IsActive || member.OrgID != tc.OrgID {
		return nil, apperr.Invalid("member", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", in.MemberID))
	}
	if !tc.Member.HasManagerPermission() {
		onTeam, err := s.teams.HasActiveMember(ctx, team.ID, tc.Member.ID)
		if err != nil {
			return nil, err
		}
		if !onTeam {
			return nil, apperr.Forbidden("You are not allowed to add a member to this team.")
		}
	}
	if err := s.authz.Create(ctx, tc, "team_member", map[string]any{
		"team_id": team.ID, "member_id": member.ID, "role": string(role),
	}); err != nil {
		return nil, err
	}

	existing, err := s.teamMembers.GetPair(ctx, team.ID, member.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.IsActive {
			return nil, apperr.Invalid(apperr.NonFieldErrors, alreadyOnTeam)
		}
		existing.Role = role
		existing.UpdatedBy = tc.Actor()
		if err := s.teamMembers.Reactivate(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	tm := &domain.TeamMember{
		TeamID:    team.ID,
		MemberID:  member.ID,
		Role:      role,
		CreatedBy: tc.Actor(),
		UpdatedBy: tc.Actor(),
		Team:      team,
		Member:    member,
	}
	if err := s.teamMembers.Create(ctx, tm); err != nil {
		return nil, db.UniqueError(err, uniqueErrors)
	}
	return tm, nil
}

// Update changes the team role of a row.
func (s *TeamMemberService) Update(ctx context.Context, tc *tenancy.Context, id int64, in UpdateInput) (*domain.TeamMember, error) {
	tm, err := s.object(ctx, tc, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if in.TeamID != nil && *in.TeamID != tm.TeamID {
		return nil, apperr.Invalid("team", "Not allowed to change the team.")
	}
	if in.MemberID != nil && *in.MemberID != tm.MemberID {
		return nil, apperr.Invalid("member", "Not allowed to change the member.")
	}
	if in.Role != nil {
		role, err := memberdomain.ParseRole(*in.Role)
		if err != nil {
			return nil, err
		}
		tm.Role = role
	}
	tm.UpdatedBy = tc.Actor()
	if err := s.teamMembers.UpdateRole(ctx, tm); err != nil {
		return nil, err
	}
	return tm, nil
}

// Delete removes a row from its team.
func (s *TeamMemberService) Delete(ctx context.Context, tc *tenancy.Context, id int64) error {
	tm, err := s.object(ctx, tc, id, authz.ActionDelete)
	if err != nil {
		return err
	}
	return s.teamMembers.Deactivate(ctx, tm.ID, tc.Actor())
}

func (s *TeamMemberService) object(ctx context.Context, tc *tenancy.Context, id int64, action authz.Action) (*domain.TeamMember, error) {
	if err := rbac.RequireTenantObject(tc); err != nil {
		return nil, err
	}
	tm, err := s.teamMembers.GetVisible(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	if tm == nil {
		return nil, apperr.ErrNotFound
	}
	if err := s.authz.TeamMember(ctx, tc, action, tm); err != nil {
		return nil, err
	}
	return tm, nil
}
