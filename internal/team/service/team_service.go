package service

import (
	"context"

	"tenantdesk/backend/internal/authz"
	"tenantdesk/backend/internal/db"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/rbac"
	"tenantdesk/backend/internal/team/domain"
	teammemberdomain "tenantdesk/backend/internal/teammember/domain"
	"tenantdesk/backend/internal/tenancy"
)

var uniqueErrors = map[string]error{
	"teams_slug_key":              apperr.Invalid("slug", "team with this slug already exists."),
	"teams_name_organization_key": apperr.Invalid(apperr.NonFieldErrors, "The fields name, organization must make a unique set."),
}

// TeamRepo is the minimal team repository needed by the service.
type TeamRepo interface {
	GetActive(ctx context.Context, orgID, id int64) (*domain.Team, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.Team, error)
	Create(ctx context.Context, t *domain.Team) error
	Update(ctx context.Context, t *domain.Team) error
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
}

// TeamMemberCreator inserts the creator's owner row.
type TeamMemberCreator interface {
	Create(ctx context.Context, tm *teammemberdomain.TeamMember) error
}

// Input carries writable team fields. Nil fields are left unchanged on update.
type Input struct {
	Name        *string
	Slug        *string
	Description *string
}

type TeamService struct {
	tx          db.Transactor
	teams       TeamRepo
	teamMembers TeamMemberCreator
	authz       *authz.Engine
}

func NewTeamService(tx db.Transactor, teams TeamRepo, teamMembers TeamMemberCreator, engine *authz.Engine) *TeamService {
	return &TeamService{tx: tx, teams: teams, teamMembers: teamMembers, authz: engine}
}

// List returns the session organization's active teams.
func (s *TeamService) List(ctx context.Context, tc *tenancy.Context, f domain.Filter) ([]*domain.Team, error) {
	if err := rbac.RequireOrgMember(tc); err != nil {
		return nil, err
	}
	f.OrgID = tc.OrgID
	return s.teams.List(ctx, f)
}

func (s *TeamService) Get(ctx context.Context, tc *tenancy.Context, id int64) (*domain.Team, error) {
	return s.object(ctx, tc, id, authz.ActionRead)
}

// Create adds a team to the session organization and makes the caller its owner in one transaction.
func (s *TeamService) Create(ctx context.Context, tc *tenancy.Context, in Input) (*domain.Team, error) {
	if err := rbac.RequireOrgManager(tc); err != nil {
		return nil, err
	}
	t := &domain.Team{OrgID: tc.OrgID, Description: in.Description, CreatedBy: tc.Actor(), UpdatedBy: tc.Actor()}
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Slug != nil {
		t.Slug = *in.Slug
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.authz.Create(ctx, tc, "team", map[string]any{"name": t.Name, "slug": t.Slug}); err != nil {
		return nil, err
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.teams.Create(ctx, t); err != nil {
			return db.UniqueError(err, uniqueErrors)
		}
		return s.teamMembers.Create(ctx, &teammemberdomain.TeamMember{
			TeamID:    t.ID,
			MemberID:  tc.Member.ID,
			Role:      memberdomain.RoleOwner,
			CreatedBy: tc.Actor(),
			UpdatedBy: tc.Actor(),
		})
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies the non-nil fields of in.
func (s *TeamService) Update(ctx context.Context, tc *tenancy.Context, id int64, in Input) (*domain.Team, error) {
	t, err := s.object(ctx, tc, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Slug != nil {
		t.Slug = *in.Slug
	}
	if in.Description != nil {
		t.Description = in.Description
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.UpdatedBy = tc.Actor()
	if err := s.teams.Update(ctx, t); err != nil {
		return nil, db.UniqueError(err, uniqueErrors)
	}
	return t, nil
}

// Delete deactivates the team. Its team members stop being visible with it.
func (s *TeamService) Delete(ctx context.Context, tc *tenancy.Context, id int64) error {
	t, err := s.object(ctx, tc, id, authz.ActionDelete)
	if err != nil {
		return err
	}
	return s.teams.Deactivate(ctx, t.ID, tc.Actor())
}

func (s *TeamService) object(ctx context.Context, tc *tenancy.Context, id int64, action authz.Action) (*domain.Team, error) {
	if err := rbac.RequireTenantObject(tc); err != nil {
		return nil, err
	}
	t, err := s.teams.GetActive(ctx, tc.OrgID, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.ErrNotFound
	}
	if err := s.authz.Team(ctx, tc, action, t); err != nil {
		return nil, err
	}
	return t, nil
}
