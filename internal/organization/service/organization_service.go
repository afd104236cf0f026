package service

import (
	"context"

	"tenantdesk/backend/internal/authz"
	"tenantdesk/backend/internal/db"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/organization/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/rbac"
	"tenantdesk/backend/internal/tenancy"
)

var uniqueErrors = map[string]error{
	"organizations_slug_key": apperr.Invalid("slug", "organization with this slug already exists."),
}

// OrgRepo is the minimal organization repository needed by the service.
type OrgRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Org, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.Org, error)
	Create(ctx context.Context, o *domain.Org) error
	SetOwner(ctx context.Context, id, memberID int64) error
	Update(ctx context.Context, o *domain.Org) error
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
}

// MemberCreator creates the owner membership.
type MemberCreator interface {
	Create(ctx context.Context, m *memberdomain.Member) error
}

// OrgLogin switches the caller's session to an organization.
type OrgLogin interface {
	LoginToOrganization(ctx context.Context, tc *tenancy.Context, orgID int64) (*domain.Org, error)
}

// Input carries writable organization fields. Nil fields are left unchanged on update.
type Input struct {
	Name *string
	Slug *string
}

// OrganizationService implements organization CRUD and tenant login.
type OrganizationService struct {
	tx      db.Transactor
	orgs    OrgRepo
	members MemberCreator
	login   OrgLogin
	authz   *authz.Engine
}

// NewOrganizationService returns an OrganizationService with the given dependencies.
func NewOrganizationService(tx db.Transactor, orgs OrgRepo, members MemberCreator, login OrgLogin, engine *authz.Engine) *OrganizationService {
	return &OrganizationService{tx: tx, orgs: orgs, members: members, login: login, authz: engine}
}

// List returns organizations matching f. Only active ones unless f.IsActive says otherwise.
func (s *OrganizationService) List(ctx context.Context, f domain.Filter) ([]*domain.Org, error) {
	return s.orgs.List(ctx, f)
}

// Get returns the active organization id.
func (s *OrganizationService) Get(ctx context.Context, id int64) (*domain.Org, error) {
	o, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil || !o.IsActive {
		return nil, apperr.ErrNotFound
	}
	return o, nil
}

// Create creates an organization and its owner member for the caller in one transaction.
func (s *OrganizationService) Create(ctx context.Context, tc *tenancy.Context, in Input) (*domain.Org, error) {
	if err := rbac.RequireAuthenticated(tc); err != nil {
		return nil, err
	}
	o := &domain.Org{CreatedBy: tc.Actor(), UpdatedBy: tc.Actor()}
	if in.Name != nil {
		o.Name = *in.Name
	}
	if in.Slug != nil {
		o.Slug = *in.Slug
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.CreateWithOwner(ctx, o, tc.User.ID, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CreateWithOwner inserts o and an owner member for userID, then links the owner. Callers run it
// inside a transaction; o must already be validated.
func (s *OrganizationService) CreateWithOwner(ctx context.Context, o *domain.Org, userID int64, nickname string) (*memberdomain.Member, error) {
	if err := s.orgs.Create(ctx, o); err != nil {
		return nil, db.UniqueError(err, uniqueErrors)
	}
	owner := &memberdomain.Member{
		UserID:    userID,
		OrgID:     o.ID,
		Nickname:  nickname,
		Role:      memberdomain.RoleOwner,
		CreatedBy: o.CreatedBy,
		UpdatedBy: o.UpdatedBy,
	}
	if err := s.members.Create(ctx, owner); err != nil {
		return nil, db.UniqueError(err, map[string]error{
			"members_nickname_organization_key": apperr.Invalid("nickname", "The fields nickname, organization must make a unique set."),
		})
	}
	if err := s.orgs.SetOwner(ctx, o.ID, owner.ID); err != nil {
		return nil, err
	}
	o.OwnerID = &owner.ID
	return owner, nil
}

// Update changes name and slug. Only an owner acting inside the organization may do so.
func (s *OrganizationService) Update(ctx context.Context, tc *tenancy.Context, id int64, in Input) (*domain.Org, error) {
	o, err := s.object(ctx, tc, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		o.Name = *in.Name
	}
	if in.Slug != nil {
		o.Slug = *in.Slug
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	o.UpdatedBy = tc.Actor()
	if err := s.orgs.Update(ctx, o); err != nil {
		return nil, db.UniqueError(err, uniqueErrors)
	}
	return o, nil
}

// Delete deactivates the organization.
func (s *OrganizationService) Delete(ctx context.Context, tc *tenancy.Context, id int64) error {
	o, err := s.object(ctx, tc, id, authz.ActionDelete)
	if err != nil {
		return err
	}
	return s.orgs.Deactivate(ctx, o.ID, tc.Actor())
}

// Login makes id the caller's active organization.
func (s *OrganizationService) Login(ctx context.Context, tc *tenancy.Context, id int64) (*domain.Org, error) {
	if err := rbac.RequireAuthenticated(tc); err != nil {
		return nil, err
	}
	o, err := s.orgs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil || !o.IsActive {
		return nil, apperr.NotFound("Organization not found.")
	}
	if err := s.authz.Organization(ctx, tc, authz.ActionLogin, o); err != nil {
		return nil, err
	}
	return s.login.LoginToOrganization(ctx, tc, o.ID)
}

func (s *OrganizationService) object(ctx context.Context, tc *tenancy.Context, id int64, action authz.Action) (*domain.Org, error) {
	if err := rbac.RequireAuthenticated(tc); err != nil {
		return nil, err
	}
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Organization(ctx, tc, action, o); err != nil {
		return nil, err
	}
	return o, nil
}
