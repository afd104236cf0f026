package service

import (
	"context"

	"tenantdesk/backend/internal/authz"
	"tenantdesk/backend/internal/db"
	identitydomain "tenantdesk/backend/internal/identity/domain"
	identityservice "tenantdesk/backend/internal/identity/service"
	invitationdomain "tenantdesk/backend/internal/invitation/domain"
	invitationservice "tenantdesk/backend/internal/invitation/service"
	"tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/rbac"
	"tenantdesk/backend/internal/security"
	"tenantdesk/backend/internal/tenancy"
	userdomain "tenantdesk/backend/internal/user/domain"
)

// DeprecatedCreateMessage answers the removed direct create route.
const DeprecatedCreateMessage = "This route is not available anymore. Use the `create_with_invite` route instead."

var uniqueErrors = map[string]error{
	"members_user_organization_key":     apperr.Invalid(apperr.NonFieldErrors, invitationdomain.ErrAlreadyMember.Error()),
	"members_nickname_organization_key": apperr.Invalid("nickname", "The fields nickname, organization must make a unique set."),
}

// MemberRepo is the minimal member repository needed by the service.
type MemberRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Member, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.Member, error)
	Create(ctx context.Context, m *domain.Member) error
	Update(ctx context.Context, m *domain.Member) error
	UpdateRole(ctx context.Context, id int64, role domain.Role, updatedBy *int64) error
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
}

// UserRepo is the minimal user repository needed by the service.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	Update(ctx context.Context, u *userdomain.User) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	MarkSelfCreated(ctx context.Context, id int64) error
}

// InvitationFlow is the part of the invitation service used during onboarding.
type InvitationFlow interface {
	GetOpen(ctx context.Context, key string) (*invitationdomain.Invitation, error)
	CheckAcceptable(ctx context.Context, inv *invitationdomain.Invitation) error
	Accept(ctx context.Context, inv *invitationdomain.Invitation, memberID int64, check bool) error
}

// TokenIssuer logs a user in right after onboarding.
type TokenIssuer interface {
	Issue(ctx context.Context, u *userdomain.User, ip string) (*identitydomain.TokenResult, error)
}

// UserInput carries writable user fields of a member. Nil fields are left unchanged.
type UserInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
}

// UpdateInput is a self-service member update. The role is not writable here.
type UpdateInput struct {
	Nickname *string
	User     *UserInput
}

// InviteInput is the payload of create-with-invite.
type InviteInput struct {
	User     userdomain.User
	Password string
	Nickname string
}

// InviteResult is the new member and its tokens.
type InviteResult struct {
	Member *domain.Member
	Tokens *identitydomain.TokenResult
}

type MemberService struct {
	tx          db.Transactor
	members     MemberRepo
	users       UserRepo
	invitations InvitationFlow
	issuer      TokenIssuer
	hasher      *security.PasswordHasher
	authz       *authz.Engine
}

func NewMemberService(tx db.Transactor, members MemberRepo, users UserRepo, invitations InvitationFlow,
	issuer TokenIssuer, hasher *security.PasswordHasher, engine *authz.Engine) *MemberService {
	return &MemberService{
		tx:          tx,
		members:     members,
		users:       users,
		invitations: invitations,
		issuer:      issuer,
		hasher:      hasher,
		authz:       engine,
	}
}

// List returns the active members of the session organization matching f.
func (s *MemberService) List(ctx context.Context, tc *tenancy.Context, f domain.Filter) ([]*domain.Member, error) {
	if err := rbac.RequireOrgMember(tc); err != nil {
		return nil, err
	}
	f.OrgID = tc.OrgID
	f.IncludeInactive = false
	return s.members.List(ctx, f)
}

func (s *MemberService) Get(ctx context.Context, tc *tenancy.Context, id int64) (*domain.Member, error) {
	return s.object(ctx, tc, id, authz.ActionRead)
}

// Create is retired; members join through invitations.
func (s *MemberService) Create(context.Context, *tenancy.Context) error {
	return apperr.MethodNotAllowed(DeprecatedCreateMessage)
}

// Update changes the caller's own member and user fields.
func (s *MemberService) Update(ctx context.Context, tc *tenancy.Context, id int64, in UpdateInput) (*domain.Member, error) {
	m, err := s.object(ctx, tc, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if in.Nickname != nil {
		m.Nickname = *in.Nickname
	}
	var passwordHash string
	if in.User != nil {
		u := m.User
		applyUser(u, in.User)
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if in.User.Password != nil {
			if err := userdomain.ValidatePassword(*in.User.Password); err != nil {
				return nil, err
			}
			if passwordHash, err = s.hasher.Hash(*in.User.Password); err != nil {
				return nil, err
			}
		}
		u.UpdatedBy = tc.Actor()
	}
	m.UpdatedBy = tc.Actor()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if in.User != nil {
			if err := s.users.Update(ctx, m.User); err != nil {
				return db.UniqueError(err, identityservice.UserUniqueErrors)
			}
			if passwordHash != "" {
				if err := s.users.SetPassword(ctx, m.User.ID, passwordHash); err != nil {
					return err
				}
			}
		}
		if err := s.members.Update(ctx, m); err != nil {
			return db.UniqueError(err, uniqueErrors)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateRole changes another member's role within the caller's assignable range.
func (s *MemberService) UpdateRole(ctx context.Context, tc *tenancy.Context, id int64, rawRole string) (*domain.Member, error) {
	m, err := s.object(ctx, tc, id, authz.ActionUpdateRole)
	if err != nil {
		return nil, err
	}
	if m.ID == tc.Member.ID {
		return nil, apperr.Invalid("role", "Not allowed to change your own role.")
	}
	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return nil, err
	}
	if err := tc.Member.Lattice().CheckAssignable(role); err != nil {
		return nil, err
	}
	if err := s.members.UpdateRole(ctx, m.ID, role, tc.Actor()); err != nil {
		return nil, err
	}
	m.Role = role
	m.UpdatedBy = tc.Actor()
	return m, nil
}

// Delete deactivates the member.
func (s *MemberService) Delete(ctx context.Context, tc *tenancy.Context, id int64) error {
	m, err := s.object(ctx, tc, id, authz.ActionDelete)
	if err != nil {
		return err
	}
	return s.members.Deactivate(ctx, m.ID, tc.Actor())
}

// CreateWithInvite accepts the invitation identified by key. A new user is created unless the
// username belongs to the authenticated caller. The member, the user and the acceptance commit
// together; the caller is then logged in.
func (s *MemberService) CreateWithInvite(ctx context.Context, tc *tenancy.Context, key string, in InviteInput, ip string) (*InviteResult, error) {
	inv, err := s.invitations.GetOpen(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.invitations.CheckAcceptable(ctx, inv); err != nil {
		if invitationservice.IsAcceptanceFailure(err) {
			return nil, apperr.BadRequest(err.Error())
		}
		return nil, err
	}

	u := in.User
	existing, err := s.users.GetByUsername(ctx, u.Username)
	if err != nil {
		return nil, err
	}
	create := existing == nil
	if create {
		u.ID, u.IsActive, u.IsSuperuser = 0, true, false
		if err := u.Validate(); err != nil {
			return nil, err
		}
		if err := userdomain.ValidatePassword(in.Password); err != nil {
			return nil, err
		}
		if u.PasswordHash, err = s.hasher.Hash(in.Password); err != nil {
			return nil, err
		}
	} else {
		if !tc.Authenticated() || tc.UserID() != existing.ID {
			return nil, apperr.Invalid("username", "User with this username already exists.")
		}
		u = *existing
	}

	m := &domain.Member{OrgID: inv.OrgID, Nickname: in.Nickname, Role: inv.Role}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if create {
			if err := s.users.Create(ctx, &u); err != nil {
				return db.UniqueError(err, identityservice.UserUniqueErrors)
			}
			if err := s.users.MarkSelfCreated(ctx, u.ID); err != nil {
				return err
			}
		}
		m.UserID = u.ID
		m.CreatedBy, m.UpdatedBy = &u.ID, &u.ID
		if err := s.members.Create(ctx, m); err != nil {
			return db.UniqueError(err, uniqueErrors)
		}
		return s.invitations.Accept(ctx, inv, m.ID, false)
	})
	if err != nil {
		if invitationservice.IsAcceptanceFailure(err) {
			return nil, apperr.NotFound("Invitation not found or expired.")
		}
		return nil, err
	}
	m.User = &u
	tokens, err := s.issuer.Issue(ctx, &u, ip)
	if err != nil {
		return nil, err
	}
	return &InviteResult{Member: m, Tokens: tokens}, nil
}

func (s *MemberService) object(ctx context.Context, tc *tenancy.Context, id int64, action authz.Action) (*domain.Member, error) {
	if err := rbac.RequireTenantObject(tc); err != nil {
		return nil, err
	}
	m, err := s.members.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.IsActive {
		return nil, apperr.ErrNotFound
	}
	if err := s.authz.Member(ctx, tc, action, m); err != nil {
		return nil, err
	}
	return m, nil
}

func applyUser(u *userdomain.User, in *UserInput) {
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
}
