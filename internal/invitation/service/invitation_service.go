package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"tenantdesk/backend/internal/authz"
	"tenantdesk/backend/internal/db"
	"tenantdesk/backend/internal/invitation/domain"
	"tenantdesk/backend/internal/mail"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	orgdomain "tenantdesk/backend/internal/organization/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/platform/metrics"
	"tenantdesk/backend/internal/platform/rbac"
	"tenantdesk/backend/internal/tenancy"
)

const duplicateMessage = "An invitation with this email already exists."

// InvitationRepo is the minimal invitation repository needed by the service.
type InvitationRepo interface {
	GetByKey(ctx context.Context, orgID int64, key string) (*domain.Invitation, error)
	GetOpenByKey(ctx context.Context, key string, now time.Time) (*domain.Invitation, error)
	List(ctx context.Context, f domain.Filter) ([]*domain.Invitation, error)
	Create(ctx context.Context, inv *domain.Invitation) error
	Update(ctx context.Context, inv *domain.Invitation) (bool, error)
	MarkExpired(ctx context.Context, id int64) error
	MarkAccepted(ctx context.Context, id, memberID int64) (bool, error)
	Deactivate(ctx context.Context, id int64, updatedBy *int64) error
	ExistsPending(ctx context.Context, orgID int64, email string, now time.Time) (bool, error)
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// MemberChecker reports existing memberships by email.
type MemberChecker interface {
	ExistsActiveByEmail(ctx context.Context, orgID int64, email string) (bool, error)
}

// CreateInput carries the fields of a new invitation.
type CreateInput struct {
	Email     string
	Role      string
	ExpiredAt *time.Time
	IsExpired bool
}

// UpdateInput carries changed fields. ExpiredAtSet distinguishes an explicit null from absence.
type UpdateInput struct {
	Email        *string
	Role         *string
	ExpiredAtSet bool
	ExpiredAt    *time.Time
	IsExpired    *bool
}

// InvitationService implements invitation management and the acceptance state machine.
type InvitationService struct {
	invitations InvitationRepo
	members     MemberChecker
	authz       *authz.Engine
	queue       mail.Queue
	inviteURL   string
	metrics     *metrics.Registry
	now         func() time.Time
}

// NewInvitationService returns an InvitationService. queue and reg may be nil.
func NewInvitationService(invitations InvitationRepo, members MemberChecker, engine *authz.Engine,
	queue mail.Queue, inviteURL string, reg *metrics.Registry) *InvitationService {
	return &InvitationService{
		invitations: invitations,
		members:     members,
		authz:       engine,
		queue:       queue,
		inviteURL:   inviteURL,
		metrics:     reg,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// List returns the session organization's active invitations matching f.
func (s *InvitationService) List(ctx context.Context, tc *tenancy.Context, f domain.Filter) ([]*domain.Invitation, error) {
	if err := rbac.RequireOrgAdmin(tc); err != nil {
		return nil, err
	}
	f.OrgID = tc.OrgID
	return s.invitations.List(ctx, f)
}

// Get returns the invitation with key in the session organization.
func (s *InvitationService) Get(ctx context.Context, tc *tenancy.Context, key string) (*domain.Invitation, error) {
	return s.object(ctx, tc, key, authz.ActionRead)
}

// Create invites email into the session organization.
func (s *InvitationService) Create(ctx context.Context, tc *tenancy.Context, in CreateInput) (*domain.Invitation, error) {
	if err := rbac.RequireOrgAdmin(tc); err != nil {
		return nil, err
	}
	role, err := memberdomain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	inv := &domain.Invitation{
		OrgID:     tc.OrgID,
		Email:     in.Email,
		Role:      role,
		ExpiredAt: in.ExpiredAt,
		IsExpired: in.IsExpired,
		CreatedBy: tc.Actor(),
		UpdatedBy: tc.Actor(),
	}
	now := s.now()
	if err := inv.Validate(now); err != nil {
		return nil, err
	}
	if err := tc.Member.Lattice().CheckAssignable(inv.Role); err != nil {
		return nil, err
	}
	pending, err := s.invitations.ExistsPending(ctx, inv.OrgID, inv.Email, now)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, apperr.Invalid("email", duplicateMessage)
	}
	if err := s.authz.Create(ctx, tc, "invitation", map[string]any{"email": inv.Email, "role": string(inv.Role)}); err != nil {
		return nil, err
	}
	inv.EnsureKey()
	if err := s.invitations.Create(ctx, inv); err != nil {
		return nil, db.UniqueError(err, nil)
	}
	s.notify(ctx, tc.Organization, inv)
	return inv, nil
}

// Update changes a pending invitation. The caller must be allowed to grant both the current and the
// new role. is_expired only moves from false to true.
func (s *InvitationService) Update(ctx context.Context, tc *tenancy.Context, key string, in UpdateInput) (*domain.Invitation, error) {
	inv, err := s.object(ctx, tc, key, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if inv.State(now) != domain.StatePending {
		return nil, apperr.Invalid(apperr.NonFieldErrors, domain.ErrNotEditable.Error())
	}
	prevEmail := inv.Email
	if in.Email != nil {
		candidate := domain.Invitation{Email: *in.Email, Role: inv.Role}
		if err := candidate.Validate(now); err != nil {
			return nil, err
		}
		inv.Email = candidate.Email
	}
	if in.Role != nil {
		role, err := memberdomain.ParseRole(*in.Role)
		if err != nil {
			return nil, err
		}
		if err := tc.Member.Lattice().CheckAssignable(role); err != nil {
			return nil, err
		}
		inv.Role = role
	}
	if in.ExpiredAtSet {
		inv.ExpiredAt = in.ExpiredAt
		if err := domain.ValidateExpiry(inv.ExpiredAt, now); err != nil {
			return nil, err
		}
	}
	if in.IsExpired != nil && *in.IsExpired {
		inv.IsExpired = true
	}
	if !strings.EqualFold(prevEmail, inv.Email) {
		pending, err := s.invitations.ExistsPending(ctx, inv.OrgID, inv.Email, now)
		if err != nil {
			return nil, err
		}
		if pending {
			return nil, apperr.Invalid("email", duplicateMessage)
		}
	}
	inv.UpdatedBy = tc.Actor()
	ok, err := s.invitations.Update(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Invalid(apperr.NonFieldErrors, domain.ErrNotEditable.Error())
	}
	return inv, nil
}

// Delete deactivates the invitation.
func (s *InvitationService) Delete(ctx context.Context, tc *tenancy.Context, key string) error {
	inv, err := s.object(ctx, tc, key, authz.ActionDelete)
	if err != nil {
		return err
	}
	return s.invitations.Deactivate(ctx, inv.ID, tc.Actor())
}

// GetOpen returns an acceptable-looking invitation for key in any organization, or
// "Invitation not found or expired.".
func (s *InvitationService) GetOpen(ctx context.Context, key string) (*domain.Invitation, error) {
	notFound := apperr.NotFound("Invitation not found or expired.")
	if _, err := uuid.Parse(key); err != nil {
		return nil, notFound
	}
	inv, err := s.invitations.GetOpenByKey(ctx, key, s.now())
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, notFound
	}
	return inv, nil
}

// CheckAcceptable fails when the invitation is expired (persisting a lapsed expiry) or when a
// user with its email is already an active member of the organization.
func (s *InvitationService) CheckAcceptable(ctx context.Context, inv *domain.Invitation) error {
	flipped, err := inv.CheckExpiry(s.now())
	if flipped {
		if merr := s.invitations.MarkExpired(ctx, inv.ID); merr != nil {
			return merr
		}
	}
	if err != nil {
		return err
	}
	exists, err := s.members.ExistsActiveByEmail(ctx, inv.OrgID, inv.Email)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrAlreadyMember
	}
	return nil
}

// Accept links the invitation to memberID. With check, acceptability is verified first.
// A concurrent acceptance or expiry makes it fail without touching the existing link.
func (s *InvitationService) Accept(ctx context.Context, inv *domain.Invitation, memberID int64, check bool) error {
	if check {
		if err := s.CheckAcceptable(ctx, inv); err != nil {
			return err
		}
	}
	if err := inv.Accept(memberID); err != nil {
		return err
	}
	ok, err := s.invitations.MarkAccepted(ctx, inv.ID, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyAccepted
	}
	return nil
}

// ExpireOverdue flips every lapsed pending invitation to expired and returns how many changed.
func (s *InvitationService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.invitations.ExpireOverdue(ctx, s.now())
	s.metrics.ObserveSweep(n, err)
	return n, err
}

// IsAcceptanceFailure reports whether err is one of the acceptability outcomes shown to callers.
func IsAcceptanceFailure(err error) bool {
	return errors.Is(err, domain.ErrExpired) || errors.Is(err, domain.ErrAlreadyMember) || errors.Is(err, domain.ErrAlreadyAccepted)
}

func (s *InvitationService) object(ctx context.Context, tc *tenancy.Context, key string, action authz.Action) (*domain.Invitation, error) {
	if err := rbac.RequireTenantObject(tc); err != nil {
		return nil, err
	}
	if err := rbac.RequireOrgAdmin(tc); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(key); err != nil {
		return nil, apperr.ErrNotFound
	}
	inv, err := s.invitations.GetByKey(ctx, tc.OrgID, key)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperr.ErrNotFound
	}
	if err := s.authz.Invitation(ctx, tc, action, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvitationService) notify(ctx context.Context, org *orgdomain.Org, inv *domain.Invitation) {
	if s.queue == nil {
		return
	}
	orgName := ""
	if org != nil {
		orgName = org.Name
	}
	link := s.inviteURL + "?" + url.Values{"key": {inv.Key}}.Encode()
	msg, err := mail.Invitation(inv.Email, orgName, inv.Role.Label(), link, inv.ExpiredAt)
	if err == nil {
		err = s.queue.Enqueue(ctx, msg)
	}
	if err != nil {
		logger.Ctx(ctx).Warnw("invitation mail enqueue failed", "org_id", inv.OrgID, "error", err)
	}
}
