// Package authz makes the object-level decisions for tenant resources once a view-level gate in
// rbac has passed.
//
// Objects outside the caller's session organization are reported as not found so that other
// tenants' data never leaks. Objects inside the tenant that the caller may see but not change are
// forbidden. Changes the built-in rules allow are finally offered to the organization's Rego
// policies, which can only narrow them.
package authz

import (
	"context"

	invitationdomain "tenantdesk/backend/internal/invitation/domain"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	orgdomain "tenantdesk/backend/internal/organization/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/policy/engine"
	teamdomain "tenantdesk/backend/internal/team/domain"
	teammemberdomain "tenantdesk/backend/internal/teammember/domain"
	"tenantdesk/backend/internal/tenancy"
)

// Action is the operation class being authorized.
type Action string

const (
	ActionRead       Action = "read"
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionUpdateRole Action = "update_role"
	ActionDelete     Action = "delete"
	ActionLogin      Action = "login"
)

// Safe reports whether the action only reads.
func (a Action) Safe() bool { return a == ActionRead }

// Overlay can veto an unsafe action the built-in rules allowed.
type Overlay interface {
	Allow(ctx context.Context, req engine.Request) (bool, error)
}

// TeamRoleGetter loads the caller's own active membership of a team.
type TeamRoleGetter interface {
	GetActiveForMember(ctx context.Context, teamID, memberID int64) (*teammemberdomain.TeamMember, error)
}

// Engine decides object-level access.
type Engine struct {
	teamRoles TeamRoleGetter
	overlay   Overlay
}

// NewEngine returns an Engine. overlay may be nil.
func NewEngine(teamRoles TeamRoleGetter, overlay Overlay) *Engine {
	return &Engine{teamRoles: teamRoles, overlay: overlay}
}

// Organization authorizes action on org. Reads are open; login needs a principal (membership is
// checked by the tenancy resolver); changes need owner permission in the session organization.
func (e *Engine) Organization(ctx context.Context, tc *tenancy.Context, action Action, org *orgdomain.Org) error {
	switch action {
	case ActionRead:
		return nil
	case ActionLogin:
		if !tc.Authenticated() {
			return apperr.ErrUnauthenticated
		}
		return e.consult(ctx, tc, org.ID, "organization", action, map[string]any{"id": org.ID, "slug": org.Slug})
	}
	if !tc.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if !tc.InTenant(org) || !tc.HasMember() {
		return apperr.ErrNotFound
	}
	if !tc.Member.HasOwnerPermission() {
		return apperr.ErrForbidden
	}
	return e.consult(ctx, tc, org.ID, "organization", action, map[string]any{"id": org.ID, "slug": org.Slug})
}

// Member authorizes action on m. A member may edit only itself. Role changes follow the role
// threshold of the target, and deactivation needs admin permission unless it is the caller.
func (e *Engine) Member(ctx context.Context, tc *tenancy.Context, action Action, m *memberdomain.Member) error {
	if err := inTenant(tc, m); err != nil {
		return err
	}
	self := m.ID == tc.Member.ID
	switch action {
	case ActionRead:
		return nil
	case ActionUpdate:
		if !self {
			return apperr.ErrForbidden
		}
	case ActionUpdateRole:
		// Changing one's own role is rejected by validation, not here.
		if !self {
			var ok bool
			if m.Role == memberdomain.RoleOwner {
				ok = tc.Member.HasOwnerPermission()
			} else {
				ok = tc.Member.HasAdminPermission()
			}
			if !ok {
				return apperr.ErrForbidden
			}
		}
	case ActionDelete:
		if !self && !tc.Member.HasAdminPermission() {
			return apperr.ErrForbidden
		}
	default:
		return apperr.ErrForbidden
	}
	return e.consult(ctx, tc, m.OrgID, "member", action, map[string]any{
		"id": m.ID, "user_id": m.UserID, "role": string(m.Role), "self": self,
	})
}

// Invitation authorizes action on inv. Changing an invitation needs permission to grant its role.
func (e *Engine) Invitation(ctx context.Context, tc *tenancy.Context, action Action, inv *invitationdomain.Invitation) error {
	if err := inTenant(tc, inv); err != nil {
		return err
	}
	if action.Safe() {
		return nil
	}
	if !tc.Member.Lattice().Grants(inv.Role) {
		return apperr.ErrForbidden
	}
	return e.consult(ctx, tc, inv.OrgID, "invitation", action, map[string]any{
		"email": inv.Email, "role": string(inv.Role),
	})
}

// Team authorizes action on t. Organization managers may change any team; otherwise the caller
// needs admin permission within the team itself.
func (e *Engine) Team(ctx context.Context, tc *tenancy.Context, action Action, t *teamdomain.Team) error {
	if err := inTenant(tc, t); err != nil {
		return err
	}
	if action.Safe() {
		return nil
	}
	if !tc.Member.HasManagerPermission() {
		tm, err := e.teamRoles.GetActiveForMember(ctx, t.ID, tc.Member.ID)
		if err != nil {
			return err
		}
		if tm == nil {
			return apperr.ErrForbidden
		}
		if tm.Member == nil {
			tm.Member = tc.Member
		}
		if !tm.HasAdminPermission() {
			return apperr.ErrForbidden
		}
	}
	return e.consult(ctx, tc, t.OrgID, "team", action, map[string]any{"id": t.ID, "slug": t.Slug})
}

// TeamMember authorizes action on tm. A member may always act on its own row; other rows need
// organization manager permission to change.
func (e *Engine) TeamMember(ctx context.Context, tc *tenancy.Context, action Action, tm *teammemberdomain.TeamMember) error {
	if err := inTenant(tc, tm); err != nil {
		return err
	}
	self := tm.MemberID == tc.Member.ID
	if action.Safe() {
		return nil
	}
	if !self && !tc.Member.HasManagerPermission() {
		return apperr.ErrForbidden
	}
	return e.consult(ctx, tc, tm.TenantID(), "team_member", action, map[string]any{
		"id": tm.ID, "team_id": tm.TeamID, "member_id": tm.MemberID, "role": string(tm.Role), "self": self,
	})
}

// Create offers a create of resource in the session organization to the policy overlay.
func (e *Engine) Create(ctx context.Context, tc *tenancy.Context, resource string, object map[string]any) error {
	return e.consult(ctx, tc, tc.OrgID, resource, ActionCreate, object)
}

func inTenant(tc *tenancy.Context, obj tenancy.TenantScoped) error {
	if !tc.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	if !tc.HasMember() || !tc.InTenant(obj) {
		return apperr.ErrNotFound
	}
	return nil
}

func (e *Engine) consult(ctx context.Context, tc *tenancy.Context, orgID int64, resource string, action Action, object map[string]any) error {
	if e.overlay == nil {
		return nil
	}
	req := engine.Request{
		OrgID:    orgID,
		Resource: resource,
		Action:   string(action),
		UserID:   tc.UserID(),
		Object:   object,
	}
	if tc.User != nil {
		req.IsSuperuser = tc.User.IsSuperuser
	}
	if tc.Member != nil && tc.Member.OrgID == orgID {
		req.MemberID = tc.Member.ID
		req.Role = string(tc.Member.Role)
	}
	ok, err := e.overlay.Allow(ctx, req)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("Denied by organization policy.")
	}
	return nil
}
