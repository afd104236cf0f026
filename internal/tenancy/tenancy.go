// Package tenancy resolves which organization the caller is acting as for a request.
//
// The access token names a session; the session row stores the active organization chosen through
// an explicit organization login. Membership is re-checked on every request so a removed member
// loses tenant context even while the session still names the organization.
package tenancy

import (
	"context"
	"strconv"
	"time"

	memberdomain "tenantdesk/backend/internal/membership/domain"
	orgdomain "tenantdesk/backend/internal/organization/domain"
	"tenantdesk/backend/internal/platform/apperr"
	sessiondomain "tenantdesk/backend/internal/session/domain"
	userdomain "tenantdesk/backend/internal/user/domain"
)

// TenantScoped is implemented by every entity that belongs to exactly one organization.
type TenantScoped interface {
	TenantID() int64
}

// Context is the resolved principal and tenancy for one request. The zero value is anonymous.
type Context struct {
	User    *userdomain.User
	Session *sessiondomain.Session
	// OrgID is the raw organization id stored in the session; 0 when none was selected.
	OrgID int64
	// Organization and Member are nil unless the user is an active member of OrgID.
	Organization *orgdomain.Org
	Member       *memberdomain.Member
}

// Authenticated reports whether a principal is present.
func (c *Context) Authenticated() bool { return c != nil && c.User != nil }

// UserID returns the principal id, or 0 when anonymous.
func (c *Context) UserID() int64 {
	if !c.Authenticated() {
		return 0
	}
	return c.User.ID
}

// Actor returns the principal id for created_by/updated_by columns, or nil when anonymous.
func (c *Context) Actor() *int64 {
	if !c.Authenticated() {
		return nil
	}
	id := c.User.ID
	return &id
}

// HasMember reports whether the caller has an active membership in the session organization.
func (c *Context) HasMember() bool { return c != nil && c.Member != nil }

// InTenant reports whether obj belongs to the session organization. No session organization never matches.
func (c *Context) InTenant(obj TenantScoped) bool {
	return c != nil && c.OrgID != 0 && obj != nil && obj.TenantID() == c.OrgID
}

type contextKey struct{}

// WithContext stores tc in ctx.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the tenancy context stored in ctx, or an anonymous one.
func FromContext(ctx context.Context) *Context {
	if tc, ok := ctx.Value(contextKey{}).(*Context); ok && tc != nil {
		return tc
	}
	return &Context{}
}

// UserGetter loads users by id.
type UserGetter interface {
	GetByID(ctx context.Context, id int64) (*userdomain.User, error)
}

// OrgGetter loads an organization only when the user is an active member of it.
type OrgGetter interface {
	GetActiveForUser(ctx context.Context, id, userID int64) (*orgdomain.Org, error)
}

// MemberGetter loads the active membership of a user in an organization.
type MemberGetter interface {
	GetActive(ctx context.Context, userID, orgID int64) (*memberdomain.Member, error)
}

// SessionStore reads sessions and switches their active organization.
type SessionStore interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	SetOrganization(ctx context.Context, id string, orgID int64) error
}

// Resolver builds a Context from an authenticated (user, session) pair.
type Resolver struct {
	users    UserGetter
	orgs     OrgGetter
	members  MemberGetter
	sessions SessionStore
	now      func() time.Time
}

// NewResolver returns a Resolver over the given stores.
func NewResolver(users UserGetter, orgs OrgGetter, members MemberGetter, sessions SessionStore) *Resolver {
	return &Resolver{users: users, orgs: orgs, members: members, sessions: sessions, now: time.Now}
}

// Resolve validates the session named by the access token and loads the caller's tenancy.
// A revoked or expired session, a session owned by another user, or an inactive user is unauthenticated.
func (r *Resolver) Resolve(ctx context.Context, userID, sessionID string) (*Context, error) {
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, apperr.Unauthenticated("Given token not valid for any token type")
	}
	sess, err := r.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Active(r.now()) || sess.UserID != uid {
		return nil, apperr.Unauthenticated("Session is no longer valid.")
	}
	user, err := r.users.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, apperr.Unauthenticated("User not found or inactive.")
	}

	tc := &Context{User: user, Session: sess, OrgID: sess.OrganizationID()}
	if tc.OrgID == 0 {
		return tc, nil
	}
	org, err := r.orgs.GetActiveForUser(ctx, tc.OrgID, uid)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return tc, nil
	}
	member, err := r.members.GetActive(ctx, uid, tc.OrgID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		tc.Organization = org
		tc.Member = member
	}
	return tc, nil
}

// LoginToOrganization makes orgID the caller's active organization. Only active members of an active
// organization may log in; everyone else gets "Organization not found.".
func (r *Resolver) LoginToOrganization(ctx context.Context, tc *Context, orgID int64) (*orgdomain.Org, error) {
	if !tc.Authenticated() || tc.Session == nil {
		return nil, apperr.ErrUnauthenticated
	}
	org, err := r.orgs.GetActiveForUser(ctx, orgID, tc.User.ID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, apperr.NotFound("Organization not found.")
	}
	member, err := r.members.GetActive(ctx, tc.User.ID, org.ID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, apperr.NotFound("Organization not found.")
	}
	if err := r.sessions.SetOrganization(ctx, tc.Session.ID, org.ID); err != nil {
		return nil, err
	}
	tc.Session.OrgID = &org.ID
	tc.OrgID = org.ID
	tc.Organization = org
	tc.Member = member
	return org, nil
}
