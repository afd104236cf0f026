package rbac

import (
	"errors"
	"net/http"
	"testing"

	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/tenancy"
	userdomain "tenantdesk/backend/internal/user/domain"
)

func caller(role memberdomain.Role) *tenancy.Context {
	u := &userdomain.User{ID: 1, Username: "alice", IsActive: true}
	tc := &tenancy.Context{User: u, OrgID: 10}
	if role != "" {
		tc.Member = &memberdomain.Member{ID: 100, UserID: 1, OrgID: 10, Role: role, IsActive: true, User: u}
	}
	return tc
}

func TestGates(t *testing.T) {
	testCases := []struct {
		name string
		gate func(*tenancy.Context) error
		tc   *tenancy.Context
		want error
	}{
		{"anonymous authenticated", RequireAuthenticated, &tenancy.Context{}, apperr.ErrUnauthenticated},
		{"user authenticated", RequireAuthenticated, caller(""), nil},
		{"anonymous member", RequireOrgMember, &tenancy.Context{}, apperr.ErrUnauthenticated},
		{"no membership", RequireOrgMember, caller(""), apperr.ErrForbidden},
		{"member", RequireOrgMember, caller(memberdomain.RoleMember), nil},
		{"member as manager", RequireOrgManager, caller(memberdomain.RoleMember), apperr.ErrForbidden},
		{"manager", RequireOrgManager, caller(memberdomain.RoleManager), nil},
		{"owner as manager", RequireOrgManager, caller(memberdomain.RoleOwner), nil},
		{"manager as admin", RequireOrgAdmin, caller(memberdomain.RoleManager), apperr.ErrForbidden},
		{"admin", RequireOrgAdmin, caller(memberdomain.RoleAdmin), nil},
		{"no membership as admin", RequireOrgAdmin, caller(""), apperr.ErrForbidden},
		{"anonymous object", RequireTenantObject, &tenancy.Context{}, apperr.ErrUnauthenticated},
		{"object without session org", RequireTenantObject, caller(""), apperr.ErrNotFound},
		{"object as member", RequireTenantObject, caller(memberdomain.RoleMember), nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.gate(tc.tc)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("want nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRequireOrgAdmin_SuperuserMember(t *testing.T) {
	tc := caller(memberdomain.RoleMember)
	tc.User.IsSuperuser = true
	if err := RequireOrgAdmin(tc); err != nil {
		t.Errorf("superuser-backed member should pass admin gate: %v", err)
	}
}

func TestIsSafeMethod(t *testing.T) {
	for _, m := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		if !IsSafeMethod(m) {
			t.Errorf("%s should be safe", m)
		}
	}
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		if IsSafeMethod(m) {
			t.Errorf("%s should not be safe", m)
		}
	}
}
