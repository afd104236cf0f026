// Package rbac holds the view-level gates: can the caller attempt this class of operation at all,
// before any concrete object is loaded.
package rbac

import (
	"net/http"

	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/tenancy"
)

// IsSafeMethod reports whether method only reads.
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// RequireAuthenticated ensures a principal is present.
func RequireAuthenticated(tc *tenancy.Context) error {
	if !tc.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	return nil
}

// RequireOrgMember ensures the caller is authenticated and an active member of the session organization.
func RequireOrgMember(tc *tenancy.Context) error {
	if err := RequireAuthenticated(tc); err != nil {
		return err
	}
	if !tc.HasMember() {
		return apperr.ErrForbidden
	}
	return nil
}

// RequireTenantObject gates detail routes. Without an active membership in the session organization
// no tenant object exists for the caller, so the result is not found rather than forbidden.
func RequireTenantObject(tc *tenancy.Context) error {
	if err := RequireAuthenticated(tc); err != nil {
		return err
	}
	if !tc.HasMember() {
		return apperr.ErrNotFound
	}
	return nil
}

// RequireOrgManager ensures the caller's membership carries manager permission or above.
func RequireOrgManager(tc *tenancy.Context) error {
	if err := RequireOrgMember(tc); err != nil {
		return err
	}
	if !tc.Member.HasManagerPermission() {
		return apperr.ErrForbidden
	}
	return nil
}

// RequireOrgAdmin ensures the caller's membership carries admin permission or above.
func RequireOrgAdmin(tc *tenancy.Context) error {
	if err := RequireOrgMember(tc); err != nil {
		return err
	}
	if !tc.Member.HasAdminPermission() {
		return apperr.ErrForbidden
	}
	return nil
}
