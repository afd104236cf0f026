package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthhandler "tenantdesk/backend/internal/health/handler"
	"tenantdesk/backend/internal/organization/domain"
	organizationhandler "tenantdesk/backend/internal/organization/handler"
	"tenantdesk/backend/internal/organization/service"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/metrics"
	"tenantdesk/backend/internal/security"
	"tenantdesk/backend/internal/tenancy"
)

type stubOrgs struct{ loginTC *tenancy.Context }

func (s *stubOrgs) List(context.Context, domain.Filter) ([]*domain.Org, error) {
	return []*domain.Org{{ID: 1, Name: "Acme", Slug: "acme", IsActive: true}}, nil
}

func (s *stubOrgs) Get(_ context.Context, id int64) (*domain.Org, error) {
	if id != 1 {
		return nil, apperr.ErrNotFound
	}
	return &domain.Org{ID: 1, Name: "Acme", Slug: "acme", IsActive: true}, nil
}

func (s *stubOrgs) Create(context.Context, *tenancy.Context, service.Input) (*domain.Org, error) {
	return nil, apperr.ErrUnauthenticated
}

func (s *stubOrgs) Update(context.Context, *tenancy.Context, int64, service.Input) (*domain.Org, error) {
	return nil, apperr.ErrForbidden
}

func (s *stubOrgs) Delete(context.Context, *tenancy.Context, int64) error { return apperr.ErrForbidden }

func (s *stubOrgs) Login(_ context.Context, tc *tenancy.Context, id int64) (*domain.Org, error) {
	s.loginTC = tc
	return &domain.Org{ID: id}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *stubOrgs, *recordingAudit, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	orgs := &stubOrgs{}
	sink := &recordingAudit{}
	h := NewRouter(Deps{
		Tokens:        tokens,
		Resolver:      &stubResolver{},
		Audit:         sink,
		Metrics:       metrics.New(),
		Health:        healthhandler.NewHandler(nil, nil),
		Organizations: organizationhandler.NewHandler(orgs),
	})
	return h, orgs, sink, tokens
}

func TestRouter_TrailingSlashAndAnonymousRead(t *testing.T) {
	h, _, _, _ := newTestRouter(t)
	for _, target := range []string{"/api/accounts/organizations", "/api/accounts/organizations/", "/api/accounts/organizations/1/"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}
}

func TestRouter_AuthenticatedLoginIsAudited(t *testing.T) {
	h, orgs, sink, tokens := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/accounts/organizations/1/login/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken(t, tokens))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, orgs.loginTC)
	assert.Equal(t, int64(7), orgs.loginTC.UserID())
	require.Len(t, sink.events, 1)
	assert.Equal(t, "login", sink.events[0].Action)
	assert.Equal(t, "organization", sink.events[0].Resource)
	assert.Equal(t, int64(7), sink.events[0].UserID)
}

func TestRouter_InvalidTokenRejected(t *testing.T) {
	h, _, sink, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/accounts/organizations/1", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, sink.events, 1, "rejected writes are still audited")
	assert.Equal(t, http.StatusUnauthorized, sink.events[0].Metadata["status"])
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	h, _, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"SERVING"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tenantdesk_http_requests_total"))
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)
}

func TestRouter_UnmountedResourceIs404(t *testing.T) {
	h, _, _, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/teams/teams", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/accounts/organizations", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
