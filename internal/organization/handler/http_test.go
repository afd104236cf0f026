package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantdesk/backend/internal/organization/domain"
	"tenantdesk/backend/internal/organization/service"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/tenancy"
	userdomain "tenantdesk/backend/internal/user/domain"
)

type stubService struct {
	orgs       []*domain.Org
	lastFilter domain.Filter
	lastInput  service.Input
	lastTC     *tenancy.Context
	err        error
	deleted    int64
	loggedIn   int64
}

func (s *stubService) List(_ context.Context, f domain.Filter) ([]*domain.Org, error) {
	s.lastFilter = f
	return s.orgs, s.err
}

func (s *stubService) Get(_ context.Context, id int64) (*domain.Org, error) {
	for _, o := range s.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *stubService) Create(_ context.Context, tc *tenancy.Context, in service.Input) (*domain.Org, error) {
	s.lastTC, s.lastInput = tc, in
	if s.err != nil {
		return nil, s.err
	}
	owner := int64(100)
	return &domain.Org{ID: 9, Name: *in.Name, Slug: *in.Slug, OwnerID: &owner, IsActive: true}, nil
}

func (s *stubService) Update(_ context.Context, _ *tenancy.Context, id int64, in service.Input) (*domain.Org, error) {
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Org{ID: id, Name: *in.Name, Slug: "acme", IsActive: true}, nil
}

func (s *stubService) Delete(_ context.Context, _ *tenancy.Context, id int64) error {
	s.deleted = id
	return s.err
}

func (s *stubService) Login(_ context.Context, _ *tenancy.Context, id int64) (*domain.Org, error) {
	s.loggedIn = id
	return &domain.Org{ID: id}, s.err
}

func serve(h *Handler, tc *tenancy.Context, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenancy.WithContext(req.Context(), tc)))
		})
	})
	r.Mount("/organizations", h.Routes())
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func alice() *tenancy.Context {
	return &tenancy.Context{User: &userdomain.User{ID: 7, Username: "alice", IsActive: true}}
}

func TestList_FiltersAndChoices(t *testing.T) {
	svc := &stubService{orgs: []*domain.Org{
		{ID: 2, Name: "Globex", Slug: "globex", IsActive: true},
		{ID: 1, Name: "Acme", Slug: "acme", IsActive: true},
	}}
	h := NewHandler(svc)

	rec := serve(h, nil, http.MethodGet, "/organizations?name__icontains=ac&slug=acme&is_active=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ac", svc.lastFilter.NameContains)
	assert.Equal(t, "acme", svc.lastFilter.Slug)
	require.NotNil(t, svc.lastFilter.IsActive)
	assert.True(t, *svc.lastFilter.IsActive)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Contains(t, rec.Body.String(), `"slug":"globex"`)

	rec = serve(h, nil, http.MethodGet, "/organizations/choices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2,"next":null,"previous":null,"results":[{"value":2,"label":"Globex"},{"value":1,"label":"Acme"}]}`, rec.Body.String())

	rec = serve(h, nil, http.MethodGet, "/organizations?is_active=perhaps", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAndGet(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(svc)
	tc := alice()

	rec := serve(h, tc, http.MethodPost, "/organizations", `{"name":"Acme","slug":"acme"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Same(t, tc, svc.lastTC)
	assert.Contains(t, rec.Body.String(), `"owner":100`)
	assert.Contains(t, rec.Body.String(), `"name":"Acme"`)

	svc.err = apperr.Invalid("slug", "organization with this slug already exists.")
	rec = serve(h, tc, http.MethodPost, "/organizations", `{"name":"Acme","slug":"acme"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"slug":["organization with this slug already exists."]}`, rec.Body.String())

	rec = serve(h, tc, http.MethodPost, "/organizations", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.orgs = []*domain.Org{{ID: 3, Name: "Acme", Slug: "acme", IsActive: true}}
	rec = serve(h, nil, http.MethodGet, "/organizations/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":3`)

	rec = serve(h, nil, http.MethodGet, "/organizations/4", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateDeleteLogin(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(svc)
	tc := alice()

	rec := serve(h, tc, http.MethodPut, "/organizations/3", `{"name":"Acme Inc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastInput.Slug, "absent fields stay nil")
	assert.Contains(t, rec.Body.String(), `"name":"Acme Inc"`)

	svc.err = apperr.ErrForbidden
	rec = serve(h, tc, http.MethodPut, "/organizations/3", `{"name":"x"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	svc.err = nil
	rec = serve(h, tc, http.MethodDelete, "/organizations/3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(3), svc.deleted)

	rec = serve(h, tc, http.MethodPost, "/organizations/3/login", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"detail":"Logged in to organization."}`, rec.Body.String())
	assert.Equal(t, int64(3), svc.loggedIn)

	svc.err = apperr.NotFound("Organization not found.")
	rec = serve(h, tc, http.MethodPost, "/organizations/3/login", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Organization not found."}`, rec.Body.String())

	rec = serve(h, tc, http.MethodPost, "/organizations/abc/login", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
