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

	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/team/domain"
	"tenantdesk/backend/internal/team/service"
	"tenantdesk/backend/internal/tenancy"
)

type stubService struct {
	teams      []*domain.Team
	lastFilter domain.Filter
	lastInput  service.Input
	err        error
}

func (s *stubService) List(_ context.Context, _ *tenancy.Context, f domain.Filter) ([]*domain.Team, error) {
	s.lastFilter = f
	return s.teams, s.err
}

func (s *stubService) Get(_ context.Context, _ *tenancy.Context, id int64) (*domain.Team, error) {
	for _, t := range s.teams {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *stubService) Create(_ context.Context, _ *tenancy.Context, in service.Input) (*domain.Team, error) {
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Team{ID: 4, OrgID: 1, Name: *in.Name, Slug: *in.Slug, Description: in.Description, IsActive: true}, nil
}

func (s *stubService) Update(_ context.Context, _ *tenancy.Context, id int64, in service.Input) (*domain.Team, error) {
	s.lastInput = in
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Team{ID: id, OrgID: 1, Name: "Core", Slug: *in.Slug}, nil
}

func (s *stubService) Delete(context.Context, *tenancy.Context, int64) error { return s.err }

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Mount("/teams", h.Routes())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestTeamRoutes(t *testing.T) {
	svc := &stubService{teams: []*domain.Team{{ID: 4, OrgID: 1, Name: "Core", Slug: "core", IsActive: true}}}
	h := NewHandler(svc)

	rec := serve(h, http.MethodGet, "/teams?slug__icontains=co", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "co", svc.lastFilter.SlugContains)
	assert.Contains(t, rec.Body.String(), `"description":null`)

	rec = serve(h, http.MethodGet, "/teams/choices", "")
	assert.JSONEq(t, `{"count":1,"next":null,"previous":null,"results":[{"value":4,"label":"Core"}]}`, rec.Body.String())

	rec = serve(h, http.MethodPost, "/teams", `{"name":"Core","slug":"core","description":"platform"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"description":"platform"`)

	rec = serve(h, http.MethodPut, "/teams/4", `{"slug":"core-2"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastInput.Name)

	svc.err = apperr.ErrForbidden
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodDelete, "/teams/4", "").Code)
	svc.err = nil
	assert.Equal(t, http.StatusNoContent, serve(h, http.MethodDelete, "/teams/4", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/teams/5", "").Code)
}

func TestTeamRoutes_UnsupportedMethod(t *testing.T) {
	rec := serve(NewHandler(&stubService{}), http.MethodPost, "/teams/4", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
