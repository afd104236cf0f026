package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tenantdesk/backend/internal/platform/httpx"
	"tenantdesk/backend/internal/team/domain"
	"tenantdesk/backend/internal/team/service"
	"tenantdesk/backend/internal/tenancy"
)

// Service is the team service surface used by the HTTP handler.
type Service interface {
	List(ctx context.Context, tc *tenancy.Context, f domain.Filter) ([]*domain.Team, error)
	Get(ctx context.Context, tc *tenancy.Context, id int64) (*domain.Team, error)
	Create(ctx context.Context, tc *tenancy.Context, in service.Input) (*domain.Team, error)
	Update(ctx context.Context, tc *tenancy.Context, id int64, in service.Input) (*domain.Team, error)
	Delete(ctx context.Context, tc *tenancy.Context, id int64) error
}

// Handler serves /api/teams/teams.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/choices", h.choices)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
	})
	return r
}

type teamJSON struct {
	ID           int64     `json:"id"`
	Organization int64     `json:"organization"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  *string   `json:"description"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	CreatedBy    *int64    `json:"created_by"`
	UpdatedBy    *int64    `json:"updated_by"`
}

func toJSON(t *domain.Team) teamJSON {
	return teamJSON{
		ID:           t.ID,
		Organization: t.OrgID,
		Name:         t.Name,
		Slug:         t.Slug,
		Description:  t.Description,
		IsActive:     t.IsActive,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		CreatedBy:    t.CreatedBy,
		UpdatedBy:    t.UpdatedBy,
	}
}

type teamBody struct {
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
}

func (b teamBody) input() service.Input {
	return service.Input{Name: b.Name, Slug: b.Slug, Description: b.Description}
}

func (h *Handler) filtered(w http.ResponseWriter, r *http.Request) ([]*domain.Team, bool) {
	q := r.URL.Query()
	f := domain.Filter{
		Name:         q.Get("name"),
		NameContains: q.Get("name__icontains"),
		Slug:         q.Get("slug"),
		SlugContains: q.Get("slug__icontains"),
	}
	teams, err := h.svc.List(r.Context(), tenancy.FromContext(r.Context()), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	return teams, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	teams, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]teamJSON, 0, len(teams))
	for _, t := range teams {
		out = append(out, toJSON(t))
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) choices(w http.ResponseWriter, r *http.Request) {
	teams, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]httpx.Choice, 0, len(teams))
	for _, t := range teams {
		out = append(out, httpx.Choice{Value: t.ID, Label: t.Name})
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	t, err := h.svc.Get(r.Context(), tenancy.FromContext(r.Context()), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(t))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body teamBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	t, err := h.svc.Create(r.Context(), tenancy.FromContext(r.Context()), body.input())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toJSON(t))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body teamBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	t, err := h.svc.Update(r.Context(), tenancy.FromContext(r.Context()), id, body.input())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(t))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), tenancy.FromContext(r.Context()), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}
