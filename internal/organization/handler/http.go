package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tenantdesk/backend/internal/organization/domain"
	"tenantdesk/backend/internal/organization/service"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/httpx"
	"tenantdesk/backend/internal/tenancy"
)

// Service is the organization service surface used by the HTTP handler.
type Service interface {
	List(ctx context.Context, f domain.Filter) ([]*domain.Org, error)
	Get(ctx context.Context, id int64) (*domain.Org, error)
	Create(ctx context.Context, tc *tenancy.Context, in service.Input) (*domain.Org, error)
	Update(ctx context.Context, tc *tenancy.Context, id int64, in service.Input) (*domain.Org, error)
	Delete(ctx context.Context, tc *tenancy.Context, id int64) error
	Login(ctx context.Context, tc *tenancy.Context, id int64) (*domain.Org, error)
}

// Handler serves /api/accounts/organizations.
type Handler struct {
	svc Service
}

// NewHandler returns an organization Handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the organization routes, relative to their mount point.
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
		r.Post("/login", h.login)
	})
	return r
}

type orgJSON struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Owner     *int64    `json:"owner"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy *int64    `json:"created_by"`
	UpdatedBy *int64    `json:"updated_by"`
}

func toJSON(o *domain.Org) orgJSON {
	return orgJSON{
		ID:        o.ID,
		Name:      o.Name,
		Slug:      o.Slug,
		Owner:     o.OwnerID,
		IsActive:  o.IsActive,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		CreatedBy: o.CreatedBy,
		UpdatedBy: o.UpdatedBy,
	}
}

type orgBody struct {
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

func (b orgBody) input() service.Input { return service.Input{Name: b.Name, Slug: b.Slug} }

func filterFrom(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	active, err := httpx.QueryBool(q, "is_active")
	if err != nil {
		return domain.Filter{}, err
	}
	return domain.Filter{
		Name:         q.Get("name"),
		NameContains: q.Get("name__icontains"),
		Slug:         q.Get("slug"),
		SlugContains: q.Get("slug__icontains"),
		IsActive:     active,
	}, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgs, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]orgJSON, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, toJSON(o))
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) choices(w http.ResponseWriter, r *http.Request) {
	orgs, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]httpx.Choice, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, httpx.Choice{Value: o.ID, Label: o.Name})
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) filtered(w http.ResponseWriter, r *http.Request) ([]*domain.Org, bool) {
	f, err := filterFrom(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	orgs, err := h.svc.List(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	return orgs, true
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(o))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body orgBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	o, err := h.svc.Create(r.Context(), tenancy.FromContext(r.Context()), body.input())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toJSON(o))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body orgBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	o, err := h.svc.Update(r.Context(), tenancy.FromContext(r.Context()), id, body.input())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(o))
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

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, apperr.NotFound("Organization not found."))
		return
	}
	if _, err := h.svc.Login(r.Context(), tenancy.FromContext(r.Context()), id); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, "Logged in to organization.")
}
