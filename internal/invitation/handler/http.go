package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tenantdesk/backend/internal/invitation/domain"
	"tenantdesk/backend/internal/invitation/service"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/httpx"
	"tenantdesk/backend/internal/tenancy"
)

// Service is the invitation service surface used by the HTTP handler.
type Service interface {
	List(ctx context.Context, tc *tenancy.Context, f domain.Filter) ([]*domain.Invitation, error)
	Get(ctx context.Context, tc *tenancy.Context, key string) (*domain.Invitation, error)
	Create(ctx context.Context, tc *tenancy.Context, in service.CreateInput) (*domain.Invitation, error)
	Update(ctx context.Context, tc *tenancy.Context, key string, in service.UpdateInput) (*domain.Invitation, error)
	Delete(ctx context.Context, tc *tenancy.Context, key string) error
}

// Handler serves /api/accounts/invitations. Invitations are addressed by key.
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
	r.Route("/{key}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
	})
	return r
}

type invitationJSON struct {
	Key          string            `json:"key"`
	Email        string            `json:"email"`
	Role         memberdomain.Role `json:"role"`
	ExpiredAt    *time.Time        `json:"expired_at"`
	IsExpired    bool              `json:"is_expired"`
	IsAccepted   bool              `json:"is_accepted"`
	Member       *int64            `json:"member"`
	Organization int64             `json:"organization"`
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	CreatedBy    *int64            `json:"created_by"`
	UpdatedBy    *int64            `json:"updated_by"`
}

func toJSON(i *domain.Invitation) invitationJSON {
	return invitationJSON{
		Key:          i.Key,
		Email:        i.Email,
		Role:         i.Role,
		ExpiredAt:    i.ExpiredAt,
		IsExpired:    i.IsExpired,
		IsAccepted:   i.IsAccepted,
		Member:       i.MemberID,
		Organization: i.OrgID,
		IsActive:     i.IsActive,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
		CreatedBy:    i.CreatedBy,
		UpdatedBy:    i.UpdatedBy,
	}
}

type createBody struct {
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	ExpiredAt *time.Time `json:"expired_at"`
	IsExpired bool       `json:"is_expired"`
}

type updateBody struct {
	Email     *string                   `json:"email"`
	Role      *string                   `json:"role"`
	ExpiredAt httpx.Optional[time.Time] `json:"expired_at"`
	IsExpired *bool                     `json:"is_expired"`
}

func filterFrom(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	f := domain.Filter{
		Email:         q.Get("email"),
		EmailContains: q.Get("email__icontains"),
		Roles:         httpx.QueryIn(q, "role"),
	}
	var err error
	if f.IsAccepted, err = httpx.QueryBool(q, "is_accepted"); err != nil {
		return f, err
	}
	if f.IsExpired, err = httpx.QueryBool(q, "is_expired"); err != nil {
		return f, err
	}
	if f.ExpiredAt, err = httpx.QueryTime(q, "expired_at"); err != nil {
		return f, err
	}
	if f.ExpiredAtGT, err = httpx.QueryTime(q, "expired_at__gt"); err != nil {
		return f, err
	}
	if f.ExpiredAtLT, err = httpx.QueryTime(q, "expired_at__lt"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) filtered(w http.ResponseWriter, r *http.Request) ([]*domain.Invitation, bool) {
	f, err := filterFrom(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	invs, err := h.svc.List(r.Context(), tenancy.FromContext(r.Context()), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	return invs, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	invs, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]invitationJSON, 0, len(invs))
	for _, i := range invs {
		out = append(out, toJSON(i))
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) choices(w http.ResponseWriter, r *http.Request) {
	invs, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]httpx.Choice, 0, len(invs))
	for _, i := range invs {
		out = append(out, httpx.Choice{Value: i.Key, Label: i.Email})
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), tenancy.FromContext(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(inv))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	inv, err := h.svc.Create(r.Context(), tenancy.FromContext(r.Context()), service.CreateInput{
		Email:     body.Email,
		Role:      body.Role,
		ExpiredAt: body.ExpiredAt,
		IsExpired: body.IsExpired,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toJSON(inv))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var body updateBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	inv, err := h.svc.Update(r.Context(), tenancy.FromContext(r.Context()), chi.URLParam(r, "key"), service.UpdateInput{
		Email:        body.Email,
		Role:         body.Role,
		ExpiredAtSet: body.ExpiredAt.Set,
		ExpiredAt:    body.ExpiredAt.Value,
		IsExpired:    body.IsExpired,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(inv))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), tenancy.FromContext(r.Context()), chi.URLParam(r, "key")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}
