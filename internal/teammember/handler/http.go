package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/httpx"
	"tenantdesk/backend/internal/teammember/domain"
	"tenantdesk/backend/internal/teammember/service"
	"tenantdesk/backend/internal/tenancy"
)

// Service is the team member service surface used by the HTTP handler.
type Service interface {
	List(ctx context.Context, tc *tenancy.Context, f domain.Filter) ([]*domain.TeamMember, error)
	Get(ctx context.Context, tc *tenancy.Context, id int64) (*domain.TeamMember, error)
	Create(ctx context.Context, tc *tenancy.Context, in service.CreateInput) (*domain.TeamMember, error)
	Update(ctx context.Context, tc *tenancy.Context, id int64, in service.UpdateInput) (*domain.TeamMember, error)
	Delete(ctx context.Context, tc *tenancy.Context, id int64) error
}

// Handler serves /api/teams/team-members.
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

type teamMemberJSON struct {
	ID        int64             `json:"id"`
	Team      int64             `json:"team"`
	Member    int64             `json:"member"`
	Role      memberdomain.Role `json:"role"`
	Label     string            `json:"label"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	CreatedBy *int64            `json:"created_by"`
	UpdatedBy *int64            `json:"updated_by"`
}

func toJSON(tm *domain.TeamMember) teamMemberJSON {
	return teamMemberJSON{
		ID:        tm.ID,
		Team:      tm.TeamID,
		Member:    tm.MemberID,
		Role:      tm.Role,
		Label:     tm.Label(),
		IsActive:  tm.IsActive,
		CreatedAt: tm.CreatedAt,
		UpdatedAt: tm.UpdatedAt,
		CreatedBy: tm.CreatedBy,
		UpdatedBy: tm.UpdatedBy,
	}
}

type createBody struct {
	Team   int64  `json:"team"`
	Member int64  `json:"member"`
	Role   string `json:"role"`
}

type updateBody struct {
	Team   *int64  `json:"team"`
	Member *int64  `json:"member"`
	Role   *string `json:"role"`
}

func filterFrom(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	f := domain.Filter{
		Roles:                  httpx.QueryIn(q, "role"),
		TeamName:               q.Get("team_name"),
		TeamNameContains:       q.Get("team_name__icontains"),
		TeamSlug:               q.Get("team_slug"),
		TeamSlugContains:       q.Get("team_slug__icontains"),
		MemberFullNameContains: q.Get("member_full_name__icontains"),
		MemberEmailContains:    q.Get("member_email__icontains"),
	}
	var err error
	if f.TeamID, err = httpx.QueryInt64(q, "team"); err != nil {
		return f, err
	}
	if f.MemberID, err = httpx.QueryInt64(q, "member"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) filtered(w http.ResponseWriter, r *http.Request) ([]*domain.TeamMember, bool) {
	f, err := filterFrom(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	tms, err := h.svc.List(r.Context(), tenancy.FromContext(r.Context()), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	return tms, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tms, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]teamMemberJSON, 0, len(tms))
	for _, tm := range tms {
		out = append(out, toJSON(tm))
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) choices(w http.ResponseWriter, r *http.Request) {
	tms, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]httpx.Choice, 0, len(tms))
	for _, tm := range tms {
		out = append(out, httpx.Choice{Value: tm.ID, Label: tm.Label()})
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	tm, err := h.svc.Get(r.Context(), tenancy.FromContext(r.Context()), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(tm))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	tm, err := h.svc.Create(r.Context(), tenancy.FromContext(r.Context()), service.CreateInput{
		TeamID:   body.Team,
		MemberID: body.Member,
		Role:     body.Role,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toJSON(tm))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body updateBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	tm, err := h.svc.Update(r.Context(), tenancy.FromContext(r.Context()), id, service.UpdateInput{
		TeamID:   body.Team,
		MemberID: body.Member,
		Role:     body.Role,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(tm))
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
