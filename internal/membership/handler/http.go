package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	identitydomain "tenantdesk/backend/internal/identity/domain"
	"tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/membership/service"
	"tenantdesk/backend/internal/platform/httpx"
	"tenantdesk/backend/internal/tenancy"
	userdomain "tenantdesk/backend/internal/user/domain"
)

// Service is the member service surface used by the HTTP handler.
type Service interface {
	List(ctx context.Context, tc *tenancy.Context, f domain.Filter) ([]*domain.Member, error)
	Get(ctx context.Context, tc *tenancy.Context, id int64) (*domain.Member, error)
	Create(ctx context.Context, tc *tenancy.Context) error
	Update(ctx context.Context, tc *tenancy.Context, id int64, in service.UpdateInput) (*domain.Member, error)
	UpdateRole(ctx context.Context, tc *tenancy.Context, id int64, role string) (*domain.Member, error)
	Delete(ctx context.Context, tc *tenancy.Context, id int64) error
	CreateWithInvite(ctx context.Context, tc *tenancy.Context, key string, in service.InviteInput, ip string) (*service.InviteResult, error)
}

// Handler serves /api/accounts/members.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the member routes, relative to their mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/choices", h.choices)
	r.Post("/create-with-invite/{key}", h.createWithInvite)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Put("/update_role", h.updateRole)
		r.Patch("/update_role", h.updateRole)
	})
	return r
}

type memberJSON struct {
	ID           int64               `json:"id"`
	User         *userdomain.Summary `json:"user"`
	Organization int64               `json:"organization"`
	Nickname     string              `json:"nickname"`
	Role         domain.Role         `json:"role"`
	IsActive     bool                `json:"is_active"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	CreatedBy    *int64              `json:"created_by"`
	UpdatedBy    *int64              `json:"updated_by"`
}

// memberWithTokens is the create-with-invite response: the member plus a fresh token pair.
type memberWithTokens struct {
	memberJSON
	identitydomain.TokenPair
}

func toJSON(m *domain.Member) memberJSON {
	out := memberJSON{
		ID:           m.ID,
		Organization: m.OrgID,
		Nickname:     m.Nickname,
		Role:         m.Role,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		CreatedBy:    m.CreatedBy,
		UpdatedBy:    m.UpdatedBy,
	}
	if m.User != nil {
		s := m.User.Summary()
		out.User = &s
	}
	return out
}

type userBody struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
}

type updateBody struct {
	Nickname *string   `json:"nickname"`
	User     *userBody `json:"user"`
}

type roleBody struct {
	Role string `json:"role"`
}

type inviteBody struct {
	User     userBody `json:"user"`
	Nickname string   `json:"nickname"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func filterFrom(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	userID, err := httpx.QueryInt64(q, "user")
	if err != nil {
		return domain.Filter{}, err
	}
	return domain.Filter{
		Nickname:         q.Get("nickname"),
		NicknameContains: q.Get("nickname__icontains"),
		Roles:            httpx.QueryIn(q, "role"),
		UserID:           userID,
		FullNameContains: q.Get("full_name__icontains"),
		EmailContains:    q.Get("email__icontains"),
	}, nil
}

func (h *Handler) filtered(w http.ResponseWriter, r *http.Request) ([]*domain.Member, bool) {
	f, err := filterFrom(r)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	members, err := h.svc.List(r.Context(), tenancy.FromContext(r.Context()), f)
	if err != nil {
		httpx.WriteError(w, r, err)
		return nil, false
	}
	return members, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	members, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]memberJSON, 0, len(members))
	for _, m := range members {
		out = append(out, toJSON(m))
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) choices(w http.ResponseWriter, r *http.Request) {
	members, ok := h.filtered(w, r)
	if !ok {
		return
	}
	out := make([]httpx.Choice, 0, len(members))
	for _, m := range members {
		out = append(out, httpx.Choice{Value: m.ID, Label: m.Label()})
	}
	httpx.WriteList(w, r, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	m, err := h.svc.Get(r.Context(), tenancy.FromContext(r.Context()), id)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(m))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, r, h.svc.Create(r.Context(), tenancy.FromContext(r.Context())))
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
	in := service.UpdateInput{Nickname: body.Nickname}
	if body.User != nil {
		in.User = &service.UserInput{
			Username:  body.User.Username,
			Email:     body.User.Email,
			FirstName: body.User.FirstName,
			LastName:  body.User.LastName,
			Password:  body.User.Password,
		}
	}
	m, err := h.svc.Update(r.Context(), tenancy.FromContext(r.Context()), id, in)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(m))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	var body roleBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	m, err := h.svc.UpdateRole(r.Context(), tenancy.FromContext(r.Context()), id, body.Role)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toJSON(m))
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

func (h *Handler) createWithInvite(w http.ResponseWriter, r *http.Request) {
	var body inviteBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	in := service.InviteInput{
		User: userdomain.User{
			Username:  deref(body.User.Username),
			Email:     deref(body.User.Email),
			FirstName: deref(body.User.FirstName),
			LastName:  deref(body.User.LastName),
		},
		Password: deref(body.User.Password),
		Nickname: body.Nickname,
	}
	key := chi.URLParam(r, "key")
	res, err := h.svc.CreateWithInvite(r.Context(), tenancy.FromContext(r.Context()), key, in, httpx.ClientIP(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := memberWithTokens{memberJSON: toJSON(res.Member)}
	if res.Tokens != nil {
		out.TokenPair = res.Tokens.TokenPair
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}
