// Package handler exposes password login, token rotation, password reset and signup over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tenantdesk/backend/internal/identity/domain"
	"tenantdesk/backend/internal/identity/service"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/httpx"
	"tenantdesk/backend/internal/tenancy"
	userdomain "tenantdesk/backend/internal/user/domain"
)

// Service is the auth service surface used by the HTTP handler.
type Service interface {
	Login(ctx context.Context, username, password, ip string) (*domain.TokenResult, error)
	Refresh(ctx context.Context, refresh string) (*domain.TokenPair, error)
	Verify(token string) error
	Logout(ctx context.Context, tc *tenancy.Context) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, uid, token, newPassword string) error
	Signup(ctx context.Context, in service.SignupInput, ip string) (*service.SignupResult, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the /api/auth routes. authenticate guards logout, the only route that needs a session.
func (h *Handler) Routes(authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/token", h.token)
	r.Post("/token/refresh", h.refresh)
	r.Post("/token/verify", h.verify)
	r.With(authenticate).Post("/logout", h.logout)
	r.Post("/password/reset", h.resetRequest)
	r.Post("/password/reset/confirm", h.resetConfirm)
	return r
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), body.Username, body.Password, httpx.ClientIP(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	pair, err := h.svc.Refresh(r.Context(), body.Refresh)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.svc.Verify(body.Token); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), tenancy.FromContext(r.Context())); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) resetRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), body.Email); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, service.ResetSentMessage)
}

func (h *Handler) resetConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UID         string `json:"uid"`
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if err := h.svc.ConfirmPasswordReset(r.Context(), body.UID, body.Token, body.NewPassword); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteDetail(w, http.StatusOK, service.ResetDoneMessage)
}

type signupBody struct {
	User struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Password  string `json:"password"`
	} `json:"user"`
	Organization struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"organization"`
	Nickname string `json:"nickname"`
}

type signupResponse struct {
	ID           int64              `json:"id"`
	User         userdomain.Summary `json:"user"`
	Organization int64              `json:"organization"`
	Nickname     string             `json:"nickname"`
	Role         memberdomain.Role  `json:"role"`
	domain.TokenPair
}

// Signup serves POST /api/accounts/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupBody
	if err := httpx.Decode(r, &body); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Signup(r.Context(), service.SignupInput{
		User: userdomain.User{
			Username:  body.User.Username,
			Email:     body.User.Email,
			FirstName: body.User.FirstName,
			LastName:  body.User.LastName,
		},
		Password: body.User.Password,
		OrgName:  body.Organization.Name,
		OrgSlug:  body.Organization.Slug,
		Nickname: body.Nickname,
	}, httpx.ClientIP(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := signupResponse{
		ID:           res.Member.ID,
		Organization: res.Member.OrgID,
		Nickname:     res.Member.Nickname,
		Role:         res.Member.Role,
	}
	if res.Tokens != nil {
		out.User = res.Tokens.User
		out.TokenPair = res.Tokens.TokenPair
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}
