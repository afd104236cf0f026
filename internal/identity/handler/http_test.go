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

	"tenantdesk/backend/internal/identity/domain"
	"tenantdesk/backend/internal/identity/service"
	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/apperr"
	sessiondomain "tenantdesk/backend/internal/session/domain"
	"tenantdesk/backend/internal/tenancy"
	userdomain "tenantdesk/backend/internal/user/domain"
)

type stubService struct {
	loginIP     string
	resetEmail  string
	confirmArgs []string
	signup      service.SignupInput
	loggedOut   string
	err         error
}

func (s *stubService) Login(_ context.Context, username, password, ip string) (*domain.TokenResult, error) {
	s.loginIP = ip
	if username != "alice" || password != "pw" {
		return nil, apperr.Unauthenticated("No active account found with the given credentials")
	}
	return &domain.TokenResult{
		TokenPair: domain.TokenPair{Access: "acc", Refresh: "ref"},
		User:      userdomain.Summary{ID: 1, Username: "alice"},
	}, nil
}

func (s *stubService) Refresh(_ context.Context, refresh string) (*domain.TokenPair, error) {
	if refresh != "ref" {
		return nil, apperr.Unauthenticated("Token is invalid or expired")
	}
	return &domain.TokenPair{Access: "acc2", Refresh: "ref2"}, nil
}

func (s *stubService) Verify(token string) error {
	if token != "acc" {
		return apperr.Unauthenticated("Token is invalid or expired")
	}
	return nil
}

func (s *stubService) Logout(_ context.Context, tc *tenancy.Context) error {
	if !tc.Authenticated() {
		return apperr.ErrUnauthenticated
	}
	s.loggedOut = tc.Session.ID
	return nil
}

func (s *stubService) RequestPasswordReset(_ context.Context, email string) error {
	s.resetEmail = email
	return s.err
}

func (s *stubService) ConfirmPasswordReset(_ context.Context, uid, token, pw string) error {
	s.confirmArgs = []string{uid, token, pw}
	return s.err
}

func (s *stubService) Signup(_ context.Context, in service.SignupInput, _ string) (*service.SignupResult, error) {
	s.signup = in
	if s.err != nil {
		return nil, s.err
	}
	return &service.SignupResult{
		Member: &memberdomain.Member{ID: 100, OrgID: 3, Role: memberdomain.RoleOwner, Nickname: in.Nickname},
		Tokens: &domain.TokenResult{
			TokenPair: domain.TokenPair{Access: "acc", Refresh: "ref"},
			User:      userdomain.Summary{ID: 1, Username: in.User.Username},
		},
	}, nil
}

// fakeAuth marks requests carrying any bearer header as session s1 of user 1.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := &tenancy.Context{}
		if r.Header.Get("Authorization") != "" {
			tc = &tenancy.Context{User: &userdomain.User{ID: 1}, Session: &sessiondomain.Session{ID: "s1"}}
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithContext(r.Context(), tc)))
	})
}

func serve(svc *stubService, method, target, body string, header ...string) *httptest.ResponseRecorder {
	h := NewHandler(svc)
	r := chi.NewRouter()
	r.Mount("/api/auth", h.Routes(fakeAuth))
	r.Post("/api/accounts/signup", h.Signup)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.RemoteAddr = "198.51.100.4:1234"
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestTokenEndpoints(t *testing.T) {
	svc := &stubService{}

	rec := serve(svc, http.MethodPost, "/api/auth/token", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access":"acc","refresh":"ref","user":{"id":1,"username":"alice","email":"","first_name":"","last_name":""}}`, rec.Body.String())
	assert.Equal(t, "198.51.100.4", svc.loginIP)

	rec = serve(svc, http.MethodPost, "/api/auth/token", `{"username":"alice","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"detail":"No active account found with the given credentials"}`, rec.Body.String())

	rec = serve(svc, http.MethodPost, "/api/auth/token/refresh", `{"refresh":"ref"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access":"acc2","refresh":"ref2"}`, rec.Body.String())

	rec = serve(svc, http.MethodPost, "/api/auth/token/verify", `{"token":"acc"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
	rec = serve(svc, http.MethodPost, "/api/auth/token/verify", `{"token":"zzz"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	svc := &stubService{}
	rec := serve(svc, http.MethodPost, "/api/auth/logout", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(svc, http.MethodPost, "/api/auth/logout", "", "Authorization", "Bearer acc")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "s1", svc.loggedOut)
}

func TestPasswordReset(t *testing.T) {
	svc := &stubService{}
	rec := serve(svc, http.MethodPost, "/api/auth/password/reset", `{"email":"alice@acme.io"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"detail":"`+service.ResetSentMessage+`"}`, rec.Body.String())
	assert.Equal(t, "alice@acme.io", svc.resetEmail)

	rec = serve(svc, http.MethodPost, "/api/auth/password/reset/confirm", `{"uid":"MQ","token":"t","new_password":"longenough"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"detail":"`+service.ResetDoneMessage+`"}`, rec.Body.String())
	assert.Equal(t, []string{"MQ", "t", "longenough"}, svc.confirmArgs)

	svc.err = apperr.Invalid("token", "Invalid token.")
	rec = serve(svc, http.MethodPost, "/api/auth/password/reset/confirm", `{"uid":"MQ","token":"bad","new_password":"longenough"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"token":["Invalid token."]}`, rec.Body.String())
}

func TestSignup(t *testing.T) {
	svc := &stubService{}
	body := `{"user":{"username":"ann","email":"ann@acme.io","password":"pw12345678"},"organization":{"name":"Acme","slug":"acme"},"nickname":"boss"}`
	rec := serve(svc, http.MethodPost, "/api/accounts/signup", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "ann", svc.signup.User.Username)
	assert.Equal(t, "pw12345678", svc.signup.Password)
	assert.Equal(t, "acme", svc.signup.OrgSlug)
	assert.JSONEq(t, `{"id":100,"organization":3,"nickname":"boss","role":"owner","access":"acc","refresh":"ref",
		"user":{"id":1,"username":"ann","email":"","first_name":"","last_name":""}}`, rec.Body.String())

	svc.err = apperr.Invalid("username", "A user with that username already exists.")
	rec = serve(svc, http.MethodPost, "/api/accounts/signup", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
