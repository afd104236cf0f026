package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantdesk/backend/internal/platform/apperr"
)

func TestWriteError_StatusMapping(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", apperr.Invalid("slug", "taken"), http.StatusBadRequest, `{"slug":["taken"]}`},
		{"validation no field", &apperr.ValidationError{Message: "bad"}, http.StatusBadRequest, `{"non_field_errors":["bad"]}`},
		{"bad request detail", apperr.BadRequest("Invitation is expired"), http.StatusBadRequest, `{"detail":"Invitation is expired"}`},
		{"not found", apperr.ErrNotFound, http.StatusNotFound, `{"detail":"Not found."}`},
		{"not found detail", apperr.NotFound("Invitation not found or expired."), http.StatusNotFound, `{"detail":"Invitation not found or expired."}`},
		{"forbidden", fmt.Errorf("wrap: %w", apperr.ErrForbidden), http.StatusForbidden, `{"detail":"You do not have permission to perform this action."}`},
		{"unauthenticated", apperr.ErrUnauthenticated, http.StatusUnauthorized, `{"detail":"Authentication credentials were not provided."}`},
		{"method not allowed", apperr.MethodNotAllowed("gone"), http.StatusMethodNotAllowed, `{"detail":"gone"}`},
		{"internal", errors.New("db down"), http.StatusInternalServerError, `{"detail":"Internal server error."}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			WriteError(rec, req, tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"acme"}`))
	require.NoError(t, Decode(req, &v))
	assert.Equal(t, "acme", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.NoError(t, Decode(req, &v), "empty body decodes to zero value")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	err := Decode(req, &v)
	_, ok := apperr.AsValidation(err)
	assert.True(t, ok, "malformed body is a validation error")
}

func TestIDParam(t *testing.T) {
	withParam := func(v string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", v)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	id, err := IDParam(withParam("42"), "id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := IDParam(withParam(bad), "id")
		assert.ErrorIs(t, err, apperr.ErrNotFound, bad)
	}
}

func TestPaginate(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/members/?role=admin", nil)
	page, err := Paginate(req, items)
	require.NoError(t, err)
	assert.Equal(t, 25, page.Count)
	assert.Len(t, page.Results, DefaultPageSize)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "page=2")
	assert.Contains(t, *page.Next, "role=admin")
	assert.Nil(t, page.Previous)

	req = httptest.NewRequest(http.MethodGet, "/x?page=3", nil)
	page, err = Paginate(req, items)
	require.NoError(t, err)
	assert.Equal(t, []int{20, 21, 22, 23, 24}, page.Results)
	assert.Nil(t, page.Next)
	assert.NotNil(t, page.Previous)

	req = httptest.NewRequest(http.MethodGet, "/x?page=9", nil)
	_, err = Paginate(req, items)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	empty, err := Paginate[int](req, nil)
	require.NoError(t, err)
	b, _ := json.Marshal(empty)
	assert.JSONEq(t, `{"count":0,"next":null,"previous":null,"results":[]}`, string(b))
}

func TestOptional(t *testing.T) {
	var body struct {
		ExpiredAt Optional[string] `json:"expired_at"`
		Email     Optional[string] `json:"email"`
		Role      Optional[string] `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"expired_at":null,"email":"a@b.io"}`), &body))
	assert.True(t, body.ExpiredAt.Set)
	assert.Nil(t, body.ExpiredAt.Value)
	require.True(t, body.Email.Set)
	assert.Equal(t, "a@b.io", *body.Email.Value)
	assert.False(t, body.Role.Set)
}

func TestQueryHelpers(t *testing.T) {
	q := url.Values{}
	q.Set("is_active", "false")
	q.Set("team", "4")
	q.Set("role", "admin")
	q.Set("role__in", "owner, member,")
	q.Set("expired_at__gt", "2026-03-01T09:00:00Z")

	b, err := QueryBool(q, "is_active")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.False(t, *b)
	b, err = QueryBool(q, "is_accepted")
	require.NoError(t, err)
	assert.Nil(t, b)

	id, err := QueryInt64(q, "team")
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	assert.Equal(t, []string{"admin", "owner", "member"}, QueryIn(q, "role"))

	ts, err := QueryTime(q, "expired_at__gt")
	require.NoError(t, err)
	assert.Equal(t, 2026, ts.Year())

	q.Set("is_active", "maybe")
	q.Set("team", "x")
	q.Set("expired_at", "yesterday")
	_, err = QueryBool(q, "is_active")
	assert.Error(t, err)
	_, err = QueryInt64(q, "team")
	assert.Error(t, err)
	_, err = QueryTime(q, "expired_at")
	assert.Error(t, err)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", ClientIP(req))
	req.RemoteAddr = "10.1.2.4"
	assert.Equal(t, "10.1.2.4", ClientIP(req))
}
