// Package httpx holds the JSON response helpers shared by the REST handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/logger"
)

// DefaultPageSize is the number of results per list page.
const DefaultPageSize = 10

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L().Warnw("encode response failed", "error", err)
	}
}

// WriteDetail writes {"detail": msg}.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"detail": msg})
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError maps service errors to HTTP responses. Validation errors become
// {field: [message]} with 400; unknown errors are logged and become a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := apperr.AsValidation(err); ok {
		field := ve.Field
		if field == "" {
			field = apperr.NonFieldErrors
		}
		WriteJSON(w, http.StatusBadRequest, map[string][]string{field: {ve.Message}})
		return
	}
	var de *apperr.DetailError
	detail := ""
	if errors.As(err, &de) {
		detail = de.Detail
	}
	switch {
	case errors.Is(err, apperr.ErrBadRequest):
		WriteDetail(w, http.StatusBadRequest, orDefault(detail, "Bad request."))
	case errors.Is(err, apperr.ErrNotFound):
		WriteDetail(w, http.StatusNotFound, orDefault(detail, "Not found."))
	case errors.Is(err, apperr.ErrForbidden):
		WriteDetail(w, http.StatusForbidden, orDefault(detail, "You do not have permission to perform this action."))
	case errors.Is(err, apperr.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		WriteDetail(w, http.StatusUnauthorized, orDefault(detail, "Authentication credentials were not provided."))
	case errors.Is(err, apperr.ErrMethodNotAllowed):
		WriteDetail(w, http.StatusMethodNotAllowed, orDefault(detail, "Method not allowed."))
	default:
		logger.Ctx(r.Context()).Errorw("request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		WriteDetail(w, http.StatusInternalServerError, "Internal server error.")
	}
}

// Decode reads a JSON body into v. A malformed body is a validation error.
func Decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Invalidf(apperr.NonFieldErrors, "JSON parse error - %s", err.Error())
	}
	return nil
}

// IDParam parses the named chi URL parameter as a positive int64. Malformed ids are not found.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ErrNotFound
	}
	return id, nil
}

// Page is the paginated list envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Paginate slices items according to ?page= and ?page_size= and builds next/previous links.
func Paginate[T any](r *http.Request, items []T) (Page[T], error) {
	q := r.URL.Query()
	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Page[T]{}, apperr.NotFound("Invalid page.")
		}
		page = n
	}
	size := DefaultPageSize
	if raw := q.Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			size = n
		}
	}
	start := (page - 1) * size
	if start > 0 && start >= len(items) {
		return Page[T]{}, apperr.NotFound("Invalid page.")
	}
	end := min(start+size, len(items))
	out := Page[T]{Count: len(items), Results: items[start:end]}
	if out.Results == nil {
		out.Results = []T{}
	}
	if end < len(items) {
		out.Next = pageLink(r, page+1)
	}
	if page > 1 {
		out.Previous = pageLink(r, page-1)
	}
	return out, nil
}

func pageLink(r *http.Request, page int) *string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	s := u.String()
	return &s
}

// Choice is one {value, label} entry served by choices endpoints.
type Choice struct {
	Value any    `json:"value"`
	Label string `json:"label"`
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
