package httpx

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tenantdesk/backend/internal/platform/apperr"
)

// WriteList paginates items and writes the page, or the pagination error.
func WriteList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	page, err := Paginate(r, items)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// ClientIP returns the remote host without its port. chi's RealIP middleware has already
// replaced RemoteAddr with X-Forwarded-For or X-Real-IP when present.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

// Optional records whether a JSON key was present, which a pointer alone cannot tell apart from null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// QueryBool parses an optional boolean filter.
func QueryBool(q url.Values, key string) (*bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Invalid(key, "Select a valid choice.")
	}
	return &b, nil
}

// QueryInt64 parses an optional id filter; 0 means absent.
func QueryInt64(q url.Values, key string) (int64, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, apperr.Invalid(key, "Select a valid choice. That choice is not one of the available choices.")
	}
	return n, nil
}

// QueryTime parses an optional RFC 3339 timestamp filter.
func QueryTime(q url.Values, key string) (*time.Time, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperr.Invalid(key, "Enter a valid date/time.")
	}
	return &t, nil
}

// QueryIn merges the exact filter key and its comma separated key__in variant.
func QueryIn(q url.Values, key string) []string {
	var out []string
	if v := strings.TrimSpace(q.Get(key)); v != "" {
		out = append(out, v)
	}
	for _, v := range strings.Split(q.Get(key+"__in"), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
