package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"tenantdesk/backend/internal/audit"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/platform/httpx"
	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/platform/metrics"
	"tenantdesk/backend/internal/tenancy"
)

const bearerPrefix = "bearer "

// TokenValidator validates access tokens, e.g. *security.TokenProvider.
type TokenValidator interface {
	ValidateAccess(token string) (sessionID, userID string, err error)
}

// ContextResolver loads the caller's tenancy for a validated token, e.g. *tenancy.Resolver.
type ContextResolver interface {
	Resolve(ctx context.Context, userID, sessionID string) (*tenancy.Context, error)
}

// Authenticate resolves the Bearer access token into a tenancy.Context. Requests without an
// Authorization header continue anonymously and services decide whether that is enough; a header
// that is present but does not validate is rejected with 401.
func Authenticate(tokens TokenValidator, resolver ContextResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("Authorization")
			if strings.TrimSpace(raw) == "" {
				next.ServeHTTP(w, r.WithContext(tenancy.WithContext(r.Context(), &tenancy.Context{})))
				return
			}
			token := extractBearer(raw)
			if token == "" {
				httpx.WriteError(w, r, apperr.Unauthenticated("Authorization header must contain two space-delimited values"))
				return
			}
			sessionID, userID, err := tokens.ValidateAccess(token)
			if err != nil {
				httpx.WriteError(w, r, apperr.Unauthenticated("Given token not valid for any token type"))
				return
			}
			tc, err := resolver.Resolve(r.Context(), userID, sessionID)
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			if p := principalFrom(r.Context()); p != nil {
				p.tc = tc
			}
			next.ServeHTTP(w, r.WithContext(tenancy.WithContext(r.Context(), tc)))
		})
	}
}

// extractBearer returns the token of a "Bearer <token>" header value, or "" if malformed.
func extractBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) <= len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// principal lets Authenticate, which runs deeper in the chain, report the caller to Audit.
type principal struct {
	tc *tenancy.Context
}

type principalKey struct{}

func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(principalKey{}).(*principal)
	return p
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// Audit records every unsafe request after it completes. Anonymous requests are recorded without
// organization or user. Writes are best-effort and never change the response.
func Audit(sink audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sink == nil || !isUnsafe(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			p := &principal{}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))

			ar := audit.ParseRoute(r.Method, routePattern(r))
			ev := audit.Event{
				Action:   ar.Action,
				Resource: ar.Resource,
				IP:       httpx.ClientIP(r),
				Metadata: map[string]any{"status": statusOf(ww), "path": r.URL.Path},
			}
			if p.tc.Authenticated() {
				ev.UserID = p.tc.UserID()
				ev.OrgID = p.tc.OrgID
			}
			sink.LogEvent(r.Context(), ev)
		})
	}
}

// AccessLog logs one line per request and feeds the HTTP metrics.
func AccessLog(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			elapsed := time.Since(start)
			status := statusOf(ww)
			reg.ObserveHTTP(routePattern(r), r.Method, status, elapsed)

			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", elapsed,
				"request_id", middleware.GetReqID(r.Context()),
			}
			l := logger.Ctx(r.Context())
			if status >= http.StatusInternalServerError {
				l.Errorw("http request", fields...)
				return
			}
			l.Infow("http request", fields...)
		})
	}
}

// Trace starts one server span per request, continuing any incoming W3C trace context. The span
// is renamed to the matched route once routing is done.
func Trace(next http.Handler) http.Handler {
	tracer := otel.Tracer("tenantdesk/http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(ctx)
		next.ServeHTTP(ww, r)

		status := statusOf(ww)
		if route := routePattern(r); route != "" {
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))
		}
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.Int("http.response.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}

// routePattern returns the matched chi pattern with mount wildcards and the trailing slash removed,
// e.g. /api/accounts/members/{id}/update_role. It is empty when nothing matched.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	p := strings.Join(rctx.RoutePatterns, "")
	for strings.Contains(p, "/*/") {
		p = strings.ReplaceAll(p, "/*/", "/")
	}
	p = strings.TrimSuffix(p, "/*")
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}
