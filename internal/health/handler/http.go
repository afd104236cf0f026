package handler

import (
	"context"
	"net/http"
	"time"

	"tenantdesk/backend/internal/platform/httpx"
	"tenantdesk/backend/internal/platform/logger"
)

const (
	StatusServing    = "SERVING"
	StatusNotServing = "NOT_SERVING"
)

// checkTimeout bounds each readiness check.
const checkTimeout = 2 * time.Second

// Pinger checks the database, e.g. *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks the policy engine, e.g. the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves GET /healthz for load balancers and orchestrators.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// NewHandler returns a health Handler. Nil checkers are skipped.
func NewHandler(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

type healthJSON struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ServeHTTP answers 200 SERVING when every check passes, 503 NOT_SERVING otherwise.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	out := healthJSON{Status: StatusServing, Checks: map[string]string{}}
	if h.pinger != nil {
		out.Checks["database"] = h.check(r.Context(), "database", h.pinger.PingContext)
	}
	if h.policy != nil {
		out.Checks["policy"] = h.check(r.Context(), "policy", h.policy.HealthCheck)
	}
	for _, v := range out.Checks {
		if v != "ok" {
			out.Status = StatusNotServing
		}
	}
	status := http.StatusOK
	if out.Status != StatusServing {
		status = http.StatusServiceUnavailable
	}
	httpx.WriteJSON(w, status, out)
}

func (h *Handler) check(ctx context.Context, name string, fn func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Ctx(ctx).Warnw("health: check failed", "check", name, "error", err)
		return "error"
	}
	return "ok"
}
