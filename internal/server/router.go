// Package server assembles the REST API: the chi router, its middleware stack, and the mounts of
// every resource handler.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tenantdesk/backend/internal/audit"
	identityhandler "tenantdesk/backend/internal/identity/handler"
	invitationhandler "tenantdesk/backend/internal/invitation/handler"
	membershiphandler "tenantdesk/backend/internal/membership/handler"
	organizationhandler "tenantdesk/backend/internal/organization/handler"
	"tenantdesk/backend/internal/platform/metrics"
	teamhandler "tenantdesk/backend/internal/team/handler"
	teammemberhandler "tenantdesk/backend/internal/teammember/handler"
)

// Deps holds everything the router needs. Nil Audit disables auditing, nil Metrics disables
// /metrics, and nil Health disables /healthz.
type Deps struct {
	Tokens   TokenValidator
	Resolver ContextResolver
	Audit    audit.AuditLogger
	Metrics  *metrics.Registry
	Health   http.Handler

	Identity      *identityhandler.Handler
	Organizations *organizationhandler.Handler
	Members       *membershiphandler.Handler
	Invitations   *invitationhandler.Handler
	Teams         *teamhandler.Handler
	TeamMembers   *teammemberhandler.Handler

	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter returns the HTTP handler for the whole API.
//
// Route → handler mapping:
//   - /api/auth/*                      → internal/identity/handler (token, refresh, verify, logout, password reset)
//   - /api/accounts/signup             → internal/identity/handler
//   - /api/accounts/organizations/*    → internal/organization/handler
//   - /api/accounts/members/*          → internal/membership/handler
//   - /api/accounts/invitations/*      → internal/invitation/handler
//   - /api/teams/teams/*               → internal/team/handler
//   - /api/teams/team-members/*        → internal/teammember/handler
//   - /healthz, /metrics
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, Trace, AccessLog(d.Metrics), middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(corsOptions(d.CORSOrigins)))

	if d.Health != nil {
		r.Method(http.MethodGet, "/healthz", d.Health)
	}
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	authenticate := Authenticate(d.Tokens, d.Resolver)
	r.Route("/api", func(r chi.Router) {
		if d.Audit != nil {
			r.Use(Audit(d.Audit))
		}
		if d.Identity != nil {
			r.Mount("/auth", d.Identity.Routes(authenticate))
		}
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Route("/accounts", func(r chi.Router) {
				if d.Identity != nil {
					r.Post("/signup", d.Identity.Signup)
				}
				if d.Organizations != nil {
					r.Mount("/organizations", d.Organizations.Routes())
				}
				if d.Members != nil {
					r.Mount("/members", d.Members.Routes())
				}
				if d.Invitations != nil {
					r.Mount("/invitations", d.Invitations.Routes())
				}
			})
			r.Route("/teams", func(r chi.Router) {
				if d.Teams != nil {
					r.Mount("/teams", d.Teams.Routes())
				}
				if d.TeamMembers != nil {
					r.Mount("/team-members", d.TeamMembers.Routes())
				}
			})
		})
	})
	return r
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}
