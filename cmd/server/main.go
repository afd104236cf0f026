// Command server runs the REST API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenantdesk/backend/internal/app"
	"tenantdesk/backend/internal/audit"
	"tenantdesk/backend/internal/config"
	healthhandler "tenantdesk/backend/internal/health/handler"
	identityhandler "tenantdesk/backend/internal/identity/handler"
	invitationhandler "tenantdesk/backend/internal/invitation/handler"
	membershiphandler "tenantdesk/backend/internal/membership/handler"
	organizationhandler "tenantdesk/backend/internal/organization/handler"
	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/platform/metrics"
	"tenantdesk/backend/internal/server"
	teamhandler "tenantdesk/backend/internal/team/handler"
	teammemberhandler "tenantdesk/backend/internal/teammember/handler"
	telemetryotel "tenantdesk/backend/internal/telemetry/otel"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		logger.L().Errorw("server exited", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(config.LoggerConf(cfg)); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "tenantdesk-api",
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(sctx)
	}()

	reg := metrics.New()
	a, err := app.New(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.L().Warnw("close failed", "error", err)
		}
	}()

	router := server.NewRouter(server.Deps{
		Tokens:   a.Tokens,
		Resolver: a.Resolver,
		Audit: audit.Multi{
			audit.NewLogger(a.AuditRepo),
			telemetryotel.NewAuditExporter(providers.LoggerProvider),
		},
		Metrics:        reg,
		Health:         healthhandler.NewHandler(a.DB, a.Policy),
		Identity:       identityhandler.NewHandler(a.Auth),
		Organizations:  organizationhandler.NewHandler(a.Orgs),
		Members:        membershiphandler.NewHandler(a.Members),
		Invitations:    invitationhandler.NewHandler(a.Invitations),
		Teams:          teamhandler.NewHandler(a.Teams),
		TeamMembers:    teammemberhandler.NewHandler(a.TeamMembers),
		CORSOrigins:    cfg.CORSOrigins(),
		RequestTimeout: cfg.RequestTimeout(),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.L().Infow("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.L().Infow("shutting down http server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	logger.L().Infow("http server stopped")
	return nil
}
