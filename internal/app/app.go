// Package app wires configuration, stores and services into the object graph shared by the
// server, the worker and the management commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	auditrepo "tenantdesk/backend/internal/audit/repository"
	"tenantdesk/backend/internal/authz"
	"tenantdesk/backend/internal/config"
	"tenantdesk/backend/internal/db"
	identityservice "tenantdesk/backend/internal/identity/service"
	invitationrepo "tenantdesk/backend/internal/invitation/repository"
	invitationservice "tenantdesk/backend/internal/invitation/service"
	"tenantdesk/backend/internal/mail"
	memberrepo "tenantdesk/backend/internal/membership/repository"
	memberservice "tenantdesk/backend/internal/membership/service"
	orgrepo "tenantdesk/backend/internal/organization/repository"
	orgservice "tenantdesk/backend/internal/organization/service"
	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/platform/metrics"
	"tenantdesk/backend/internal/policy/engine"
	policyrepo "tenantdesk/backend/internal/policy/repository"
	"tenantdesk/backend/internal/security"
	sessionrepo "tenantdesk/backend/internal/session/repository"
	teamrepo "tenantdesk/backend/internal/team/repository"
	teamservice "tenantdesk/backend/internal/team/service"
	teammemberrepo "tenantdesk/backend/internal/teammember/repository"
	teammemberservice "tenantdesk/backend/internal/teammember/service"
	"tenantdesk/backend/internal/tenancy"
	userrepo "tenantdesk/backend/internal/user/repository"
)

// App is the assembled backend. Close releases everything New opened.
type App struct {
	Config  *config.Config
	DB      *sql.DB
	Metrics *metrics.Registry
	Tokens  *security.TokenProvider
	Queue   mail.Queue

	Users      *userrepo.PostgresRepository
	PolicyRepo *policyrepo.PostgresRepository
	AuditRepo  *auditrepo.PostgresRepository
	Policy     *engine.OPAEvaluator
	Resolver   *tenancy.Resolver

	Auth        *identityservice.AuthService
	Orgs        *orgservice.OrganizationService
	Members     *memberservice.MemberService
	Invitations *invitationservice.InvitationService
	Teams       *teamservice.TeamService
	TeamMembers *teammemberservice.TeamMemberService

	closers []func() error
}

// New opens the database (and Redis when configured), builds the mail queue and every service.
// reg may be nil when the caller does not export metrics.
func New(ctx context.Context, cfg *config.Config, reg *metrics.Registry) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("app: DATABASE_URL is not set")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: open database: %w", err)
	}
	a := &App{Config: cfg, DB: conn, Metrics: reg}
	a.closers = append(a.closers, conn.Close)

	signer, pub, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: load JWT keys: %w", err)
	}
	a.Tokens = security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL()).
		WithResetTTL(cfg.ResetTTL())

	var sessions sessionrepo.Repository = sessionrepo.NewPostgresRepository(conn)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.L().Warnw("redis unavailable, session cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
		} else {
			sessions = sessionrepo.NewCachedRepository(sessions, rdb, cfg.SessionCacheDuration())
			a.closers = append(a.closers, rdb.Close)
		}
	}

	sender, err := NewSender(cfg, reg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Queue = NewQueue(cfg, sender)
	a.closers = append(a.closers, a.Queue.Close)

	tx := db.NewTransactor(conn)
	hasher := security.NewPasswordHasher(cfg.BcryptCost)
	a.Users = userrepo.NewPostgresRepository(conn)
	orgs := orgrepo.NewPostgresRepository(conn)
	members := memberrepo.NewPostgresRepository(conn)
	invitations := invitationrepo.NewPostgresRepository(conn)
	teams := teamrepo.NewPostgresRepository(conn)
	teamMembers := teammemberrepo.NewPostgresRepository(conn)
	a.PolicyRepo = policyrepo.NewPostgresRepository(conn)
	a.AuditRepo = auditrepo.NewPostgresRepository(conn)

	a.Policy = engine.NewOPAEvaluator(a.PolicyRepo)
	authzEngine := authz.NewEngine(teamMembers, a.Policy)
	a.Resolver = tenancy.NewResolver(a.Users, orgs, members, sessions)

	a.Orgs = orgservice.NewOrganizationService(tx, orgs, members, a.Resolver, authzEngine)
	a.Auth = identityservice.NewAuthService(tx, a.Users, sessions, a.Orgs, hasher, a.Tokens, a.Queue, cfg.FrontendResetURL)
	a.Invitations = invitationservice.NewInvitationService(invitations, members, authzEngine, a.Queue, cfg.FrontendInviteURL, reg)
	a.Members = memberservice.NewMemberService(tx, members, a.Users, a.Invitations, a.Auth, hasher, authzEngine)
	a.Teams = teamservice.NewTeamService(tx, teams, teamMembers, authzEngine)
	a.TeamMembers = teammemberservice.NewTeamMemberService(teamMembers, teams, members, authzEngine)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewSender picks the delivery transport: the HTTP mail API when MAIL_API_URL is set, SMTP when
// SMTP_HOST is set, otherwise the log. Deliveries are counted when reg is set.
func NewSender(cfg *config.Config, reg *metrics.Registry) (mail.Sender, error) {
	var s mail.Sender
	switch {
	case cfg.MailAPIURL != "":
		s = mail.NewAPISender(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)
	case cfg.SMTPHost != "":
		smtpSender := mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.MailFrom, cfg.SMTPUsername, cfg.SMTPPassword)
		if err := smtpSender.Validate(); err != nil {
			return nil, fmt.Errorf("app: mail: %w", err)
		}
		s = smtpSender
	default:
		s = mail.LogSender{}
	}
	if reg != nil {
		s = mail.InstrumentedSender{Next: s, Metrics: reg}
	}
	return s, nil
}

// NewQueue publishes to Kafka when brokers are configured and delivers in-process otherwise.
func NewQueue(cfg *config.Config, sender mail.Sender) mail.Queue {
	if q := mail.NewKafkaQueue(cfg.KafkaBrokersList(), cfg.MailKafkaTopic); q != nil {
		return q
	}
	return mail.NewAsyncQueue(sender)
}
