// Package audit records who changed what, best-effort, into audit_logs.
package audit

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"tenantdesk/backend/internal/audit/domain"
	auditrepo "tenantdesk/backend/internal/audit/repository"
	"tenantdesk/backend/internal/platform/logger"
)

// Event is one auditable occurrence. Zero OrgID or UserID means none.
type Event struct {
	OrgID    int64
	UserID   int64
	Action   string
	Resource string
	IP       string
	Metadata map[string]any
}

// AuditLogger writes a single audit event.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, ev Event)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo auditrepo.Repository
	now  func() time.Time
}

// NewLogger returns an AuditLogger that persists to repo. A nil repo makes every call a no-op.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo, now: time.Now}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, ev Event) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		OrgID:     optional(ev.OrgID),
		UserID:    optional(ev.UserID),
		Action:    ev.Action,
		Resource:  ev.Resource,
		IP:        ev.IP,
		CreatedAt: l.now().UTC(),
	}
	if entry.IP == "" {
		entry.IP = "unknown"
	}
	if len(ev.Metadata) > 0 {
		meta, err := sonic.MarshalString(ev.Metadata)
		if err != nil {
			logger.Ctx(ctx).Warnw("audit: failed to encode metadata", "action", ev.Action, "error", err)
		} else {
			entry.Metadata = meta
		}
	}
	if err := l.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		logger.Ctx(ctx).Warnw("audit: failed to log event", "action", ev.Action, "resource", ev.Resource, "error", err)
	}
}

func optional(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

// Multi fans one event out to several loggers, skipping nil entries.
type Multi []AuditLogger

func (m Multi) LogEvent(ctx context.Context, ev Event) {
	for _, l := range m {
		if l != nil {
			l.LogEvent(ctx, ev)
		}
	}
}
