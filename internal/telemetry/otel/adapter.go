package otel

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"tenantdesk/backend/internal/audit"
)

// AuditScope is the instrumentation scope name of audit log records.
const AuditScope = "tenantdesk.audit"

// NewAuditExporter returns an audit.AuditLogger that emits each event as an OTel log record
// through provider. A nil provider yields a no-op logger.
func NewAuditExporter(provider *sdklog.LoggerProvider) audit.AuditLogger {
	if provider == nil {
		return noopExporter{}
	}
	return newAuditExporter(provider.Logger(AuditScope))
}

// recordEmitter is the part of otellog.Logger the exporter uses.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

func newAuditExporter(l recordEmitter) *auditExporter {
	return &auditExporter{logger: l, now: time.Now}
}

type noopExporter struct{}

func (noopExporter) LogEvent(context.Context, audit.Event) {}

type auditExporter struct {
	logger recordEmitter
	now    func() time.Time
}

// LogEvent converts ev to a log record. The body carries the JSON metadata when present.
func (e *auditExporter) LogEvent(ctx context.Context, ev audit.Event) {
	rec := otellog.Record{}
	rec.SetTimestamp(e.now().UTC())
	rec.SetSeverity(otellog.SeverityInfo)
	if len(ev.Metadata) > 0 {
		if body, err := sonic.Marshal(ev.Metadata); err == nil {
			rec.SetBody(otellog.BytesValue(body))
		}
	}
	if ev.OrgID != 0 {
		rec.AddAttributes(otellog.String("org_id", strconv.FormatInt(ev.OrgID, 10)))
	}
	if ev.UserID != 0 {
		rec.AddAttributes(otellog.String("user_id", strconv.FormatInt(ev.UserID, 10)))
	}
	if ev.Action != "" {
		rec.AddAttributes(otellog.String("action", ev.Action))
	}
	if ev.Resource != "" {
		rec.AddAttributes(otellog.String("resource", ev.Resource))
	}
	ip := ev.IP
	if ip == "" {
		ip = "unknown"
	}
	rec.AddAttributes(otellog.String("ip", ip))
	e.logger.Emit(context.WithoutCancel(ctx), rec)
}
