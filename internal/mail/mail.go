// Package mail renders account mails and hands them to a queue. Delivery happens either in a
// background goroutine of the server or in the worker reading the Kafka topic.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/platform/metrics"
)

// Kind names the template a message was rendered from.
type Kind string

const (
	KindPasswordReset Kind = "password_reset"
	KindInvitation    Kind = "invitation"
)

// Message is one rendered mail. It is also the Kafka payload.
type Message struct {
	Kind    Kind     `json:"kind"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Queue accepts a message for later delivery. Enqueue errors are for logging only.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	Close() error
}

// LogSender writes messages to the process log. Used when no SMTP host or mail API is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	logger.Ctx(ctx).Infow("mail (not delivered, no transport configured)",
		"kind", msg.Kind, "to", strings.Join(msg.To, ","), "subject", msg.Subject)
	return nil
}

// InstrumentedSender counts deliveries per kind.
type InstrumentedSender struct {
	Next    Sender
	Metrics *metrics.Registry
}

func (s InstrumentedSender) Send(ctx context.Context, msg Message) error {
	err := s.Next.Send(ctx, msg)
	s.Metrics.ObserveMail(string(msg.Kind), err)
	return err
}

var (
	resetTmpl = template.Must(template.New("reset").Parse(`Hello {{.Name}},

We received a request to reset the password of your account "{{.Username}}".
Open the link below to choose a new password:

{{.URL}}

If you did not ask for this, you can ignore this mail.
`))
	inviteTmpl = template.Must(template.New("invite").Parse(`Hello,

You have been invited to join {{.Organization}} as {{.Role}}.
Accept the invitation here:

{{.URL}}
{{if .ExpiresAt}}
The invitation expires on {{.ExpiresAt}}.
{{end}}`))
)

// PasswordReset renders the reset mail for one user.
func PasswordReset(to, name, username, url string) (Message, error) {
	body, err := render(resetTmpl, map[string]string{"Name": name, "Username": username, "URL": url})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: KindPasswordReset, To: []string{to}, Subject: "Password reset", Body: body}, nil
}

// Invitation renders the invitation mail. expiresAt may be nil.
func Invitation(to, organization, role, url string, expiresAt *time.Time) (Message, error) {
	data := map[string]string{"Organization": organization, "Role": role, "URL": url}
	if expiresAt != nil {
		data["ExpiresAt"] = expiresAt.UTC().Format(time.RFC1123)
	}
	body, err := render(inviteTmpl, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:    KindInvitation,
		To:      []string{to},
		Subject: fmt.Sprintf("Invitation to join %s", organization),
		Body:    body,
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}
