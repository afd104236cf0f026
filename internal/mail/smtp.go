package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPSender delivers mail through an SMTP relay with PLAIN auth when a username is set.
type SMTPSender struct {
	host     string
	port     int
	from     string
	username string
	password string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender returns a sender for host:port.
func NewSMTPSender(host string, port int, from, username, password string) *SMTPSender {
	return &SMTPSender{host: host, port: port, from: from, username: username, password: password, send: smtp.SendMail}
}

// Validate checks the relay configuration.
func (s *SMTPSender) Validate() error {
	if s.host == "" {
		return errors.New("smtp host is required")
	}
	if s.port <= 0 {
		return errors.New("smtp port is required")
	}
	if s.from == "" {
		return errors.New("from address is required")
	}
	return nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return errors.New("mail has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	if err := s.send(addr, auth, s.from, msg.To, s.build(msg)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (s *SMTPSender) build(msg Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + s.from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ",") + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}
