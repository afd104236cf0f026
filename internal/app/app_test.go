package app

import (
	"context"
	"testing"

	"tenantdesk/backend/internal/config"
	"tenantdesk/backend/internal/mail"
	"tenantdesk/backend/internal/platform/metrics"
)

func TestNew_RequiresDatabaseURL(t *testing.T) {
	if _, err := New(context.Background(), &config.Config{}, nil); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestNewSender(t *testing.T) {
	s, err := NewSender(&config.Config{}, nil)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	if _, ok := s.(mail.LogSender); !ok {
		t.Errorf("sender = %T, want LogSender", s)
	}

	s, err = NewSender(&config.Config{MailAPIURL: "https://mail.example.com/send", MailFrom: "noreply@example.com"}, nil)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	if _, ok := s.(*mail.APISender); !ok {
		t.Errorf("sender = %T, want *APISender", s)
	}

	s, err = NewSender(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587, MailFrom: "noreply@example.com"}, metrics.New())
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	if _, ok := s.(mail.InstrumentedSender); !ok {
		t.Errorf("sender = %T, want InstrumentedSender", s)
	}

	if _, err := NewSender(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587}, nil); err == nil {
		t.Error("SMTP without a from address should fail")
	}
}

func TestNewQueue(t *testing.T) {
	q := NewQueue(&config.Config{}, mail.LogSender{})
	if _, ok := q.(*mail.AsyncQueue); !ok {
		t.Errorf("queue = %T, want *AsyncQueue", q)
	}
	_ = q.Close()

	q = NewQueue(&config.Config{KafkaBrokers: "localhost:9092", MailKafkaTopic: "tenantdesk-mail"}, mail.LogSender{})
	if _, ok := q.(*mail.KafkaQueue); !ok {
		t.Errorf("queue = %T, want *KafkaQueue", q)
	}
	_ = q.Close()
}
