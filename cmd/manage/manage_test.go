package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	auditdomain "tenantdesk/backend/internal/audit/domain"
	"tenantdesk/backend/internal/policy/domain"
)

type fakePolicyRepo struct {
	upserted []*domain.Policy
	err      error
}

func (f *fakePolicyRepo) ListByOrg(context.Context, int64) ([]*domain.Policy, error) {
	return f.upserted, nil
}

func (f *fakePolicyRepo) ListEnabledByOrg(context.Context, int64) ([]*domain.Policy, error) {
	return nil, nil
}

func (f *fakePolicyRepo) Upsert(_ context.Context, p *domain.Policy) error {
	if f.err != nil {
		return f.err
	}
	p.ID = "p-1"
	f.upserted = append(f.upserted, p)
	return nil
}

func (f *fakePolicyRepo) SetEnabled(context.Context, int64, string, bool) (bool, error) {
	return true, nil
}

const denyTeamDeletes = `package tenantdesk.access

default allow := true

allow := false if {
	input.resource == "team"
	input.action == "delete"
	input.member.role != "owner"
}
`

func TestLoadPolicy(t *testing.T) {
	ctx := context.Background()
	repo := &fakePolicyRepo{}

	p, err := loadPolicy(ctx, repo, 3, "  no-team-deletes ", denyTeamDeletes, true)
	if err != nil {
		t.Fatalf("loadPolicy: %v", err)
	}
	if p.Name != "no-team-deletes" || p.ID != "p-1" || !p.Enabled {
		t.Errorf("policy = %+v", p)
	}
	if len(repo.upserted) != 1 {
		t.Fatalf("upserted %d policies, want 1", len(repo.upserted))
	}

	if _, err := loadPolicy(ctx, repo, 3, "broken", "package tenantdesk.access\nallow := ", true); err == nil {
		t.Error("uncompilable rules must be rejected")
	}
	if _, err := loadPolicy(ctx, repo, 0, "x", denyTeamDeletes, true); err == nil {
		t.Error("missing org must be rejected")
	}
	if _, err := loadPolicy(ctx, repo, 3, "", denyTeamDeletes, true); err == nil {
		t.Error("blank name must be rejected")
	}
	if len(repo.upserted) != 1 {
		t.Errorf("invalid policies must not be stored, have %d", len(repo.upserted))
	}

	repo.err = errors.New("db down")
	if _, err := loadPolicy(ctx, repo, 3, "x", denyTeamDeletes, true); err == nil {
		t.Error("repository errors must propagate")
	}
}

func TestPrintPolicies(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := printPolicies(&buf, []*domain.Policy{{Name: "no-team-deletes", Enabled: true, UpdatedAt: at}}); err != nil {
		t.Fatalf("printPolicies: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "NAME") || !strings.Contains(out, "no-team-deletes") || !strings.Contains(out, "2026-03-01 09:30:00") {
		t.Errorf("output = %q", out)
	}
}

func TestPrintAudit(t *testing.T) {
	var buf bytes.Buffer
	uid := int64(7)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	entries := []*auditdomain.AuditLog{
		{UserID: &uid, Action: "role_changed", Resource: "member", IP: "203.0.113.9", CreatedAt: at},
		{Action: "login", Resource: "session", IP: "unknown", CreatedAt: at},
	}
	if err := printAudit(&buf, entries); err != nil {
		t.Fatalf("printAudit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[1], "7") || !strings.Contains(lines[1], "role_changed") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "-") {
		t.Errorf("anonymous entry should show '-' for the user: %q", lines[2])
	}
}

func TestCommandTree(t *testing.T) {
	want := map[string]bool{"migrate": false, "expire-invites": false, "seed": false, "policy": false, "audit": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
