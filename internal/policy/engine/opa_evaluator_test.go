package engine

import (
	"context"
	"errors"
	"testing"

	"tenantdesk/backend/internal/policy/domain"
	"tenantdesk/backend/internal/policy/repository"
)

// mockPolicyRepo implements repository.Repository for tests.
type mockPolicyRepo struct {
	policies map[int64][]*domain.Policy
	err      error
}

var _ repository.Repository = (*mockPolicyRepo)(nil)

func (m *mockPolicyRepo) ListByOrg(ctx context.Context, orgID int64) ([]*domain.Policy, error) {
	return m.policies[orgID], nil
}

func (m *mockPolicyRepo) ListEnabledByOrg(ctx context.Context, orgID int64) ([]*domain.Policy, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.Policy
	for _, p := range m.policies[orgID] {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPolicyRepo) Upsert(ctx context.Context, p *domain.Policy) error { return nil }

func (m *mockPolicyRepo) SetEnabled(ctx context.Context, orgID int64, name string, enabled bool) (bool, error) {
	return false, nil
}

const ownersOnlyDelete = `package tenantdesk.access

default allow := true

allow := false if {
	input.resource == "member"
	input.action == "delete"
	input.member.role != "owner"
}
`

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	// HealthCheck does not touch the repository.
	e := NewOPAEvaluator(nil)
	if err := e.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_Allow_NoPolicies(t *testing.T) {
	e := NewOPAEvaluator(&mockPolicyRepo{policies: map[int64][]*domain.Policy{}})
	ok, err := e.Allow(context.Background(), Request{OrgID: 1, Resource: "member", Action: "delete", Role: "admin"})
	if err != nil || !ok {
		t.Fatalf("Allow without policies = %v, %v; want true, nil", ok, err)
	}
}

func TestOPAEvaluator_Allow_OrgPolicy(t *testing.T) {
	repo := &mockPolicyRepo{policies: map[int64][]*domain.Policy{
		1: {{OrgID: 1, Name: "owners-delete", Rules: ownersOnlyDelete, Enabled: true}},
	}}
	e := NewOPAEvaluator(repo)
	ctx := context.Background()

	testCases := []struct {
		name string
		req  Request
		want bool
	}{
		{"admin delete denied", Request{OrgID: 1, Resource: "member", Action: "delete", Role: "admin"}, false},
		{"owner delete allowed", Request{OrgID: 1, Resource: "member", Action: "delete", Role: "owner"}, true},
		{"admin update allowed", Request{OrgID: 1, Resource: "member", Action: "update", Role: "admin"}, true},
		{"other org unaffected", Request{OrgID: 2, Resource: "member", Action: "delete", Role: "admin"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Allow(ctx, tc.req)
			if err != nil {
				t.Fatalf("Allow: %v", err)
			}
			if got != tc.want {
				t.Errorf("Allow = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOPAEvaluator_Allow_DisabledPolicyIgnored(t *testing.T) {
	repo := &mockPolicyRepo{policies: map[int64][]*domain.Policy{
		1: {{OrgID: 1, Name: "owners-delete", Rules: ownersOnlyDelete, Enabled: false}},
	}}
	ok, _ := NewOPAEvaluator(repo).Allow(context.Background(), Request{OrgID: 1, Resource: "member", Action: "delete", Role: "admin"})
	if !ok {
		t.Error("disabled policy must not deny")
	}
}

func TestOPAEvaluator_Allow_FailuresAllow(t *testing.T) {
	ctx := context.Background()
	req := Request{OrgID: 1, Resource: "member", Action: "delete"}

	if ok, err := NewOPAEvaluator(&mockPolicyRepo{err: errors.New("db down")}).Allow(ctx, req); !ok || err != nil {
		t.Errorf("repo error: got %v, %v; want true, nil", ok, err)
	}

	broken := &mockPolicyRepo{policies: map[int64][]*domain.Policy{
		1: {{OrgID: 1, Name: "broken", Rules: "package tenantdesk.access\n\nallow := {", Enabled: true}},
	}}
	if ok, err := NewOPAEvaluator(broken).Allow(ctx, req); !ok || err != nil {
		t.Errorf("compile error: got %v, %v; want true, nil", ok, err)
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	if err := Validate(ctx, ownersOnlyDelete); err != nil {
		t.Errorf("Validate(valid) = %v", err)
	}
	if err := Validate(ctx, "package tenantdesk.access\n\nallow := {"); err == nil {
		t.Error("Validate should reject a module that does not compile")
	}
	if err := Validate(ctx, "package tenantdesk.other\n\ndefault allow := true\n"); err == nil {
		t.Error("Validate should reject a module without tenantdesk.access.allow")
	}
}
