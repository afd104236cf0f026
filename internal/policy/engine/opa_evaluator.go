// Package engine evaluates per-organization Rego policies that can veto changes the built-in
// role rules already allowed.
package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/policy/repository"
)

// Query is the Rego rule every organization policy must define.
const Query = "data.tenantdesk.access.allow"

// DefaultPolicy allows everything; organizations without enabled policies behave as if it were loaded.
const DefaultPolicy = `package tenantdesk.access

default allow := true
`

// Request is the input document handed to Rego as input.
type Request struct {
	OrgID       int64          `json:"org_id"`
	Resource    string         `json:"resource"`
	Action      string         `json:"action"`
	UserID      int64          `json:"user_id"`
	IsSuperuser bool           `json:"is_superuser"`
	MemberID    int64          `json:"member_id"`
	Role        string         `json:"role"`
	Object      map[string]any `json:"object"`
}

func (r Request) input() map[string]any {
	obj := r.Object
	if obj == nil {
		obj = map[string]any{}
	}
	return map[string]any{
		"org_id":   r.OrgID,
		"resource": r.Resource,
		"action":   r.Action,
		"user": map[string]any{
			"id":           r.UserID,
			"is_superuser": r.IsSuperuser,
		},
		"member": map[string]any{
			"id":   r.MemberID,
			"role": r.Role,
		},
		"object": obj,
	}
}

// OPAEvaluator evaluates organization access policies using OPA Rego.
type OPAEvaluator struct {
	policyRepo repository.Repository
}

// NewOPAEvaluator returns an OPA-based policy evaluator.
func NewOPAEvaluator(policyRepo repository.Repository) *OPAEvaluator {
	return &OPAEvaluator{policyRepo: policyRepo}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy repo or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	allowed, err := evaluate(ctx, []string{DefaultPolicy}, Request{Resource: "organization", Action: "update"})
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if !allowed {
		return fmt.Errorf("default policy denied a request")
	}
	return nil
}

// Allow reports whether the organization's enabled policies permit req.
// Load or evaluation failures are logged and allow, since the built-in rules have already decided.
func (e *OPAEvaluator) Allow(ctx context.Context, req Request) (bool, error) {
	if e.policyRepo == nil || req.OrgID == 0 {
		return true, nil
	}
	enabled, err := e.policyRepo.ListEnabledByOrg(ctx, req.OrgID)
	if err != nil {
		logger.Ctx(ctx).Warnw("policy: load failed", "org_id", req.OrgID, "error", err)
		return true, nil
	}
	var modules []string
	for _, p := range enabled {
		if p.Enabled && p.Rules != "" {
			modules = append(modules, p.Rules)
		}
	}
	if len(modules) == 0 {
		return true, nil
	}
	allowed, err := evaluate(ctx, modules, req)
	if err != nil {
		logger.Ctx(ctx).Warnw("policy: evaluation failed, allowing", "org_id", req.OrgID, "error", err)
		return true, nil
	}
	return allowed, nil
}

// Validate compiles rules on their own and checks they define the allow rule.
func Validate(ctx context.Context, rules string) error {
	if _, err := evaluate(ctx, []string{rules}, Request{}); err != nil {
		return err
	}
	return nil
}

func evaluate(ctx context.Context, policies []string, req Request) (bool, error) {
	modules := make(map[string]string, len(policies))
	for i, p := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = p
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return false, fmt.Errorf("compile policies: %w", err)
	}
	rs, err := rego.New(
		rego.Query(Query),
		rego.Compiler(compiler),
		rego.Input(req.input()),
	).Eval(ctx)
	if err != nil {
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("policy query returned no result")
	}
	allowed, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("allow must be a boolean, got %T", rs[0].Expressions[0].Value)
	}
	return allowed, nil
}
