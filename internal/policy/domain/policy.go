package domain

import (
	"strings"
	"time"

	"tenantdesk/backend/internal/platform/apperr"
)

// Policy is a Rego module that narrows what members of one organization may change.
type Policy struct {
	ID        string
	OrgID     int64
	Name      string
	Rules     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate trims the name and requires both a name and rules.
func (p *Policy) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return apperr.Invalid("name", "This field may not be blank.")
	}
	if strings.TrimSpace(p.Rules) == "" {
		return apperr.Invalid("rules", "This field may not be blank.")
	}
	return nil
}

// TenantID returns the organization the policy applies to.
func (p *Policy) TenantID() int64 { return p.OrgID }
