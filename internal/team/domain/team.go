package domain

import (
	"strings"
	"time"

	orgdomain "tenantdesk/backend/internal/organization/domain"
	"tenantdesk/backend/internal/platform/apperr"
)

// Team is a sub-group of one organization.
type Team struct {
	ID          int64
	OrgID       int64
	Name        string
	Slug        string
	Description *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CreatedBy   *int64
	UpdatedBy   *int64
}

// Validate normalizes and validates the team for persistence.
func (t *Team) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	t.Slug = strings.TrimSpace(t.Slug)
	if t.Name == "" {
		return apperr.Invalid("name", "This field may not be blank.")
	}
	if len(t.Name) > 100 {
		return apperr.Invalid("name", "Ensure this field has no more than 100 characters.")
	}
	return orgdomain.ValidateSlug(t.Slug)
}

func (t *Team) TenantID() int64 { return t.OrgID }

// Filter narrows team listings inside one organization.
type Filter struct {
	OrgID        int64
	Name         string
	NameContains string
	Slug         string
	SlugContains string
}
