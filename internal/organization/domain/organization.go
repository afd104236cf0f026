package domain

import (
	"regexp"
	"strings"
	"time"

	"tenantdesk/backend/internal/platform/apperr"
)

// Org is the tenant root. OwnerID is nil only while the organization is being created.
type Org struct {
	ID        int64
	Name      string
	Slug      string
	OwnerID   *int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	CreatedBy *int64
	UpdatedBy *int64
}

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// Validate normalizes and validates the organization for persistence. Returns the first validation failure.
func (o *Org) Validate() error {
	o.Name = strings.TrimSpace(o.Name)
	o.Slug = strings.TrimSpace(o.Slug)
	if o.Name == "" {
		return apperr.Invalid("name", "This field may not be blank.")
	}
	if len(o.Name) > 100 {
		return apperr.Invalid("name", "Ensure this field has no more than 100 characters.")
	}
	return ValidateSlug(o.Slug)
}

// ValidateSlug checks that slug is non-empty and made of letters, numbers, underscores or hyphens.
func ValidateSlug(slug string) error {
	if slug == "" {
		return apperr.Invalid("slug", "This field may not be blank.")
	}
	if !slugPattern.MatchString(slug) {
		return apperr.Invalid("slug", `Enter a valid "slug" consisting of letters, numbers, underscores or hyphens.`)
	}
	return nil
}

// TenantID returns the organization itself as the tenant.
func (o *Org) TenantID() int64 { return o.ID }

// Filter narrows organization listings.
type Filter struct {
	Name         string
	NameContains string
	Slug         string
	SlugContains string
	// IsActive defaults to true when nil.
	IsActive *bool
}
