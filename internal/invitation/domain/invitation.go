package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	memberdomain "tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/apperr"
)

var (
	ErrExpired         = errors.New("Invitation is expired")
	ErrAlreadyMember   = errors.New("User is already a member of the organization")
	ErrAlreadyAccepted = errors.New("Invitation is already accepted")
	// ErrNotEditable rejects changes to an accepted or expired invitation.
	ErrNotEditable = errors.New("Only pending invitations can be changed")
)

// State is the lifecycle position of an invitation.
type State string

const (
	StatePending  State = "pending"
	StateExpired  State = "expired"
	StateAccepted State = "accepted"
)

// Invitation admits a prospective member into an organization with a pre-assigned role.
// Key is the only external lookup handle.
type Invitation struct {
	ID         int64
	OrgID      int64
	Email      string
	Role       memberdomain.Role
	Key        string
	ExpiredAt  *time.Time
	IsExpired  bool
	IsAccepted bool
	MemberID   *int64
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
	CreatedBy  *int64
	UpdatedBy  *int64
}

// EnsureKey generates a random key on first persist. An existing key is never replaced.
func (i *Invitation) EnsureKey() {
	if i.Key == "" {
		i.Key = uuid.NewString()
	}
}

// State reports the lifecycle state at now, treating a passed expired_at as expired.
func (i *Invitation) State(now time.Time) State {
	switch {
	case i.IsAccepted:
		return StateAccepted
	case i.IsExpired, i.ExpiredAt != nil && i.ExpiredAt.Before(now):
		return StateExpired
	default:
		return StatePending
	}
}

// Validate checks email and expiry before create or update.
func (i *Invitation) Validate(now time.Time) error {
	i.Email = strings.TrimSpace(i.Email)
	if i.Email == "" {
		return apperr.Invalid("email", "This field may not be blank.")
	}
	if _, err := mail.ParseAddress(i.Email); err != nil {
		return apperr.Invalid("email", "Enter a valid email address.")
	}
	if !i.Role.Valid() {
		return apperr.Invalidf("role", "%q is not a valid choice.", string(i.Role))
	}
	return ValidateExpiry(i.ExpiredAt, now)
}

// ValidateExpiry requires expiredAt, when set, to be strictly after now.
func ValidateExpiry(expiredAt *time.Time, now time.Time) error {
	if expiredAt != nil && !expiredAt.After(now) {
		return apperr.Invalid("expired_at", "Expired date must be greater than now")
	}
	return nil
}

// CheckExpiry returns ErrExpired when the invitation cannot be accepted because of time.
// flipped is true when this call moved the invitation to expired; the caller must persist it.
func (i *Invitation) CheckExpiry(now time.Time) (flipped bool, err error) {
	if i.IsExpired {
		return false, ErrExpired
	}
	if i.ExpiredAt != nil && !i.ExpiredAt.After(now) {
		i.IsExpired = true
		return true, ErrExpired
	}
	return false, nil
}

// Accept links the invitation to memberID. Terminal invitations are never re-accepted.
func (i *Invitation) Accept(memberID int64) error {
	if i.IsAccepted {
		return ErrAlreadyAccepted
	}
	if i.IsExpired {
		return ErrExpired
	}
	i.MemberID = &memberID
	i.IsAccepted = true
	return nil
}

// TenantID returns the invitation's organization.
func (i *Invitation) TenantID() int64 { return i.OrgID }

// Filter narrows invitation listings inside one organization.
type Filter struct {
	OrgID         int64
	Email         string
	EmailContains string
	IsAccepted    *bool
	IsExpired     *bool
	ExpiredAt     *time.Time
	ExpiredAtGT   *time.Time
	ExpiredAtLT   *time.Time
	Roles         []string
}
