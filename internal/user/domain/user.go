package domain

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"tenantdesk/backend/internal/platform/apperr"
)

// MinPasswordLength applies to passwords chosen through password reset.
const MinPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// User is an identity record. It is independent of any organization.
type User struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsSuperuser  bool
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    *int64
	UpdatedBy    *int64
}

// FullName returns the display name: "first last" when both are set, then the last name,
// then the first name, then the username.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case last != "":
		return last
	case first != "":
		return first
	default:
		return u.Username
	}
}

// Summary is the public projection of a user returned next to issued tokens.
type Summary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Summary returns the public projection of u.
func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

// Validate normalizes and validates profile fields. The password is checked separately.
func (u *User) Validate() error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	switch {
	case u.Username == "":
		return apperr.Invalid("username", "This field may not be blank.")
	case len(u.Username) > 150:
		return apperr.Invalid("username", "Ensure this field has no more than 150 characters.")
	case !usernamePattern.MatchString(u.Username):
		return apperr.Invalid("username",
			"Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if u.Email != "" {
		if _, err := mail.ParseAddress(u.Email); err != nil {
			return apperr.Invalid("email", "Enter a valid email address.")
		}
	}
	return nil
}

// ValidatePassword rejects an empty password on paths that require one.
func ValidatePassword(password string) error {
	if password == "" {
		return apperr.Invalid("password", "Password cannot be empty.")
	}
	return nil
}
