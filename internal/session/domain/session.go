package domain

import "time"

// Session is a server-side login. OrgID is the active tenant chosen through organization login; nil until then.
type Session struct {
	ID               string     `json:"id"`
	UserID           int64      `json:"user_id"`
	OrgID            *int64     `json:"organization_id,omitempty"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	LastSeenAt       *time.Time `json:"last_seen_at,omitempty"`
	IPAddress        string     `json:"ip_address"`
	RefreshJti       string     `json:"refresh_jti"`
	RefreshTokenHash string     `json:"refresh_token_hash"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Active reports whether the session is neither revoked nor past its expiry at now.
func (s *Session) Active(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// OrganizationID returns the active tenant id, or 0 when none is selected.
func (s *Session) OrganizationID() int64 {
	if s == nil || s.OrgID == nil {
		return 0
	}
	return *s.OrgID
}
