package domain

import userdomain "tenantdesk/backend/internal/user/domain"

// TokenPair is a freshly issued access/refresh pair bound to one session.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenResult is what login and signup-style endpoints embed in their responses.
type TokenResult struct {
	TokenPair
	User userdomain.Summary `json:"user"`
}
