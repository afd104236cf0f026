package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from a route.
type ActionResource struct {
	Action   string
	Resource string
}

// Routes whose audit action is not the plain CRUD verb. Keys are chi route patterns without the
// trailing slash.
var routeOverrides = map[string]ActionResource{
	"/api/auth/token":                                {Action: "login", Resource: "session"},
	"/api/auth/token/refresh":                        {Action: "refresh", Resource: "session"},
	"/api/auth/token/verify":                         {Action: "verify", Resource: "session"},
	"/api/auth/logout":                               {Action: "logout", Resource: "session"},
	"/api/auth/password/reset":                       {Action: "password_reset_requested", Resource: "user"},
	"/api/auth/password/reset/confirm":               {Action: "password_reset", Resource: "user"},
	"/api/accounts/signup":                           {Action: "signup", Resource: "user"},
	"/api/accounts/members/create-with-invite/{key}": {Action: "member_added", Resource: "member"},
	"/api/accounts/members/{id}/update_role":         {Action: "role_changed", Resource: "member"},
}

// ParseRoute returns action and resource for a request method and chi route pattern
// (e.g. PUT /api/teams/teams/{id} is update on team).
// Collection routes map POST to create and GET to list; object routes map GET, PUT/PATCH and
// DELETE to get, update and delete. A trailing segment after an object id is the action itself
// (organizations/{id}/login is login on organization). Removing a member is member_removed.
func ParseRoute(method, pattern string) ActionResource {
	pattern = strings.TrimSuffix(pattern, "/")
	if ar, ok := routeOverrides[pattern]; ok {
		return ar
	}
	if method == http.MethodDelete && pattern == "/api/accounts/members/{id}" {
		return ActionResource{Action: "member_removed", Resource: "member"}
	}
	segs := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	if len(segs) < 3 || segs[0] != "api" {
		return ActionResource{Action: strings.ToLower(method), Resource: "unknown"}
	}
	segs = segs[2:]
	resource := collectionToResource(segs[0])
	switch {
	case len(segs) == 1 || segs[1] == "choices":
		if method == http.MethodPost {
			return ActionResource{Action: "create", Resource: resource}
		}
		return ActionResource{Action: "list", Resource: resource}
	case len(segs) == 2 && isParam(segs[1]):
		return ActionResource{Action: methodToAction(method), Resource: resource}
	default:
		return ActionResource{Action: strings.ReplaceAll(segs[len(segs)-1], "-", "_"), Resource: resource}
	}
}

func isParam(seg string) bool { return strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") }

// collectionToResource maps a plural path segment to a resource name: team-members -> team_member.
func collectionToResource(seg string) string {
	if seg == "" {
		return "unknown"
	}
	return strings.ReplaceAll(strings.TrimSuffix(seg, "s"), "-", "_")
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet:
		return "get"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
