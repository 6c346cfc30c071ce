// Package access is the single decision point for role-based route
// permission. Menu construction, route guards and deep-link checks all
// consult the same table through the same pure function, so they cannot
// disagree.
package access

import (
	"strings"

	"github.com/mentorlink/go-mentor-client/identity"
)

// Decision is the outcome of a permission check. Denials are distinct states,
// never exceptions: each renders a different view.
type Decision int

const (
	Allow Decision = iota
	// SignInRequired: no identity, redirect to sign-in
	SignInRequired
	// VerificationRequired: mentee with an unverified email. Not the same as
	// SignInRequired; rendering it as a login redirect would loop.
	VerificationRequired
	// PendingApproval: mentor awaiting admin approval
	PendingApproval
	// Forbidden: authenticated but the route's role set excludes this role
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case SignInRequired:
		return "sign-in required"
	case VerificationRequired:
		return "verification required"
	case PendingApproval:
		return "pending approval"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Rules maps a route to the set of roles permitted to view it. A route with
// no entry requires authentication only.
type Rules map[string][]identity.Role

var allRoles = []identity.Role{identity.RoleAdmin, identity.RoleMentor, identity.RoleMentee}

// DefaultRules is the platform's route permission table. Nested routes are
// listed explicitly rather than leaning on prefix fallback.
var DefaultRules = Rules{
	// Admin-only routes
	"/admin":         {identity.RoleAdmin},
	"/users":         {identity.RoleAdmin},
	"/announcements": {identity.RoleAdmin},

	// Mentor-only routes
	"/mentor":         {identity.RoleMentor},
	"/mentor/mentees": {identity.RoleMentor},

	// Mentee-only routes
	"/mentee":         {identity.RoleMentee},
	"/mentee/mentors": {identity.RoleMentee},

	// Admin and mentor routes
	"/sessions": {identity.RoleAdmin, identity.RoleMentor},

	// Shared routes, all authenticated users
	"/calendar":   allRoles,
	"/resources":  allRoles,
	"/chat":       allRoles,
	"/profile":    allRoles,
	"/video-call": allRoles,
}

// Decide is the pure permission function from (identity, route) to a
// Decision. A nested route inherits its longest matching prefix's rule when
// it has no rule of its own.
func (r Rules) Decide(user *identity.User, route string) Decision {
	if user == nil {
		return SignInRequired
	}
	if user.UnverifiedMentee() {
		return VerificationRequired
	}
	if user.PendingMentor() {
		return PendingApproval
	}

	roles, ok := r.lookup(route)
	if !ok {
		return Allow
	}
	for _, role := range roles {
		if role == user.Role {
			return Allow
		}
	}
	return Forbidden
}

// lookup finds the rule for route, walking from the longest concrete prefix
// down to the first path segment
func (r Rules) lookup(route string) ([]identity.Role, bool) {
	path := strings.TrimRight(route, "/")
	for path != "" && path != "/" {
		if roles, ok := r[path]; ok {
			return roles, true
		}
		idx := strings.LastIndex(path, "/")
		if idx <= 0 {
			break
		}
		path = path[:idx]
	}
	return nil, false
}

// Landing returns the role-specific default landing route. The root path is
// never rendered directly; when allowed at all it resolves here.
func Landing(user *identity.User) string {
	if user == nil {
		return "/login"
	}
	switch user.Role {
	case identity.RoleAdmin:
		return "/admin"
	case identity.RoleMentor:
		return "/mentor"
	case identity.RoleMentee:
		return "/mentee"
	}
	return "/login"
}
