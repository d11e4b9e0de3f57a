package ratelimit

import "time"

// Action identifies the request path being limited.
type Action string

const (
	ActionCreate    Action = "create"
	ActionRedirect  Action = "redirect"
	ActionAnalytics Action = "analytics"
)

// Role identifies the caller tier, supplied pre-authenticated by the HTTP layer.
type Role string

const (
	RoleFree    Role = "free"
	RolePremium Role = "premium"
	RoleAdmin   Role = "admin"
)

// Policy is one (role, action) quota: Limit requests per Window.
type Policy struct {
	Limit  int64
	Window time.Duration
}

// policies is the static quota table. All windows share the one-hour length;
// only the ceilings differ per tier and action.
var policies = map[Role]map[Action]Policy{
	RoleFree: {
		ActionCreate:    {Limit: 10, Window: time.Hour},
		ActionRedirect:  {Limit: 1000, Window: time.Hour},
		ActionAnalytics: {Limit: 50, Window: time.Hour},
	},
	RolePremium: {
		ActionCreate:    {Limit: 100, Window: time.Hour},
		ActionRedirect:  {Limit: 10000, Window: time.Hour},
		ActionAnalytics: {Limit: 500, Window: time.Hour},
	},
	RoleAdmin: {
		ActionCreate:    {Limit: 1000, Window: time.Hour},
		ActionRedirect:  {Limit: 100000, Window: time.Hour},
		ActionAnalytics: {Limit: 5000, Window: time.Hour},
	},
}

// PolicyFor returns the quota for a (role, action) pair. Unknown roles fall
// back to the free tier; unknown actions fall back to the tier's redirect
// policy so a zero-width window can never reach the limiter's arithmetic.
func PolicyFor(role Role, action Action) Policy {
	byAction, ok := policies[role]
	if !ok {
		byAction = policies[RoleFree]
	}
	policy, ok := byAction[action]
	if !ok {
		policy = byAction[ActionRedirect]
	}
	return policy
}
