package core

import "strings"

// RolePolicy gates decisions by actor role. An action with no configured
// roles permits every role; configured lists are exact allow-lists.
type RolePolicy struct {
	approve map[string]struct{}
	reject  map[string]struct{}
}

func NewRolePolicy(cfg PolicyConfig) RolePolicy {
	return RolePolicy{
		approve: toRoleSet(cfg.ApproveRoles),
		reject:  toRoleSet(cfg.RejectRoles),
	}
}

func (p RolePolicy) Allows(action ApprovalAction, role string) bool {
	roles := p.approve
	if action == ActionReject {
		roles = p.reject
	}
	if len(roles) == 0 {
		return true
	}
	_, ok := roles[strings.TrimSpace(strings.ToLower(role))]
	return ok
}

func toRoleSet(roles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		set[role] = struct{}{}
	}
	return set
}
