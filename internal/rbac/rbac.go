// Package rbac holds the single capability table gating workflow
// transitions: (role, fromStatus) -> set of allowed target statuses.
// Role checks happen here once instead of being scattered across call
// sites.
package rbac

import "studioflow/api/internal/store"

type Role string

const (
	RoleMember Role = "member"
	RoleLead   Role = "lead"
	RoleAdmin  Role = "admin"

	// RoleClient is an external principal. Clients submit requests and
	// read their own data; they never drive workflow transitions.
	RoleClient Role = "client"
)

// memberTargets covers the people doing the work: picking up an assigned
// task, submitting it for review, and re-entering the revision loop.
var memberTargets = map[store.TaskStatus][]store.TaskStatus{
	store.StatusAssigned:          {store.StatusInProgress},
	store.StatusInProgress:        {store.StatusSubmittedForReview},
	store.StatusRevisionRequested: {store.StatusInProgress},
}

// leadTargets adds the review verdicts and closing out approved work.
var leadTargets = map[store.TaskStatus][]store.TaskStatus{
	store.StatusAssigned:           {store.StatusInProgress},
	store.StatusInProgress:         {store.StatusSubmittedForReview},
	store.StatusRevisionRequested:  {store.StatusInProgress},
	store.StatusSubmittedForReview: {store.StatusApproved, store.StatusRevisionRequested},
	store.StatusApproved:           {store.StatusDone},
}

var targetsByRole = map[Role]map[store.TaskStatus][]store.TaskStatus{
	RoleMember: memberTargets,
	RoleLead:   leadTargets,
}

// CanTransition reports whether role may move a task from one status to
// the given target. Admins may take any edge; whether the edge exists in
// the lifecycle graph at all is checked separately by the workflow engine.
func CanTransition(role Role, from, to store.TaskStatus) bool {
	if role == RoleAdmin {
		return true
	}
	targets, ok := targetsByRole[role]
	if !ok {
		return false
	}
	for _, allowed := range targets[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanAssign reports whether role may hand new tasks to an assignee.
func CanAssign(role Role) bool {
	return role == RoleLead || role == RoleAdmin
}

// CanReview reports whether role may deliver review verdicts
// (approve / request revision) on submitted work.
func CanReview(role Role) bool {
	return role == RoleLead || role == RoleAdmin
}

// CanCancel reports whether role may cancel tasks.
func CanCancel(role Role) bool {
	return role == RoleLead || role == RoleAdmin
}

// CanGate reports whether role may approve or reject client requests.
func CanGate(role Role) bool {
	return role == RoleLead || role == RoleAdmin
}

// IsStaff reports whether role belongs to the internal team.
func IsStaff(role Role) bool {
	return role == RoleMember || role == RoleLead || role == RoleAdmin
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleMember, RoleLead, RoleAdmin, RoleClient:
		return Role(role)
	default:
		return RoleMember
	}
}
