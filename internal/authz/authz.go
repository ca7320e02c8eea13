// Package authz decides whether an actor may perform an action on a task,
// given the task's ownership facts. It performs no I/O; every fact is an input.
package authz

import "github.com/yukikurage/task-tracker-api/internal/models"

// Actor is the authenticated identity requesting an action.
type Actor struct {
	ID   uint64
	Role models.Role
}

// Ownership holds a task's creator and assignee identifiers.
type Ownership struct {
	CreatedBy  uint64
	AssignedTo uint64
}

// Action is a resource-scoped operation subject to an authorization decision.
type Action int

const (
	ActionRead Action = iota
	ActionUpdate
	ActionUpdateStatus
	ActionAssign
	ActionDelete
	ActionManageUsers
)

// Can evaluates the policy as a union of allow clauses: the first satisfied
// clause wins and ordering cannot change the outcome.
func Can(actor Actor, action Action, ownership Ownership) bool {
	isCreator := actor.ID == ownership.CreatedBy
	isAssignee := actor.ID == ownership.AssignedTo
	isAdmin := actor.Role == models.RoleAdmin

	switch action {
	case ActionRead, ActionUpdate, ActionUpdateStatus, ActionAssign:
		return isCreator || isAssignee || isAdmin
	case ActionDelete:
		// Assignee alone may not delete.
		return isCreator || isAdmin
	case ActionManageUsers:
		return isAdmin
	}
	return false
}
