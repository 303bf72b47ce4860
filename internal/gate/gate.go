// Package gate converts externally submitted client requests into tasks.
// Approval is all-or-nothing: either the task exists and the request is
// finalized, or neither happened.
package gate

import (
	"context"
	"strings"
	"time"

	"studioflow/api/internal/feed"
	"studioflow/api/internal/logging"
	"studioflow/api/internal/rbac"
	"studioflow/api/internal/store"
	"studioflow/api/internal/util"
	"studioflow/api/internal/workflow"
)

type requestStore interface {
	GetClientRequest(ctx context.Context, requestID string) (store.ClientRequest, error)
	InsertClientRequest(ctx context.Context, request store.ClientRequest) (store.ClientRequest, error)
	ApproveClientRequest(ctx context.Context, requestID string, task store.Task, activity store.ActivityLogEntry) (store.Task, bool, error)
	RejectClientRequest(ctx context.Context, requestID, reason string, activity store.ActivityLogEntry) (bool, error)
}

type Gate struct {
	store  requestStore
	events feed.Publisher
}

func New(requestStore requestStore, events feed.Publisher) *Gate {
	return &Gate{store: requestStore, events: events}
}

// SubmitInput is what a client sends when asking for work.
type SubmitInput struct {
	ClientID    string
	Title       string
	Description string
	Department  store.Department
	Type        string
	DesiredDate *time.Time
}

// Submit records a new pending request.
func (g *Gate) Submit(ctx context.Context, input SubmitInput) (store.ClientRequest, error) {
	if strings.TrimSpace(input.ClientID) == "" {
		return store.ClientRequest{}, workflow.NewValidationError("client is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		return store.ClientRequest{}, workflow.NewValidationError("title is required")
	}
	if !validDepartment(input.Department) {
		return store.ClientRequest{}, workflow.NewValidationError("unknown department")
	}

	request, err := g.store.InsertClientRequest(ctx, store.ClientRequest{
		ID:          util.NewID("req"),
		ClientID:    input.ClientID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Department:  input.Department,
		Type:        input.Type,
		DesiredDate: input.DesiredDate,
	})
	if err != nil {
		return store.ClientRequest{}, workflow.Classify("insert client request", err)
	}
	return request, nil
}

// ApproveOptions tweak how the task is created from the request.
type ApproveOptions struct {
	// DefaultAssignee, when set, creates the task already assigned
	// instead of in the new state.
	DefaultAssignee string
	Priority        store.Priority
	ProjectID       string
}

// Approve creates a task from the request and finalizes the request in a
// single storage transaction. A request that is no longer pending fails
// with AlreadyFinalized and nothing is written.
func (g *Gate) Approve(ctx context.Context, requestID string, actor workflow.Actor, opts ApproveOptions) (store.Task, store.ClientRequest, error) {
	if !rbac.CanGate(actor.Role) {
		return store.Task{}, store.ClientRequest{}, workflow.NewForbiddenError("role " + string(actor.Role) + " may not approve client requests")
	}
	request, err := g.store.GetClientRequest(ctx, requestID)
	if err != nil {
		return store.Task{}, store.ClientRequest{}, workflow.Classify("get client request", err)
	}
	if request.Status != store.RequestPending {
		return store.Task{}, store.ClientRequest{}, workflow.NewAlreadyFinalizedError(requestID, request.Status)
	}

	priority := opts.Priority
	if priority == "" {
		priority = store.PriorityMedium
	}
	task := store.Task{
		ID:            util.NewID("tsk"),
		Title:         request.Title,
		Description:   request.Description,
		Department:    request.Department,
		Status:        store.StatusNew,
		Priority:      priority,
		WorkflowStage: request.Type,
		CreatorID:     actor.ID,
		ClientID:      request.ClientID,
		ProjectID:     opts.ProjectID,
		ScheduledDate: request.DesiredDate,
	}
	if opts.DefaultAssignee != "" {
		task.Status = store.StatusAssigned
		task.AssigneeID = opts.DefaultAssignee
	}

	created, ok, err := g.store.ApproveClientRequest(ctx, requestID, task, store.ActivityLogEntry{
		ActorID:    actor.ID,
		Action:     "client_request.approved",
		EntityKind: "client_request",
		EntityID:   requestID,
		Detail:     "created task " + task.ID,
	})
	if err != nil {
		return store.Task{}, store.ClientRequest{}, workflow.Classify("approve client request", err)
	}
	if !ok {
		// Someone finalized the request between our read and the
		// conditional write; the transaction rolled everything back.
		current, err := g.store.GetClientRequest(ctx, requestID)
		if err != nil {
			return store.Task{}, store.ClientRequest{}, workflow.Classify("get client request", err)
		}
		return store.Task{}, store.ClientRequest{}, workflow.NewAlreadyFinalizedError(requestID, current.Status)
	}

	finalized, err := g.store.GetClientRequest(ctx, requestID)
	if err != nil {
		return store.Task{}, store.ClientRequest{}, workflow.Classify("get client request", err)
	}

	if g.events == nil {
		return created, finalized, nil
	}
	if err := g.events.Publish(ctx, feed.ChangeEvent{
		Entity:     feed.EntityTask,
		Op:         feed.OpInsert,
		Task:       created,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		logging.With("gate").WithError(err).WithField("task", created.ID).Warn("failed to publish change event")
	}
	return created, finalized, nil
}

// Reject finalizes a pending request with a non-empty reason. No task is
// created.
func (g *Gate) Reject(ctx context.Context, requestID string, actor workflow.Actor, reason string) (store.ClientRequest, error) {
	if !rbac.CanGate(actor.Role) {
		return store.ClientRequest{}, workflow.NewForbiddenError("role " + string(actor.Role) + " may not reject client requests")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return store.ClientRequest{}, workflow.NewValidationError("rejection reason is required")
	}

	ok, err := g.store.RejectClientRequest(ctx, requestID, reason, store.ActivityLogEntry{
		ActorID:    actor.ID,
		Action:     "client_request.rejected",
		EntityKind: "client_request",
		EntityID:   requestID,
		Detail:     reason,
	})
	if err != nil {
		return store.ClientRequest{}, workflow.Classify("reject client request", err)
	}
	if !ok {
		current, err := g.store.GetClientRequest(ctx, requestID)
		if err != nil {
			return store.ClientRequest{}, workflow.Classify("get client request", err)
		}
		return store.ClientRequest{}, workflow.NewAlreadyFinalizedError(requestID, current.Status)
	}
	return g.store.GetClientRequest(ctx, requestID)
}

func validDepartment(dept store.Department) bool {
	for _, d := range store.Departments {
		if d == dept {
			return true
		}
	}
	return false
}
