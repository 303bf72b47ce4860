// Package workflow is the task lifecycle engine: it validates and
// applies status transitions, keeps the revision counter honest, and is
// the only code path allowed to change a task's status.
package workflow

import (
	"context"
	"strings"
	"time"

	"studioflow/api/internal/feed"
	"studioflow/api/internal/logging"
	"studioflow/api/internal/rbac"
	"studioflow/api/internal/store"
	"studioflow/api/internal/util"
)

// graph is the task lifecycle. cancelled is reachable from every
// non-terminal state and handled separately in edgeExists.
var graph = map[store.TaskStatus][]store.TaskStatus{
	store.StatusNew:                {store.StatusAssigned},
	store.StatusAssigned:           {store.StatusInProgress},
	store.StatusInProgress:         {store.StatusSubmittedForReview},
	store.StatusSubmittedForReview: {store.StatusApproved, store.StatusRevisionRequested},
	store.StatusRevisionRequested:  {store.StatusInProgress},
	store.StatusApproved:           {store.StatusDone},
}

func edgeExists(from, to store.TaskStatus) bool {
	if to == store.StatusCancelled {
		return !from.Terminal()
	}
	for _, target := range graph[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Actor is the authenticated identity performing an operation. It comes
// from the external identity provider and is treated as opaque input.
type Actor struct {
	ID   string
	Role rbac.Role
}

type taskStore interface {
	GetTask(ctx context.Context, taskID string) (store.Task, error)
	TransitionTask(ctx context.Context, taskID string, expected store.TaskStatus, patch store.TaskPatch) (store.Task, bool, error)
	InsertComment(ctx context.Context, comment store.Comment) (store.Comment, error)
}

// ActivitySink receives one audit entry per successful transition. It is
// fire-and-forget from the engine's point of view but is never skipped.
type ActivitySink interface {
	Append(ctx context.Context, entry store.ActivityLogEntry)
}

// EscalationNotifier is told about revision-cap overruns. Advisory only.
type EscalationNotifier interface {
	Escalate(ctx context.Context, signal EscalationSignal)
}

type Engine struct {
	store       taskStore
	activity    ActivitySink
	events      feed.Publisher
	escalations EscalationNotifier
	revisions   RevisionPolicy
}

func NewEngine(taskStore taskStore, activity ActivitySink, events feed.Publisher, escalations EscalationNotifier, revisions RevisionPolicy) *Engine {
	return &Engine{
		store:       taskStore,
		activity:    activity,
		events:      events,
		escalations: escalations,
		revisions:   revisions,
	}
}

// Revisions exposes the active revision policy for derived task views.
func (e *Engine) Revisions() RevisionPolicy {
	return e.revisions
}

// Assign sets the assignee and moves the task from new to assigned. Any
// other starting status is an invalid transition, and only roles that
// hand out work may take the edge.
func (e *Engine) Assign(ctx context.Context, taskID string, actor Actor, assigneeID string) (store.Task, error) {
	if strings.TrimSpace(assigneeID) == "" {
		return store.Task{}, errValidation("assignee is required")
	}
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, Classify("get task", err)
	}
	if task.Status != store.StatusNew {
		return store.Task{}, errInvalidTransition(task.Status, store.StatusAssigned)
	}
	if !rbac.CanAssign(actor.Role) {
		return store.Task{}, errForbidden(actor.Role, task.Status, store.StatusAssigned)
	}

	updated, ok, err := e.store.TransitionTask(ctx, taskID, store.StatusNew, store.TaskPatch{
		Status:     store.StatusAssigned,
		AssigneeID: &assigneeID,
	})
	if err != nil {
		return store.Task{}, Classify("transition task", err)
	}
	if !ok {
		return store.Task{}, errConflict(taskID)
	}

	e.recordTransition(ctx, actor, updated, "task.assigned", "assigned to "+assigneeID)
	return updated, nil
}

// Advance moves the task along one lifecycle edge. The graph check runs
// before the role check so callers can tell an impossible move from a
// disallowed one.
func (e *Engine) Advance(ctx context.Context, taskID string, actor Actor, target store.TaskStatus) (store.Task, error) {
	if target == store.StatusCancelled {
		return store.Task{}, errValidation("cancellation requires a reason, use the cancel operation")
	}
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, Classify("get task", err)
	}
	if !edgeExists(task.Status, target) {
		return store.Task{}, errInvalidTransition(task.Status, target)
	}
	if !rbac.CanTransition(actor.Role, task.Status, target) {
		return store.Task{}, errForbidden(actor.Role, task.Status, target)
	}

	patch := store.TaskPatch{Status: target}
	if target == store.StatusRevisionRequested {
		// Entering the revision loop always counts, even without a note.
		patch.IncrementRevision = true
	}
	updated, ok, err := e.store.TransitionTask(ctx, taskID, task.Status, patch)
	if err != nil {
		return store.Task{}, Classify("transition task", err)
	}
	if !ok {
		return store.Task{}, errConflict(taskID)
	}

	e.recordTransition(ctx, actor, updated, "task."+string(target), string(task.Status)+" -> "+string(target))
	if signal := e.revisions.signal(updated, ""); signal != nil {
		e.notifyEscalation(ctx, *signal)
	}
	return updated, nil
}

// RequestRevision moves a submitted task back into the revision loop,
// bumps the counter, and files the review note as a comment. When the
// counter runs past the cap the transition still happens and the
// escalation signal is returned for the caller to surface.
func (e *Engine) RequestRevision(ctx context.Context, taskID string, actor Actor, note string) (store.Task, *EscalationSignal, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return store.Task{}, nil, errValidation("revision note is required")
	}
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, nil, Classify("get task", err)
	}
	if task.Status != store.StatusSubmittedForReview {
		return store.Task{}, nil, errInvalidTransition(task.Status, store.StatusRevisionRequested)
	}
	if !rbac.CanTransition(actor.Role, task.Status, store.StatusRevisionRequested) {
		return store.Task{}, nil, errForbidden(actor.Role, task.Status, store.StatusRevisionRequested)
	}

	updated, ok, err := e.store.TransitionTask(ctx, taskID, store.StatusSubmittedForReview, store.TaskPatch{
		Status:            store.StatusRevisionRequested,
		IncrementRevision: true,
	})
	if err != nil {
		return store.Task{}, nil, Classify("transition task", err)
	}
	if !ok {
		return store.Task{}, nil, errConflict(taskID)
	}

	if _, err := e.store.InsertComment(ctx, store.Comment{
		ID:       util.NewID("cmt"),
		TaskID:   taskID,
		AuthorID: actor.ID,
		Body:     note,
	}); err != nil {
		logging.With("workflow").WithError(err).WithField("task", taskID).Error("failed to record revision note")
	}

	e.recordTransition(ctx, actor, updated, "task.revision_requested", note)

	signal := e.revisions.signal(updated, note)
	if signal != nil {
		e.notifyEscalation(ctx, *signal)
	}
	return updated, signal, nil
}

// Cancel moves any non-terminal task to cancelled. Cancelling an already
// cancelled task is a no-op success and logs nothing new.
func (e *Engine) Cancel(ctx context.Context, taskID string, actor Actor, reason string) (store.Task, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return store.Task{}, errValidation("cancellation reason is required")
	}
	if !rbac.CanCancel(actor.Role) {
		return store.Task{}, errForbidden(actor.Role, "", store.StatusCancelled)
	}
	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return store.Task{}, Classify("get task", err)
	}
	if task.Status == store.StatusCancelled {
		return task, nil
	}
	if task.Status.Terminal() {
		return store.Task{}, errInvalidTransition(task.Status, store.StatusCancelled)
	}

	updated, ok, err := e.store.TransitionTask(ctx, taskID, task.Status, store.TaskPatch{
		Status:       store.StatusCancelled,
		CancelReason: &reason,
	})
	if err != nil {
		return store.Task{}, Classify("transition task", err)
	}
	if !ok {
		// Lost the race. If the winner cancelled it too, that is still a
		// success for this caller.
		current, err := e.store.GetTask(ctx, taskID)
		if err != nil {
			return store.Task{}, Classify("get task", err)
		}
		if current.Status == store.StatusCancelled {
			return current, nil
		}
		return store.Task{}, errConflict(taskID)
	}

	e.recordTransition(ctx, actor, updated, "task.cancelled", reason)
	return updated, nil
}

// recordTransition appends exactly one activity entry and publishes one
// change event for a successful transition.
func (e *Engine) recordTransition(ctx context.Context, actor Actor, task store.Task, action, detail string) {
	e.activity.Append(ctx, store.ActivityLogEntry{
		ActorID:    actor.ID,
		Action:     action,
		EntityKind: "task",
		EntityID:   task.ID,
		Detail:     detail,
	})
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, feed.ChangeEvent{
		Entity:     feed.EntityTask,
		Op:         feed.OpUpdate,
		Task:       task,
		OccurredAt: time.Now().UTC(),
	}); err != nil {
		logging.With("workflow").WithError(err).WithField("task", task.ID).Warn("failed to publish change event")
	}
}

func (e *Engine) notifyEscalation(ctx context.Context, signal EscalationSignal) {
	if e.escalations == nil {
		return
	}
	e.escalations.Escalate(ctx, signal)
}
