// Package notify carries side effects out of the workflow path: the
// append-only activity trail and escalation delivery.
package notify

import (
	"context"

	"studioflow/api/internal/logging"
	"studioflow/api/internal/store"
)

type activityStore interface {
	AppendActivity(ctx context.Context, entry store.ActivityLogEntry) (store.ActivityLogEntry, error)
}

// ActivityRecorder writes workflow activity to the store. Append never
// fails the calling transition; a lost row is logged and the transition
// stands.
type ActivityRecorder struct {
	store activityStore
}

func NewActivityRecorder(s activityStore) *ActivityRecorder {
	return &ActivityRecorder{store: s}
}

func (r *ActivityRecorder) Append(ctx context.Context, entry store.ActivityLogEntry) {
	if _, err := r.store.AppendActivity(ctx, entry); err != nil {
		logging.With("notify").WithError(err).WithField("entityId", entry.EntityID).
			Error("append activity entry")
	}
}
