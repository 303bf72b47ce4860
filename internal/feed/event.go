// Package feed carries change events between the write path and every
// subscribed viewer. Delivery is at-least-once over a single Redis
// pub/sub channel; ordering is only guaranteed per row.
package feed

import (
	"context"
	"time"

	"studioflow/api/internal/store"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

const (
	EntityTask          = "task"
	EntityClientRequest = "client_request"
)

// ChangeEvent describes one mutation of one row. Task carries the full
// row after the change (or the last known row for deletes) so consumers
// can merge without refetching.
type ChangeEvent struct {
	Entity     string     `json:"entity"`
	Op         Op         `json:"op"`
	Task       store.Task `json:"task"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// Matches reports whether the event is visible through filter.
func (e ChangeEvent) Matches(filter store.TaskFilter) bool {
	if e.Entity != EntityTask {
		return false
	}
	return filter.Matches(e.Task)
}

// Publisher pushes change events onto the shared channel.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}
