// Package realtime keeps each viewer's local board in step with the
// change feed. Every open kanban or table view holds one View; all views
// share the single feed.Hub subscription loop.
package realtime

import (
	"context"
	"sort"
	"sync"

	"studioflow/api/internal/feed"
	"studioflow/api/internal/logging"
	"studioflow/api/internal/store"
)

type taskLister interface {
	ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error)
}

// pendingWrite is a local optimistic update that has not been confirmed
// by the store yet. previous is kept so a failed write can be rolled
// back without a refetch.
type pendingWrite struct {
	staged   store.Task
	previous store.Task
	hadRow   bool
}

// View is one viewer's filtered, continuously merged copy of the task
// set. All merging happens off the caller's goroutine; consumers read
// immutable snapshots from Snapshots.
type View struct {
	filter store.TaskFilter
	store  taskLister

	mu       sync.Mutex
	cache    map[string]store.Task
	pending  map[string]pendingWrite
	buffered map[string]feed.ChangeEvent

	snapshots chan []store.Task
}

func NewView(lister taskLister, filter store.TaskFilter) *View {
	return &View{
		filter:    filter,
		store:     lister,
		cache:     make(map[string]store.Task),
		pending:   make(map[string]pendingWrite),
		buffered:  make(map[string]feed.ChangeEvent),
		snapshots: make(chan []store.Task, 1),
	}
}

// Snapshots delivers the latest merged state after every change. Only
// the most recent snapshot is retained; a slow consumer never blocks the
// merge loop.
func (v *View) Snapshots() <-chan []store.Task {
	return v.snapshots
}

// Run consumes the subscription until ctx is cancelled, merging events
// and resynchronizing whenever the feed signals a possible gap.
func (v *View) Run(ctx context.Context, sub *feed.Subscription) {
	log := logging.With("realtime")
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub.Events:
			v.Apply(event)
		case <-sub.Resyncs:
			if err := v.Resync(ctx); err != nil {
				log.WithError(err).Warn("resync failed, will retry on next signal")
				signalSelf(sub)
			}
		}
	}
}

// Apply merges one change event. Duplicate delivery of an event (same
// row id and updated_at) is a no-op, and events older than a staged
// optimistic write are buffered until that write resolves.
func (v *View) Apply(event feed.ChangeEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if event.Entity != feed.EntityTask {
		return
	}
	id := event.Task.ID

	if p, staged := v.pending[id]; staged {
		if !event.Task.UpdatedAt.After(p.staged.UpdatedAt) {
			// The optimistic write is newer; hold the event until the
			// write is confirmed or dropped.
			v.bufferLocked(event)
			return
		}
		// The server state moved past our optimistic write; it loses.
		delete(v.pending, id)
		delete(v.buffered, id)
	}

	v.applyLocked(event)
	v.publishLocked()
}

func (v *View) applyLocked(event feed.ChangeEvent) {
	id := event.Task.ID
	if event.Op == feed.OpDelete {
		delete(v.cache, id)
		return
	}
	if current, ok := v.cache[id]; ok && !event.Task.UpdatedAt.After(current.UpdatedAt) {
		return
	}
	if !v.filter.Matches(event.Task) {
		// Row left the filtered set, e.g. reassigned away.
		delete(v.cache, id)
		return
	}
	v.cache[id] = event.Task
}

func (v *View) bufferLocked(event feed.ChangeEvent) {
	if held, ok := v.buffered[event.Task.ID]; ok && !event.Task.UpdatedAt.After(held.Task.UpdatedAt) {
		return
	}
	v.buffered[event.Task.ID] = event
}

// StageOptimistic applies a local write to the view before the store has
// confirmed it.
func (v *View) StageOptimistic(task store.Task) {
	v.mu.Lock()
	defer v.mu.Unlock()

	previous, hadRow := v.cache[task.ID]
	v.pending[task.ID] = pendingWrite{staged: task, previous: previous, hadRow: hadRow}
	v.cache[task.ID] = task
	v.publishLocked()
}

// ResolveOptimistic replaces a staged write with the store-confirmed row
// and then replays any event that was buffered behind it.
func (v *View) ResolveOptimistic(confirmed store.Task) {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.pending, confirmed.ID)
	if v.filter.Matches(confirmed) {
		v.cache[confirmed.ID] = confirmed
	} else {
		delete(v.cache, confirmed.ID)
	}
	v.replayBufferedLocked(confirmed.ID)
	v.publishLocked()
}

// DropOptimistic rolls back a staged write that failed, restoring the
// pre-write row, then replays any buffered event.
func (v *View) DropOptimistic(taskID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	p, ok := v.pending[taskID]
	if !ok {
		return
	}
	delete(v.pending, taskID)
	if p.hadRow {
		v.cache[taskID] = p.previous
	} else {
		delete(v.cache, taskID)
	}
	v.replayBufferedLocked(taskID)
	v.publishLocked()
}

func (v *View) replayBufferedLocked(taskID string) {
	event, ok := v.buffered[taskID]
	if !ok {
		return
	}
	delete(v.buffered, taskID)
	v.applyLocked(event)
}

// Resync refetches the full filtered set and replaces the cache. Staged
// optimistic writes survive unless the refetched row is newer.
func (v *View) Resync(ctx context.Context) error {
	tasks, err := v.store.ListTasks(ctx, v.filter)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.cache = make(map[string]store.Task, len(tasks))
	v.buffered = make(map[string]feed.ChangeEvent)
	for _, task := range tasks {
		v.cache[task.ID] = task
	}
	for id, p := range v.pending {
		current, ok := v.cache[id]
		if ok && current.UpdatedAt.After(p.staged.UpdatedAt) {
			delete(v.pending, id)
			continue
		}
		v.cache[id] = p.staged
	}
	v.publishLocked()
	return nil
}

// Snapshot returns a copy of the current merged state, newest first.
func (v *View) Snapshot() []store.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() []store.Task {
	items := make([]store.Task, 0, len(v.cache))
	for _, task := range v.cache {
		items = append(items, task)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items
}

// publishLocked swaps the latest snapshot into the channel without ever
// blocking on the consumer.
func (v *View) publishLocked() {
	snapshot := v.snapshotLocked()
	for {
		select {
		case v.snapshots <- snapshot:
			return
		default:
		}
		select {
		case <-v.snapshots:
		default:
		}
	}
}

func signalSelf(sub *feed.Subscription) {
	select {
	case sub.Resyncs <- struct{}{}:
	default:
	}
}
