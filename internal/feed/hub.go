package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studioflow/api/internal/logging"
	"studioflow/api/internal/store"
)

const (
	resubscribeWait = time.Second
	eventBuffer     = 64
)

// Subscription is one viewer's slice of the shared feed. Events carries
// filter-matching change events; a signal on Resyncs means delivery may
// have gapped and the subscriber must refetch its full set instead of
// trusting the backlog.
type Subscription struct {
	Events  chan ChangeEvent
	Resyncs chan struct{}

	id     int
	filter store.TaskFilter
	hub    *Hub
}

func (s *Subscription) Close() {
	s.hub.unsubscribe(s.id)
}

// Hub owns the process's single Redis subscription and multiplexes it to
// any number of filtered viewer subscriptions.
type Hub struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
}

func NewHub(client *redis.Client, channel string) *Hub {
	return &Hub{
		client:  client,
		channel: channel,
		subs:    make(map[int]*Subscription),
	}
}

// Subscribe registers a filtered view of the feed. The returned
// subscription is live once Run is receiving.
func (h *Hub) Subscribe(filter store.TaskFilter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		Events:  make(chan ChangeEvent, eventBuffer),
		Resyncs: make(chan struct{}, 1),
		id:      h.nextID,
		filter:  filter,
		hub:     h,
	}
	h.subs[sub.id] = sub
	return sub
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Run receives from Redis until ctx is cancelled. On any receive error
// it re-subscribes and signals resync to every subscriber, since
// delivery during the gap is not guaranteed.
func (h *Hub) Run(ctx context.Context) {
	log := logging.With("feed")
	for {
		pubsub := h.client.Subscribe(ctx, h.channel)
		err := h.receive(ctx, pubsub)
		_ = pubsub.Close()
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Warn("feed subscription dropped, resubscribing")
		h.signalResyncAll()

		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeWait):
		}
	}
}

func (h *Hub) receive(ctx context.Context, pubsub *redis.PubSub) error {
	log := logging.With("feed")
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		var event ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.WithError(err).Warn("dropping malformed change event")
			continue
		}
		h.dispatch(event)
	}
}

func (h *Hub) dispatch(event ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if !event.Matches(sub.filter) {
			continue
		}
		select {
		case sub.Events <- event:
		default:
			// Subscriber fell behind and events were dropped; it has to
			// refetch rather than merge a partial backlog.
			signalResync(sub)
		}
	}
}

func (h *Hub) signalResyncAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		signalResync(sub)
	}
}

func signalResync(sub *Subscription) {
	select {
	case sub.Resyncs <- struct{}{}:
	default:
	}
}
