package notify

import (
	"context"

	"go.uber.org/zap"
)

// subscriberBuffer bounds each connection's outbox. A subscriber that cannot
// drain its buffer loses messages instead of blocking the dispatch loop:
// notifications are a convenience signal, not a guarantee.
const subscriberBuffer = 16

// Subscription is one client connection's view of its user's channel.
type Subscription struct {
	UserID int64
	C      chan []byte
}

// Hub fans events out to every open connection of the target user. A single
// run loop owns the registry, so the maps need no locking.
type Hub struct {
	logger      *zap.Logger
	register    chan *Subscription
	unregister  chan *Subscription
	events      chan Event
	done        chan struct{}
	subscribers map[int64]map[*Subscription]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:      logger,
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		events:      make(chan Event, 64),
		done:        make(chan struct{}),
		subscribers: make(map[int64]map[*Subscription]struct{}),
	}
}

// Run processes registrations and events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Closing done unblocks Subscribe/Unsubscribe callers that
			// would otherwise wait on a loop that no longer runs.
			close(h.done)
			for _, subs := range h.subscribers {
				for sub := range subs {
					close(sub.C)
				}
			}
			h.subscribers = make(map[int64]map[*Subscription]struct{})
			return
		case sub := <-h.register:
			if h.subscribers[sub.UserID] == nil {
				h.subscribers[sub.UserID] = make(map[*Subscription]struct{})
			}
			h.subscribers[sub.UserID][sub] = struct{}{}
			h.logger.Debug("Subscriber registered", zap.Int64("user_id", sub.UserID))
		case sub := <-h.unregister:
			if subs, ok := h.subscribers[sub.UserID]; ok {
				if _, ok := subs[sub]; ok {
					delete(subs, sub)
					close(sub.C)
					if len(subs) == 0 {
						delete(h.subscribers, sub.UserID)
					}
				}
			}
		case event := <-h.events:
			h.broadcast(event)
		}
	}
}

func (h *Hub) broadcast(event Event) {
	subs := h.subscribers[event.UserID]
	if len(subs) == 0 {
		return
	}

	data, err := event.Marshal()
	if err != nil {
		h.logger.Warn("Failed to encode notification",
			zap.String("event", event.Type),
			zap.Int64("user_id", event.UserID),
			zap.Error(err),
		)
		return
	}

	for sub := range subs {
		select {
		case sub.C <- data:
		default:
			h.logger.Warn("Dropping notification for slow subscriber",
				zap.String("event", event.Type),
				zap.Int64("user_id", event.UserID),
			)
		}
	}
}

// Subscribe registers a new connection for the user and returns its channel.
// After shutdown the channel comes back already closed.
func (h *Hub) Subscribe(userID int64) *Subscription {
	sub := &Subscription{
		UserID: userID,
		C:      make(chan []byte, subscriberBuffer),
	}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.C)
	}
	return sub
}

// Unsubscribe removes the connection; its channel is closed by the run loop.
// A no-op after shutdown, when the loop has already closed every channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish hands an event to the dispatch loop. Fire and forget: if the hub's
// queue is full the event is dropped and logged, never retried.
func (h *Hub) Publish(event Event) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("Notification queue full, dropping event",
			zap.String("event", event.Type),
			zap.Int64("user_id", event.UserID),
		)
	}
}
