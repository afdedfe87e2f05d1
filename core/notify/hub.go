package notify

import (
	"github.com/kilianp07/responder/core/logger"
	"github.com/kilianp07/responder/internal/eventbus"
)

// Topic partitions notifications by entity kind.
type Topic string

const (
	TopicEvents        Topic = "events"
	TopicInterventions Topic = "interventions"
	TopicVehicles      Topic = "vehicles"
)

// Topics lists every topic a subscriber may receive.
func Topics() []Topic { return []Topic{TopicEvents, TopicInterventions, TopicVehicles} }

// Notification is one message on the live stream.
type Notification struct {
	Topic    Topic `json:"topic"`
	Entities []any `json:"entities"`
}

// Broadcaster pushes snapshots to live subscribers.
type Broadcaster interface {
	Broadcast(topic Topic, entities []any)
}

// Hub is the registry of live subscribers. Instances are independent so tests
// and multiple coordinators never share subscribers.
type Hub struct {
	bus    *eventbus.TypedBus[Notification]
	logger logger.Logger
}

// NewHub creates a Hub whose subscribers buffer up to buffer notifications.
func NewHub(buffer int, log logger.Logger) *Hub {
	return &Hub{bus: eventbus.NewTypedWithBuffer[Notification](buffer), logger: log}
}

// Subscribe registers a subscriber. It receives only notifications broadcast
// after the call returns.
func (h *Hub) Subscribe() <-chan Notification {
	ch := h.bus.Subscribe()
	subscribers.Set(float64(h.bus.Len()))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch <-chan Notification) {
	h.bus.Unsubscribe(ch)
	subscribers.Set(float64(h.bus.Len()))
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int { return h.bus.Len() }

// Broadcast sends the entities to every live subscriber. Empty lists are
// dropped.
func (h *Hub) Broadcast(topic Topic, entities []any) {
	if len(entities) == 0 {
		return
	}
	n := h.bus.Publish(Notification{Topic: topic, Entities: entities})
	broadcasts.WithLabelValues(string(topic)).Inc()
	if n > 0 {
		evictions.Add(float64(n))
		subscribers.Set(float64(h.bus.Len()))
		if h.logger != nil {
			h.logger.Warnf("evicted %d slow subscriber(s) on topic %s", n, topic)
		}
	}
}

// Close tears down every subscriber.
func (h *Hub) Close() {
	h.bus.Close()
	subscribers.Set(0)
}

// NopBroadcaster discards every notification.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(Topic, []any) {}

var _ Broadcaster = (*Hub)(nil)
