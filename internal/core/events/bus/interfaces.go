package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus keyed by topic.
//
// - Topics are channel names ("/sim/robot1/collision"); they are created on
//   first subscribe or publish.
// - Within a topic, handlers either receive every event (AnyType) or only
//   events whose Type() matches.
// - Delivery is synchronous in the publisher's goroutine. Handler errors are
//   joined and returned from Publish.
// - Every Publish is counted in GetMetrics.
type EventBus interface {
	// Publish delivers event to the subscribers of topic.
	Publish(topic string, event Event) error

	// Subscribe registers a handler for every event on topic.
	Subscribe(topic string, handler EventHandler) (Subscription, error)
	// SubscribeType registers a handler for events of eventType on topic.
	SubscribeType(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is a no-op.
	Unsubscribe(Subscription) error

	GetMetrics() EventBusMetrics
	GetTopics() []TopicInfo
}

// AnyType subscribes to every event type on a topic.
const AnyType = "*"

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	EventHandler func(event Event) error
)

// Subscription is a registered handler. Cancel or EventBus.Unsubscribe stops
// delivery.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	Cancel() error
}

type EventBusMetrics struct {
	Published         uint64 `json:"published"`
	DeliveredHandlers uint64 `json:"delivered_handlers"`
	Errors            uint64 `json:"errors"`
	SubscribersActive uint64 `json:"subscribers_active"`
	Topics            uint64 `json:"topics"`
}

type TopicInfo struct {
	Name string `json:"name"`
	Subs int    `json:"subscribers"`
}
