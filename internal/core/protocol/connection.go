// Package protocol moves published sensor messages from the simulation to
// consumers. A Connection serializes each message once into a Frame and hands
// it to every registered Sink (in-process bus, websocket bridge, QUIC bridge).
package protocol

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/zeusync/arenasim/internal/core/events/bus"
	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
)

// Publisher is what sensors publish through. Publish is fire-and-forget.
type Publisher interface {
	RegisterPublisher(topic, messageType string) error
	Publish(topic string, msg msgs.Message)
}

// Sink receives every frame published on a Connection.
type Sink interface {
	Name() string
	Deliver(frame Frame) error
}

// TopicInfo describes a registered topic.
type TopicInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Published uint64 `json:"published"`
}

type topicState struct {
	typ       string
	published atomic.Uint64
}

var _ Publisher = (*Connection)(nil)

type Connection struct {
	mu     sync.RWMutex
	topics map[string]*topicState
	sinks  []Sink

	runID  string
	seq    atomic.Uint64
	logger log.Log
}

// NewConnection creates a Connection with a fresh run id.
func NewConnection(logger log.Log, sinks ...Sink) *Connection {
	if logger == nil {
		logger = log.Provide()
	}
	runID := ksuid.New().String()
	return &Connection{
		topics: make(map[string]*topicState),
		sinks:  sinks,
		runID:  runID,
		logger: logger.With(log.String("component", "connection"), log.String("run_id", runID)),
	}
}

// RunID identifies this simulation run on every frame.
func (c *Connection) RunID() string { return c.runID }

func (c *Connection) AddSink(s Sink) {
	c.mu.Lock()
	c.sinks = append(c.sinks, s)
	c.mu.Unlock()
	c.logger.Debug("Sink attached", log.String("sink", s.Name()))
}

// RegisterPublisher declares topic as carrying messageType. Registering the
// same pair again is a no-op.
func (c *Connection) RegisterPublisher(topic, messageType string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.topics[topic]; ok {
		if ts.typ != messageType {
			return fmt.Errorf("%w: %s is %s, not %s", ErrTopicTypeMismatch, topic, ts.typ, messageType)
		}
		return nil
	}
	c.topics[topic] = &topicState{typ: messageType}
	c.logger.Info("Publisher registered", log.String("topic", topic), log.String("type", messageType))
	return nil
}

// Publish serializes msg and delivers it to every sink. Failures are logged,
// never returned.
func (c *Connection) Publish(topic string, msg msgs.Message) {
	if msg == nil {
		c.logger.Warn("Dropping nil message", log.String("topic", topic))
		return
	}

	c.mu.RLock()
	ts, ok := c.topics[topic]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("Publishing on unregistered topic", log.String("topic", topic))
		if err := c.RegisterPublisher(topic, msg.MessageName()); err != nil {
			c.logger.Error("Failed to register topic", log.String("topic", topic), log.Error(err))
			return
		}
		c.mu.RLock()
		ts = c.topics[topic]
		c.mu.RUnlock()
	}
	if ts.typ != msg.MessageName() {
		c.logger.Error("Message type does not match topic",
			log.String("topic", topic),
			log.String("expected", ts.typ),
			log.String("got", msg.MessageName()))
		return
	}

	payload, err := msgs.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to serialize message", log.String("topic", topic), log.Error(err))
		return
	}
	ts.published.Add(1)

	frame := Frame{
		Topic:   topic,
		Type:    ts.typ,
		Seq:     c.seq.Add(1),
		RunID:   c.runID,
		Stamp:   time.Now(),
		Payload: payload,
		Message: msg,
	}

	c.mu.RLock()
	sinks := c.sinks
	c.mu.RUnlock()
	for _, s := range sinks {
		err = s.Deliver(frame)
		switch {
		case err == nil:
		case errors.Is(err, ErrBridgeClosed):
			c.removeSink(s)
		default:
			c.logger.Warn("Sink delivery failed",
				log.String("sink", s.Name()),
				log.String("topic", topic),
				log.Error(err))
		}
	}
}

// removeSink detaches a sink that reported itself closed.
func (c *Connection) removeSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.sinks {
		if cur == s {
			c.sinks = append(c.sinks[:i:i], c.sinks[i+1:]...)
			c.logger.Info("Sink closed, detached", log.String("sink", s.Name()))
			return
		}
	}
}

// Topics returns registered topics sorted by name.
func (c *Connection) Topics() []TopicInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]TopicInfo, 0, len(c.topics))
	for name, ts := range c.topics {
		out = append(out, TopicInfo{Name: name, Type: ts.typ, Published: ts.published.Load()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BusSink republishes frames on an in-process event bus. The bus topic is the
// frame topic and the event type is the message type; event data is the Frame.
type BusSink struct {
	bus bus.EventBus
}

func NewBusSink(b bus.EventBus) *BusSink {
	return &BusSink{bus: b}
}

func (s *BusSink) Name() string { return "bus" }

func (s *BusSink) Deliver(frame Frame) error {
	return s.bus.Publish(frame.Topic, bus.NewEvent(frame.Type, frame.RunID, frame, nil))
}
