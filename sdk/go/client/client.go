// Package client subscribes to simulation topics over the websocket bridge.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	ws "github.com/zeusync/arenasim/internal/core/protocol/websocket"
)

// Config holds configuration for the client
type Config struct {
	// Connection settings
	URL                  string
	ConnectTimeout       time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	// RequestTimeout bounds waiting for a subscribe acknowledgement
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() Config {
	return Config{
		URL:                  "ws://localhost:9090/ws",
		ConnectTimeout:       10 * time.Second,
		ReconnectInterval:    time.Second,
		MaxReconnectAttempts: 10,
		RequestTimeout:       5 * time.Second,
	}
}

// Message is a published message received from the bridge. Payload is nil
// when the message type is not registered in msgs.
type Message struct {
	Topic   string
	Type    string
	Seq     uint64
	RunID   string
	Payload msgs.Message
	Raw     json.RawMessage
}

// Handler is called on the client's read goroutine.
type Handler func(Message)

// Client is a websocket topic subscriber.
type Client struct {
	config Config
	logger log.Log

	connMu  sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[string][]Handler

	pendingMu sync.Mutex
	pending   map[string]chan ws.Envelope

	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewClient(config Config, logger log.Log) *Client {
	if logger == nil {
		logger = log.Provide()
	}
	d := DefaultClientConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = d.ConnectTimeout
	}
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = d.ReconnectInterval
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = d.RequestTimeout
	}
	return &Client{
		config:   config,
		logger:   logger.With(log.String("component", "client"), log.String("url", config.URL)),
		handlers: make(map[string][]Handler),
		pending:  make(map[string]chan ws.Envelope),
		done:     make(chan struct{}),
	}
}

// Connect dials the bridge and starts reading.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.config.URL == "" {
		return ErrInvalidConfig
	}
	if c.connected.Load() {
		return ErrAlreadyConnected
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.setConn(conn)
	c.wg.Add(1)
	go c.readLoop(conn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.config.URL, err)
	}
	return conn, nil
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	c.connected.Store(conn != nil)
}

func (c *Client) IsConnected() bool { return c.connected.Load() }

// Subscribe adds handler for topic ("*" for every topic). The first handler
// of a topic sends a subscribe request and waits for its acknowledgement.
func (c *Client) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}
	c.handlersMu.Lock()
	first := len(c.handlers[topic]) == 0
	c.handlers[topic] = append(c.handlers[topic], handler)
	c.handlersMu.Unlock()
	if !first {
		return nil
	}
	if err := c.request(ctx, ws.OpSubscribe, topic); err != nil {
		c.handlersMu.Lock()
		delete(c.handlers, topic)
		c.handlersMu.Unlock()
		return err
	}
	return nil
}

// Unsubscribe drops every handler of topic.
func (c *Client) Unsubscribe(ctx context.Context, topic string) error {
	c.handlersMu.Lock()
	_, ok := c.handlers[topic]
	delete(c.handlers, topic)
	c.handlersMu.Unlock()
	if !ok {
		return nil
	}
	return c.request(ctx, ws.OpUnsubscribe, topic)
}

// Topics lists subscribed topics.
func (c *Client) Topics() []string {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	out := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		out = append(out, t)
	}
	return out
}

func (c *Client) request(ctx context.Context, op, topic string) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	id := uuid.NewString()
	reply := make(chan ws.Envelope, 1)
	c.pendingMu.Lock()
	c.pending[id] = reply
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.write(ws.Request{Op: op, Topic: topic, ID: id}); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()
	select {
	case env := <-reply:
		if env.Code != 0 {
			return fmt.Errorf("%w: %s (code %d)", ErrRequestRejected, env.Error, env.Code)
		}
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) write(req ws.Request) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(req)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		var env ws.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.setConn(nil)
			if c.closed.Load() {
				return
			}
			c.logger.Warn("Connection lost", log.Error(err))
			next, rErr := c.reconnect()
			if rErr != nil {
				c.logger.Error("Giving up on bridge", log.Error(rErr))
				return
			}
			conn = next
			continue
		}
		c.handle(env)
	}
}

func (c *Client) handle(env ws.Envelope) {
	switch env.Op {
	case ws.OpStatus:
		c.pendingMu.Lock()
		reply, ok := c.pending[env.ID]
		c.pendingMu.Unlock()
		if ok {
			reply <- env
		}
	case ws.OpPublish:
		msg := Message{Topic: env.Topic, Type: env.Type, Seq: env.Seq, RunID: env.RunID, Raw: env.Msg}
		if m, err := msgs.New(env.Type); err == nil {
			if err = json.Unmarshal(env.Msg, m); err == nil {
				msg.Payload = m
			} else {
				c.logger.Warn("Failed to decode message", log.String("type", env.Type), log.Error(err))
			}
		}
		c.handlersMu.RLock()
		handlers := append(append([]Handler(nil), c.handlers[env.Topic]...), c.handlers[ws.AllTopics]...)
		c.handlersMu.RUnlock()
		for _, h := range handlers {
			h(msg)
		}
	}
}

// reconnect redials and restores subscriptions without waiting for their
// acknowledgements.
func (c *Client) reconnect() (*websocket.Conn, error) {
	for attempt := 1; c.config.MaxReconnectAttempts <= 0 || attempt <= c.config.MaxReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return nil, ErrClientClosed
		case <-time.After(c.config.ReconnectInterval):
		}
		conn, err := c.dial(context.Background())
		if err != nil {
			c.logger.Debug("Reconnect attempt failed", log.Int("attempt", attempt), log.Error(err))
			continue
		}
		c.setConn(conn)
		for _, topic := range c.Topics() {
			if err = c.write(ws.Request{Op: ws.OpSubscribe, Topic: topic}); err != nil {
				break
			}
		}
		if err != nil {
			_ = conn.Close()
			c.setConn(nil)
			continue
		}
		c.logger.Info("Reconnected", log.Int("attempt", attempt))
		return conn, nil
	}
	return nil, ErrReconnectFailed
}

// Close disconnects and stops reconnecting.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.wg.Wait()
	c.setConn(nil)
	return err
}
