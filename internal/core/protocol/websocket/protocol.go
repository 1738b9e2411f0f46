// Package websocket exposes published topics to websocket clients.
//
// Clients connect to /ws and send JSON requests:
//
//	{"op":"subscribe","topic":"/sim/robot1/collision","id":"1"}
//	{"op":"unsubscribe","topic":"/sim/robot1/collision"}
//
// The topic "*" matches every topic. Each request is answered with a status
// envelope; published messages arrive as
//
//	{"op":"publish","topic":"...","type":"unity_msgs/Collision","seq":7,"msg":{"in_contact":true}}
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
)

const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPublish     = "publish"
	OpStatus      = "status"

	// AllTopics subscribes to every topic.
	AllTopics = "*"
)

// Request is a client to bridge message.
type Request struct {
	Op    string `json:"op"`
	Topic string `json:"topic"`
	ID    string `json:"id,omitempty"`
}

// Envelope is a bridge to client message.
type Envelope struct {
	Op    string             `json:"op"`
	ID    string             `json:"id,omitempty"`
	Topic string             `json:"topic,omitempty"`
	Type  string             `json:"type,omitempty"`
	Seq   uint64             `json:"seq,omitempty"`
	RunID string             `json:"run_id,omitempty"`
	Msg   json.RawMessage    `json:"msg,omitempty"`
	Code  protocol.ErrorCode `json:"code,omitempty"`
	Error string             `json:"error,omitempty"`
}

var _ protocol.Sink = (*Bridge)(nil)

// Bridge is a protocol.Sink that forwards frames to subscribed websocket
// clients. It is also an http.Handler for the upgrade endpoint.
type Bridge struct {
	config   protocol.Config
	logger   log.Log
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	server  *http.Server
	closed  atomic.Bool

	dropped atomic.Uint64
}

func NewBridge(config protocol.Config, logger log.Log) *Bridge {
	if logger == nil {
		logger = log.Provide()
	}
	return &Bridge{
		config: config.WithDefaults(),
		logger: logger.With(log.String("component", "websocket_bridge")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

func (b *Bridge) Name() string { return "websocket" }

// Start serves /ws on the configured address until ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	if b.config.WebSocketAddr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/ws", b)

	b.mu.Lock()
	b.server = &http.Server{Addr: b.config.WebSocketAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	srv := b.server
	b.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("WebSocket bridge listening", log.String("addr", b.config.WebSocketAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return b.Close()
	}
}

// Close disconnects every client. Deliver becomes a no-op.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*client)
	b.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
	b.logger.Info("WebSocket bridge closed", log.Int("clients", len(clients)))
	return nil
}

// ClientCount reports connected clients.
func (b *Bridge) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Dropped reports frames discarded because a client queue was full.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Deliver forwards frame to every client subscribed to its topic.
func (b *Bridge) Deliver(frame protocol.Frame) error {
	if b.closed.Load() {
		return protocol.ErrBridgeClosed
	}

	b.mu.RLock()
	targets := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		if c.subscribed(frame.Topic) {
			targets = append(targets, c)
		}
	}
	b.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	var body json.RawMessage
	if frame.Message != nil {
		raw, err := json.Marshal(frame.Message)
		if err != nil {
			return protocol.WrapError(protocol.ErrSerializationFailed, "encode %s", frame.Type)
		}
		body = raw
	}
	data, err := json.Marshal(Envelope{
		Op:    OpPublish,
		Topic: frame.Topic,
		Type:  frame.Type,
		Seq:   frame.Seq,
		RunID: frame.RunID,
		Msg:   body,
	})
	if err != nil {
		return protocol.WrapError(protocol.ErrSerializationFailed, "encode envelope")
	}

	for _, c := range targets {
		if !c.enqueue(data) {
			b.dropped.Add(1)
			b.logger.Debug("Client queue full, dropping frame",
				log.String("client_id", c.id),
				log.String("topic", frame.Topic))
		}
	}
	return nil
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.closed.Load() {
		http.Error(w, protocol.ErrBridgeClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("WebSocket upgrade failed", log.Error(err))
		return
	}

	c := newClient(uuid.NewString(), conn, b.config.ClientQueueSize)
	for _, topic := range r.URL.Query()["topic"] {
		c.subscribe(topic)
	}

	b.mu.Lock()
	b.clients[c.id] = c
	b.mu.Unlock()
	b.logger.Info("WebSocket client connected",
		log.String("client_id", c.id),
		log.String("remote_addr", conn.RemoteAddr().String()))

	go c.writePump(b.config.WriteTimeout)
	b.readPump(c)

	b.mu.Lock()
	delete(b.clients, c.id)
	b.mu.Unlock()
	c.close()
	b.logger.Info("WebSocket client disconnected", log.String("client_id", c.id))
}

func (b *Bridge) readPump(c *client) {
	for {
		var req Request
		if err := c.conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				c.reply(req.ID, protocol.WrapError(protocol.ErrInvalidRequest, "malformed json"))
				continue
			}
			return
		}
		c.reply(req.ID, b.handle(c, req))
	}
}

func (b *Bridge) handle(c *client, req Request) error {
	if req.Topic == "" {
		return protocol.ErrEmptyTopic
	}
	switch req.Op {
	case OpSubscribe:
		c.subscribe(req.Topic)
		b.logger.Debug("Client subscribed", log.String("client_id", c.id), log.String("topic", req.Topic))
	case OpUnsubscribe:
		c.unsubscribe(req.Topic)
	default:
		return protocol.WrapError(protocol.ErrInvalidRequest, "unknown op %q", req.Op)
	}
	return nil
}
