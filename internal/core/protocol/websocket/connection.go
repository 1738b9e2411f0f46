package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/arenasim/internal/core/protocol"
)

// client is one websocket peer. Only writePump writes to conn.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	topics map[string]struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id string, conn *websocket.Conn, queueSize int) *client {
	return &client{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, queueSize),
		topics: make(map[string]struct{}),
		done:   make(chan struct{}),
	}
}

func (c *client) subscribe(topic string) {
	c.mu.Lock()
	c.topics[topic] = struct{}{}
	c.mu.Unlock()
}

func (c *client) unsubscribe(topic string) {
	c.mu.Lock()
	delete(c.topics, topic)
	c.mu.Unlock()
}

func (c *client) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.topics[AllTopics]; ok {
		return true
	}
	_, ok := c.topics[topic]
	return ok
}

// enqueue never blocks; false means the frame was dropped.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) reply(id string, err error) {
	env := Envelope{Op: OpStatus, ID: id, Code: protocol.GetErrorCode(err)}
	if err != nil {
		env.Error = err.Error()
	}
	data, mErr := json.Marshal(env)
	if mErr != nil {
		return
	}
	c.enqueue(data)
}

func (c *client) writePump(timeout time.Duration) {
	defer c.conn.Close()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(timeout))
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
