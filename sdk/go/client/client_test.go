package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/arenasim/internal/core/msgs"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
	ws "github.com/zeusync/arenasim/internal/core/protocol/websocket"
)

func startBridge(t *testing.T) (*ws.Bridge, string) {
	t.Helper()
	b := ws.NewBridge(protocol.DefaultConfig(), log.NewNop())
	s := httptest.NewServer(b)
	t.Cleanup(func() {
		_ = b.Close()
		s.Close()
	})
	return b, "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func frame(topic string, inContact bool) protocol.Frame {
	m := &msgs.Collision{InContact: inContact}
	payload, _ := msgs.Marshal(m)
	return protocol.Frame{Topic: topic, Type: m.MessageName(), Seq: 1, RunID: "run", Payload: payload, Message: m}
}

type inbox struct {
	mu   sync.Mutex
	msgs []Message
}

func (i *inbox) add(m Message) {
	i.mu.Lock()
	i.msgs = append(i.msgs, m)
	i.mu.Unlock()
}

func (i *inbox) all() []Message {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Message(nil), i.msgs...)
}

func TestSubscribeReceivesDecodedMessages(t *testing.T) {
	b, url := startBridge(t)
	cfg := DefaultClientConfig()
	cfg.URL = url
	c := NewClient(cfg, log.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	assert.ErrorIs(t, c.Connect(ctx), ErrAlreadyConnected)

	var got, every inbox
	require.NoError(t, c.Subscribe(ctx, "/sim/r1/collision", got.add))
	require.NoError(t, c.Subscribe(ctx, ws.AllTopics, every.add))
	assert.ErrorIs(t, c.Subscribe(ctx, "/x", nil), ErrNilHandler)

	require.NoError(t, b.Deliver(frame("/sim/r2/collision", false)))
	require.NoError(t, b.Deliver(frame("/sim/r1/collision", true)))

	require.Eventually(t, func() bool { return len(every.all()) == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(got.all()) == 1 }, 5*time.Second, 10*time.Millisecond)

	m := got.all()[0]
	assert.Equal(t, "/sim/r1/collision", m.Topic)
	assert.Equal(t, msgs.CollisionName, m.Type)
	assert.Equal(t, "run", m.RunID)
	require.NotNil(t, m.Payload)
	assert.True(t, m.Payload.(*msgs.Collision).InContact)
}

func TestUnsubscribe(t *testing.T) {
	b, url := startBridge(t)
	cfg := DefaultClientConfig()
	cfg.URL = url
	c := NewClient(cfg, log.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	var got inbox
	require.NoError(t, c.Subscribe(ctx, "/a", got.add))
	require.NoError(t, c.Unsubscribe(ctx, "/a"))
	assert.Empty(t, c.Topics())

	require.NoError(t, c.Subscribe(ctx, "/b", got.add))
	require.NoError(t, b.Deliver(frame("/a", true)))
	require.NoError(t, b.Deliver(frame("/b", true)))
	require.Eventually(t, func() bool { return len(got.all()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "/b", got.all()[0].Topic)
}

func TestRequestsNeedConnection(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1/ws"}, log.NewNop())
	err := c.Subscribe(context.Background(), "/a", func(Message) {})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, c.Topics())

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClientClosed)

	assert.ErrorIs(t, NewClient(Config{}, log.NewNop()).Connect(context.Background()), ErrInvalidConfig)
}
