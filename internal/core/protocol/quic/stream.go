package quic

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/quic-go/quic-go"

	"github.com/zeusync/arenasim/internal/core/protocol"
)

type subscriber struct {
	id     string
	stream *quic.Stream
	topics map[string]struct{}
	send   chan []byte

	once sync.Once
	done chan struct{}
}

func newSubscriber(id string, stream *quic.Stream, topics []string, queueSize int) *subscriber {
	s := &subscriber{
		id:     id,
		stream: stream,
		topics: make(map[string]struct{}, len(topics)),
		send:   make(chan []byte, queueSize),
		done:   make(chan struct{}),
	}
	for _, t := range topics {
		s.topics[t] = struct{}{}
	}
	return s
}

func (s *subscriber) wants(topic string) bool {
	if _, ok := s.topics["*"]; ok {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

func (s *subscriber) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *subscriber) writePump() {
	defer s.stream.Close()
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if _, err := s.stream.Write(data); err != nil {
				s.close()
				return
			}
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Subscription is the client side of a frame stream.
type Subscription struct {
	conn    *quic.Conn
	stream  *quic.Stream
	reader  *bufio.Reader
	maxSize uint32
}

// Subscribe dials addr and requests topics. tlsConfig must accept the
// bridge certificate; NextProto is added when missing.
func Subscribe(ctx context.Context, addr string, tlsConfig *tls.Config, topics ...string) (*Subscription, error) {
	conf := tlsConfig.Clone()
	if len(conf.NextProtos) == 0 {
		conf.NextProtos = []string{NextProto}
	}
	conn, err := quic.DialAddr(ctx, addr, conf, &quic.Config{MaxIdleTimeout: DefaultIdleTimeout})
	if err != nil {
		return nil, fmt.Errorf("quic dial %s: %w", addr, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "open stream failed")
		return nil, err
	}
	req, err := json.Marshal(SubscribeRequest{Topics: topics})
	if err != nil {
		_ = conn.CloseWithError(0, "")
		return nil, err
	}
	if _, err = stream.Write(append(req, '\n')); err != nil {
		_ = conn.CloseWithError(0, "write failed")
		return nil, err
	}
	return &Subscription{
		conn:    conn,
		stream:  stream,
		reader:  bufio.NewReader(stream),
		maxSize: protocol.DefaultConfig().MaxFrameSize,
	}, nil
}

// Next blocks until the next frame arrives.
func (s *Subscription) Next() (protocol.Frame, error) {
	return protocol.ReadFrame(s.reader, s.maxSize)
}

func (s *Subscription) Close() error {
	_ = s.stream.Close()
	return s.conn.CloseWithError(0, "bye")
}
