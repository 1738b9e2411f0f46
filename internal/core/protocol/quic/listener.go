package quic

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
)

var _ protocol.Sink = (*Bridge)(nil)

// Bridge is a protocol.Sink serving frames over QUIC.
type Bridge struct {
	config    protocol.Config
	tlsConfig *tls.Config
	logger    log.Log

	listener *quic.Listener
	closed   atomic.Bool

	mu          sync.RWMutex
	subscribers map[string]*subscriber

	dropped atomic.Uint64
}

func NewBridge(config protocol.Config, tlsConfig *tls.Config, logger log.Log) *Bridge {
	if logger == nil {
		logger = log.Provide()
	}
	return &Bridge{
		config:      config.WithDefaults(),
		tlsConfig:   tlsConfig,
		logger:      logger.With(log.String("component", "quic_bridge")),
		subscribers: make(map[string]*subscriber),
	}
}

func (b *Bridge) Name() string { return "quic" }

// Listen binds the configured address.
func (b *Bridge) Listen() error {
	tlsConfig := b.tlsConfig
	if tlsConfig == nil {
		var err error
		if b.config.CertFile != "" {
			tlsConfig, err = LoadTLS(b.config.CertFile, b.config.KeyFile)
		} else {
			tlsConfig, err = GenerateSelfSignedTLS()
		}
		if err != nil {
			return fmt.Errorf("quic tls: %w", err)
		}
	}

	listener, err := quic.ListenAddr(b.config.QUICAddr, tlsConfig, &quic.Config{
		MaxIdleTimeout:  DefaultIdleTimeout,
		KeepAlivePeriod: DefaultKeepAlive,
	})
	if err != nil {
		return fmt.Errorf("quic listen %s: %w", b.config.QUICAddr, err)
	}
	b.listener = listener
	b.logger.Info("QUIC bridge listening", log.String("addr", listener.Addr().String()))
	return nil
}

// Addr is the bound address, nil before Listen.
func (b *Bridge) Addr() net.Addr {
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Start listens (unless Listen was already called) and accepts connections
// until ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	if b.config.QUICAddr == "" && b.listener == nil {
		return nil
	}
	if b.listener == nil {
		if err := b.Listen(); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		_ = b.Close()
	}()

	for {
		conn, err := b.listener.Accept(ctx)
		if err != nil {
			if b.closed.Load() || ctx.Err() != nil {
				return nil
			}
			b.logger.Error("Failed to accept QUIC connection", log.Error(err))
			return err
		}
		go b.handleConnection(ctx, conn)
	}
}

func (b *Bridge) handleConnection(ctx context.Context, conn *quic.Conn) {
	logger := b.logger.With(log.String("remote_addr", conn.RemoteAddr().String()))
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			logger.Debug("QUIC connection finished", log.Error(err))
			return
		}
		go b.handleStream(stream, logger)
	}
}

func (b *Bridge) handleStream(stream *quic.Stream, logger log.Log) {
	reader := bufio.NewReaderSize(stream, 4096)
	line, err := readLine(reader, maxRequestSize)
	if err != nil {
		logger.Warn("Bad subscribe request", log.Error(err))
		stream.CancelRead(quic.StreamErrorCode(protocol.ErrorCodeInvalidRequest))
		_ = stream.Close()
		return
	}
	var req SubscribeRequest
	if err = json.Unmarshal(line, &req); err != nil || len(req.Topics) == 0 {
		logger.Warn("Bad subscribe request", log.Any("request", string(line)))
		stream.CancelRead(quic.StreamErrorCode(protocol.ErrorCodeInvalidRequest))
		_ = stream.Close()
		return
	}

	sub := newSubscriber(uuid.NewString(), stream, req.Topics, b.config.ClientQueueSize)
	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		_ = stream.Close()
		return
	}
	b.subscribers[sub.id] = sub
	b.mu.Unlock()
	logger.Info("QUIC subscriber attached",
		log.String("subscriber_id", sub.id),
		log.Strings("topics", req.Topics))

	go func() {
		// Any further read (EOF or reset) means the peer is gone.
		_, _ = reader.ReadByte()
		sub.close()
	}()
	sub.writePump()

	b.mu.Lock()
	delete(b.subscribers, sub.id)
	b.mu.Unlock()
	logger.Info("QUIC subscriber detached", log.String("subscriber_id", sub.id))
}

// SubscriberCount reports attached subscribers.
func (b *Bridge) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped reports frames discarded because a subscriber queue was full.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Deliver forwards frame to every subscriber of its topic.
func (b *Bridge) Deliver(frame protocol.Frame) error {
	if b.closed.Load() {
		return protocol.ErrBridgeClosed
	}
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		if s.wants(frame.Topic) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	data, err := frame.Encode(b.config.MaxFrameSize)
	if err != nil {
		return err
	}
	for _, s := range targets {
		if !s.enqueue(data) {
			b.dropped.Add(1)
		}
	}
	return nil
}

// Close stops accepting and detaches every subscriber.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[string]*subscriber)
	b.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
	if b.listener != nil {
		return b.listener.Close()
	}
	return nil
}

func readLine(r *bufio.Reader, limit int) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > limit {
			return nil, errors.New("request line too long")
		}
		if !isPrefix {
			return line, nil
		}
	}
}
