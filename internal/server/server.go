// Package server exposes the simulation control API over HTTP.
package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/zeusync/arenasim/internal/core/events/bus"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
	"github.com/zeusync/arenasim/internal/core/robot"
	"github.com/zeusync/arenasim/internal/core/system"
)

// Simulation is the part of the world the API drives.
type Simulation interface {
	Spawn(ctx context.Context, req robot.SpawnRequest) (robot.Info, error)
	Delete(ctx context.Context, ns string) error
	AttachSafeDist(ctx context.Context, req robot.SafeDistRequest) (bool, error)
	Contact(ctx context.Context, ev system.ContactEvent) error
	Robots(ctx context.Context) ([]robot.Info, error)
	Stats() system.Stats
}

// TopicLister lists published topics.
type TopicLister interface {
	Topics() []protocol.TopicInfo
	RunID() string
}

// BusInspector reports in-process bus activity. May be nil.
type BusInspector interface {
	GetMetrics() bus.EventBusMetrics
	GetTopics() []bus.TopicInfo
}

type Config struct {
	Addr           string
	RequestTimeout time.Duration
	// Token, when set, is required as a bearer token on mutating routes.
	Token string
}

func DefaultConfig() Config {
	return Config{Addr: ":8080", RequestTimeout: 5 * time.Second}
}

// Server is the fiber control API.
type Server struct {
	app    *fiber.App
	config Config
	sim    Simulation
	topics TopicLister
	events BusInspector
	logger log.Log
}

func New(config Config, sim Simulation, topics TopicLister, events BusInspector, logger log.Log) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	s := &Server{
		config: config,
		sim:    sim,
		topics: topics,
		events: events,
		logger: logger.With(log.String("component", "api")),
	}

	app := fiber.New(fiber.Config{
		AppName:               "arenasim",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/topics", s.handleTopics)
	api.Get("/robots", s.handleListRobots)

	api.Post("/robots", s.requireToken, s.handleSpawn)
	api.Delete("/robots/:ns", s.requireToken, s.handleDelete)
	api.Post("/robots/:ns/safe-dist", s.requireToken, s.handleSafeDist)
	api.Post("/robots/:ns/contacts", s.requireToken, s.handleContact)

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s.config.Addr == "" {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Control API listening", log.String("addr", s.config.Addr))
		errCh <- s.app.Listen(s.config.Addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("control api: %w", err)
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("Control API shutdown failed", log.Error(err))
			return err
		}
		return nil
	}
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.config.Token == "" {
		return c.Next()
	}
	auth := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token != s.config.Token {
		s.logger.Warn("Rejected unauthenticated request",
			log.String("path", c.Path()),
			log.String("remote_addr", c.IP()))
		return ErrUnauthorized
	}
	return c.Next()
}

func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), s.config.RequestTimeout)
}

func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
