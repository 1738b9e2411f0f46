package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/zeusync/arenasim/internal/core/events/bus"
	"github.com/zeusync/arenasim/internal/core/observability/log"
	"github.com/zeusync/arenasim/internal/core/protocol"
	"github.com/zeusync/arenasim/internal/core/robot"
	"github.com/zeusync/arenasim/internal/core/system"
)

type StatusResponse struct {
	RunID string       `json:"run_id"`
	World system.Stats `json:"world"`
	Bus   *BusStatus   `json:"bus,omitempty"`
}

type BusStatus struct {
	Metrics bus.EventBusMetrics `json:"metrics"`
	Topics  []bus.TopicInfo     `json:"topics"`
}

type SafeDistResponse struct {
	Attached bool `json:"attached"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{RunID: s.topics.RunID(), World: s.sim.Stats()}
	if s.events != nil {
		resp.Bus = &BusStatus{Metrics: s.events.GetMetrics(), Topics: s.events.GetTopics()}
	}
	return c.JSON(resp)
}

func (s *Server) handleTopics(c *fiber.Ctx) error {
	topics := s.topics.Topics()
	if topics == nil {
		topics = []protocol.TopicInfo{}
	}
	return c.JSON(topics)
}

func (s *Server) handleListRobots(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	robots, err := s.sim.Robots(ctx)
	if err != nil {
		return err
	}
	if robots == nil {
		robots = []robot.Info{}
	}
	return c.JSON(robots)
}

func (s *Server) handleSpawn(c *fiber.Ctx) error {
	var req robot.SpawnRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()
	info, err := s.sim.Spawn(ctx, req)
	if err != nil {
		s.logger.Warn("Spawn failed", log.String("robot", req.Namespace), log.Error(err))
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(info)
}

func (s *Server) handleDelete(c *fiber.Ctx) error {
	ctx, cancel := s.requestContext(c)
	defer cancel()
	if err := s.sim.Delete(ctx, c.Params("ns")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleSafeDist(c *fiber.Ctx) error {
	var req robot.SafeDistRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Robot = c.Params("ns")
	ctx, cancel := s.requestContext(c)
	defer cancel()
	ok, err := s.sim.AttachSafeDist(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(SafeDistResponse{Attached: ok})
}

func (s *Server) handleContact(c *fiber.Ctx) error {
	var ev system.ContactEvent
	if err := bind(c, &ev); err != nil {
		return err
	}
	ev.Robot = c.Params("ns")
	ctx, cancel := s.requestContext(c)
	defer cancel()
	if err := s.sim.Contact(ctx, ev); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}
