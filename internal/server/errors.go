package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/zeusync/arenasim/internal/core/robot"
	"github.com/zeusync/arenasim/internal/core/system"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid request")
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, robot.ErrRobotNotFound), errors.Is(err, system.ErrUnknownSensor):
		return fiber.StatusNotFound
	case errors.Is(err, robot.ErrRobotExists), errors.Is(err, robot.ErrNoCollisionSensor):
		return fiber.StatusConflict
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, robot.ErrInvalidURDF),
		errors.Is(err, robot.ErrNoRootLink),
		errors.Is(err, robot.ErrEmptyNamespace),
		errors.Is(err, robot.ErrSafeDistKind),
		errors.Is(err, robot.ErrEmptyTopic),
		errors.Is(err, system.ErrBadEvent):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, system.ErrWorldStopped):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(ErrorResponse{Error: err.Error()})
}
