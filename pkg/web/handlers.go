package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-screendistance/pkg/hub"
	"github.com/teslashibe/go-screendistance/pkg/lifecycle"
	"github.com/teslashibe/go-screendistance/pkg/monitor"
)

// handleStatus returns the monitor status.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

// handleStart delivers a start command.
func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.ctrl.Start(s.context()); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, monitor.ErrShutdown) || errors.Is(err, lifecycle.ErrInvalidTransition) {
			status = fiber.StatusConflict
		}
		s.logger.Warn("start command failed", "error", err)
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.ctrl.Status())
}

// handleStop delivers a stop command.
func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.ctrl.StopMonitoring(); err != nil {
		s.logger.Warn("stop command failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.ctrl.Status())
}

type thresholdRequest struct {
	Cm float64 `json:"cm"`
}

// handleThreshold changes the warning distance.
func (s *Server) handleThreshold(c *fiber.Ctx) error {
	var req thresholdRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := s.ctrl.SetWarningThreshold(req.Cm); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.ctrl.Status())
}

// handleOverlayWS streams overlay state changes to a client.
func (s *Server) handleOverlayWS(conn *websocket.Conn) {
	client := hub.NewClient(s.overlay.hub, conn)
	if client == nil {
		conn.Close()
		return
	}
	client.Run()
}
