package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/hub"
	"github.com/sightline/go-rover/pkg/pilot"
)

// handleStatus returns the pilot's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.StatusFn == nil {
		return c.JSON(pilot.Status{})
	}
	return c.JSON(s.StatusFn())
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

// DriveRequest is the body of a manual drive request
type DriveRequest struct {
	Command string `json:"command"`
}

// handleDrive issues a manual drive command
func (s *Server) handleDrive(c *fiber.Ctx) error {
	var req DriveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	cmd, err := command.Parse(req.Command)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if s.OnDrive == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "drive not configured",
		})
	}

	if err := s.OnDrive(string(cmd)); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.AddLog("drive", "manual: "+cmd.Name())

	return c.JSON(fiber.Map{"command": string(cmd)})
}

// TrackRequest is the body of a tracking toggle request
type TrackRequest struct {
	Enabled bool `json:"enabled"`
}

// handleTrack enables or disables autonomous tracking
func (s *Server) handleTrack(c *fiber.Ctx) error {
	var req TrackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if s.OnTrack == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "tracking toggle not configured",
		})
	}

	if err := s.OnTrack(req.Enabled); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{"tracking": req.Enabled})
}

// handleStatusWS streams live pilot state to a dashboard client
func (s *Server) handleStatusWS(c *websocket.Conn) {
	// Send current state immediately so the dashboard renders
	// before the first broadcast tick.
	if s.StatusFn != nil {
		c.WriteJSON(s.StatusFn())
	}

	client := hub.NewClient(s.statusHub, c)
	client.Run() // Blocks until disconnect
}

// handleLogsWS streams live log entries to a dashboard client
func (s *Server) handleLogsWS(c *websocket.Conn) {
	// Replay the recent buffer first
	s.logsMu.RLock()
	for _, entry := range s.logs {
		c.WriteJSON(entry)
	}
	s.logsMu.RUnlock()

	client := hub.NewClient(s.logHub, c)
	client.Run() // Blocks until disconnect
}
