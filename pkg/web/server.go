// Package web provides the rover's local dashboard: REST endpoints for
// status and logs plus websocket streaming of live state.
package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/sightline/go-rover/internal/log"
	"github.com/sightline/go-rover/pkg/hub"
	"github.com/sightline/go-rover/pkg/pilot"
)

// LogEntry represents a log line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, drive, search, error
	Message string `json:"message"`
}

// Server is the rover dashboard server
type Server struct {
	app  *fiber.App
	port string

	// Log buffer (last 500 entries)
	logs   []LogEntry
	logsMu sync.RWMutex

	statusHub *hub.Hub
	logHub    *hub.Hub

	// StatusFn supplies the current pilot state for /api/status
	// and the periodic websocket broadcast.
	StatusFn func() pilot.Status

	// OnDrive is invoked for manual drive requests
	OnDrive func(cmd string) error

	// OnTrack toggles autonomous tracking
	OnTrack func(enabled bool) error

	stopBroadcast chan struct{}
}

// NewServer creates a new dashboard server
func NewServer(port string) *Server {
	s := &Server{
		port:          port,
		logs:          make([]LogEntry, 0, 500),
		statusHub:     hub.New("status"),
		logHub:        hub.New("logs"),
		stopBroadcast: make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Rover Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/logs", s.handleGetLogs)
	api.Post("/drive", s.handleDrive)
	api.Post("/track", s.handleTrack)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))

	s.app = app
	return s
}

// Start starts the dashboard server and blocks
func (s *Server) Start() error {
	go s.statusHub.Run()
	go s.logHub.Run()
	go s.broadcastLoop()

	log.Info("dashboard listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the dashboard server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			log.Error("dashboard server error", "error", err)
		}
	}()
}

// broadcastLoop pushes the pilot state to websocket clients once a second
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopBroadcast:
			return
		case <-ticker.C:
			if s.StatusFn == nil || s.statusHub.ClientCount() == 0 {
				continue
			}
			s.statusHub.BroadcastJSON(s.StatusFn())
		}
	}
}

// AddLog adds a log entry and broadcasts it to connected clients
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > 500 {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// Shutdown gracefully stops the dashboard server
func (s *Server) Shutdown() error {
	close(s.stopBroadcast)
	return s.app.Shutdown()
}
