// Package fleet provides the websocket hub that rovers connect to,
// plus HTTP routes for listing rovers and relaying commands to them.
package fleet

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sightline/go-rover/internal/log"
	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/protocol"
)

// RoverConnection represents a connected rover
type RoverConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	// LastState is the most recent state report, nil until the
	// first state message arrives.
	LastState *protocol.StateData

	mu sync.Mutex
}

// Send sends a message to the rover
func (r *RoverConnection) Send(msg *protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return r.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages websocket connections from rovers
type Hub struct {
	mu     sync.RWMutex
	rovers map[string]*RoverConnection

	// Callbacks
	onState func(roverID string, state *protocol.StateData)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	statesReceived   atomic.Uint64
}

// NewHub creates a new rover hub
func NewHub() *Hub {
	return &Hub{
		rovers: make(map[string]*RoverConnection),
	}
}

// OnState sets the callback for incoming rover state reports
func (h *Hub) OnState(callback func(roverID string, state *protocol.StateData)) {
	h.mu.Lock()
	h.onState = callback
	h.mu.Unlock()
}

// RegisterRoutes registers websocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Rover connection endpoint
	app.Get("/ws/rover", websocket.New(h.handleRover))
	app.Get("/ws/rover/:id", websocket.New(h.handleRover))
}

// handleRover handles a rover websocket connection
func (h *Hub) handleRover(c *websocket.Conn) {
	// Get rover ID from path or generate one
	roverID := c.Params("id")
	if roverID == "" {
		roverID = uuid.NewString()
	}

	rover := &RoverConnection{
		ID:        roverID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	h.mu.Lock()
	h.rovers[roverID] = rover
	count := len(h.rovers)
	h.mu.Unlock()

	log.Info("rover connected", "rover", roverID, "total", count)

	defer func() {
		h.mu.Lock()
		delete(h.rovers, roverID)
		count := len(h.rovers)
		h.mu.Unlock()

		log.Info("rover disconnected", "rover", roverID, "total", count)
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			log.Debug("rover read error", "rover", roverID, "error", err)
			return
		}

		rover.mu.Lock()
		rover.LastSeen = time.Now()
		rover.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(rover, data)
	}
}

// handleMessage processes an incoming message from a rover
func (h *Hub) handleMessage(rover *RoverConnection, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Debug("parse error", "rover", rover.ID, "error", err)
		return
	}

	h.mu.RLock()
	stateCb := h.onState
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeState:
		state, err := msg.GetStateData()
		if err != nil {
			return
		}
		h.statesReceived.Add(1)

		rover.mu.Lock()
		rover.LastState = state
		rover.mu.Unlock()

		if stateCb != nil {
			stateCb(rover.ID, state)
		}

	case protocol.TypePing:
		h.sendPong(rover, msg.Timestamp)
	}
}

// SendDrive relays a manual drive command to a rover
func (h *Hub) SendDrive(roverID string, cmd string) error {
	parsed, err := command.Parse(cmd)
	if err != nil {
		return err
	}

	msg, err := protocol.NewDriveMessage(string(parsed))
	if err != nil {
		return err
	}
	return h.sendToRover(roverID, msg)
}

// SendTrack toggles autonomous tracking on a rover
func (h *Hub) SendTrack(roverID string, enabled bool) error {
	msg, err := protocol.NewTrackMessage(enabled)
	if err != nil {
		return err
	}
	return h.sendToRover(roverID, msg)
}

// sendPong answers a rover's ping
func (h *Hub) sendPong(rover *RoverConnection, pingTS int64) {
	msg, err := protocol.NewPongMessage(pingTS)
	if err != nil {
		return
	}
	h.messagesSent.Add(1)
	rover.Send(msg)
}

// sendToRover sends a message to a specific rover
func (h *Hub) sendToRover(roverID string, msg *protocol.Message) error {
	h.mu.RLock()
	rover, ok := h.rovers[roverID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "rover not connected")
	}

	h.messagesSent.Add(1)
	return rover.Send(msg)
}

// GetRover returns a rover connection by ID
func (h *Hub) GetRover(roverID string) *RoverConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rovers[roverID]
}

// RoverCount returns the number of connected rovers
func (h *Hub) RoverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rovers)
}

// Stats contains hub statistics
type Stats struct {
	RoverCount       int    `json:"rover_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	StatesReceived   uint64 `json:"states_received"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		RoverCount:       h.RoverCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		StatesReceived:   h.statesReceived.Load(),
	}
}

// RoverInfo contains info about a connected rover
type RoverInfo struct {
	ID        string              `json:"id"`
	Connected time.Time           `json:"connected"`
	LastSeen  time.Time           `json:"last_seen"`
	State     *protocol.StateData `json:"state,omitempty"`
}

// GetRoverInfos returns info about all connected rovers
func (h *Hub) GetRoverInfos() []RoverInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]RoverInfo, 0, len(h.rovers))
	for _, r := range h.rovers {
		r.mu.Lock()
		infos = append(infos, RoverInfo{
			ID:        r.ID,
			Connected: r.Connected,
			LastSeen:  r.LastSeen,
			State:     r.LastState,
		})
		r.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers rover management routes
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	rovers := api.Group("/rovers")

	// List connected rovers
	rovers.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"rovers": h.GetRoverInfos(),
			"count":  h.RoverCount(),
		})
	})

	// Get hub stats
	rovers.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	// Relay a manual drive command
	rovers.Post("/:id/drive", func(c *fiber.Ctx) error {
		roverID := c.Params("id")

		var req struct {
			Command string `json:"command"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}

		if err := h.SendDrive(roverID, req.Command); err != nil {
			return c.Status(502).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"status": "sent"})
	})

	// Toggle tracking
	rovers.Post("/:id/track", func(c *fiber.Ctx) error {
		roverID := c.Params("id")

		var req struct {
			Enabled bool `json:"enabled"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}

		if err := h.SendTrack(roverID, req.Enabled); err != nil {
			return c.Status(502).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"status": "sent"})
	})
}
