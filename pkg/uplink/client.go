// Package uplink maintains the rover's websocket connection to the fleet
// server: periodic state reports upstream, drive and track commands back.
package uplink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sightline/go-rover/internal/log"
	"github.com/sightline/go-rover/pkg/protocol"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	readTimeout      = 120 * time.Second
	pingInterval     = 30 * time.Second

	// reconnectBase is the initial retry delay, doubled up to reconnectMax
	reconnectBase = time.Second
	reconnectMax  = 30 * time.Second
)

// Client manages the websocket connection to the fleet server
type Client struct {
	url       string
	roverID   string
	sessionID string

	stateInterval time.Duration

	ws   *websocket.Conn
	wsMu sync.Mutex

	// StateFn supplies the snapshot pushed upstream every stateInterval
	StateFn func() protocol.StateData

	// OnDrive is invoked when the fleet relays a manual drive command
	OnDrive func(cmd string)

	// OnTrack is invoked when the fleet toggles autonomous tracking
	OnTrack func(enabled bool)

	connected bool
	connMu    sync.RWMutex
}

// New creates an uplink client. url is the fleet websocket endpoint
// without the rover ID suffix, e.g. ws://fleet:9000/ws/rover.
func New(url, roverID string, stateInterval time.Duration) *Client {
	if stateInterval <= 0 {
		stateInterval = time.Second
	}
	return &Client{
		url:           url,
		roverID:       roverID,
		sessionID:     uuid.NewString(),
		stateInterval: stateInterval,
	}
}

// SessionID returns the identifier generated for this process lifetime
func (c *Client) SessionID() string {
	return c.sessionID
}

// Connected reports whether the uplink currently has a live connection
func (c *Client) Connected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Run connects to the fleet server and keeps the connection alive,
// reconnecting with backoff until ctx is cancelled. It blocks.
func (c *Client) Run(ctx context.Context) {
	delay := reconnectBase

	for {
		if err := c.connect(); err != nil {
			log.Warn("uplink connect failed", "url", c.url, "error", err, "retry_in", delay)

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > reconnectMax {
				delay = reconnectMax
			}
			continue
		}

		delay = reconnectBase
		c.session(ctx)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// connect dials the fleet server and marks the uplink connected
func (c *Client) connect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	ws, _, err := dialer.Dial(c.url+"/"+c.roverID, nil)
	if err != nil {
		return fmt.Errorf("dial fleet: %w", err)
	}

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	c.wsMu.Lock()
	c.ws = ws
	c.wsMu.Unlock()

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	log.Info("uplink connected", "url", c.url, "rover", c.roverID)
	return nil
}

// session runs the read loop plus the state and ping tickers until the
// connection drops or ctx is cancelled.
func (c *Client) session(ctx context.Context) {
	defer func() {
		c.connMu.Lock()
		c.connected = false
		c.connMu.Unlock()

		c.wsMu.Lock()
		if c.ws != nil {
			c.ws.Close()
			c.ws = nil
		}
		c.wsMu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readLoop()
	}()

	stateTicker := time.NewTicker(c.stateInterval)
	pingTicker := time.NewTicker(pingInterval)
	defer stateTicker.Stop()
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			log.Warn("uplink connection lost", "rover", c.roverID)
			return
		case <-stateTicker.C:
			c.pushState()
		case <-pingTicker.C:
			c.writeControl(websocket.PingMessage)
		}
	}
}

// readLoop consumes fleet messages until the connection drops
func (c *Client) readLoop() {
	for {
		c.wsMu.Lock()
		ws := c.ws
		c.wsMu.Unlock()
		if ws == nil {
			return
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			log.Debug("uplink parse error", "error", err)
			continue
		}

		switch msg.Type {
		case protocol.TypeDrive:
			cmd, err := msg.GetDriveCommand()
			if err != nil {
				continue
			}
			if c.OnDrive != nil {
				c.OnDrive(cmd.Command)
			}

		case protocol.TypeTrack:
			track, err := msg.GetTrackCommand()
			if err != nil {
				continue
			}
			if c.OnTrack != nil {
				c.OnTrack(track.Enabled)
			}

		case protocol.TypePong:
			// Keepalive reply, read deadline already extended
		}
	}
}

// pushState sends the current pilot snapshot to the fleet server
func (c *Client) pushState() {
	if c.StateFn == nil {
		return
	}

	state := c.StateFn()
	state.RoverID = c.roverID
	state.SessionID = c.sessionID

	msg, err := protocol.NewStateMessage(state)
	if err != nil {
		return
	}

	if err := c.send(msg); err != nil {
		log.Debug("uplink state push failed", "error", err)
	}
}

// send writes a protocol message to the connection
func (c *Client) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws == nil {
		return fmt.Errorf("uplink not connected")
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// writeControl sends a websocket control frame
func (c *Client) writeControl(messageType int) {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()

	if c.ws == nil {
		return
	}
	c.ws.WriteControl(messageType, nil, time.Now().Add(writeTimeout))
}
