package uplink

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sightline/go-rover/pkg/fleet"
	"github.com/sightline/go-rover/pkg/protocol"
)

func TestSessionID(t *testing.T) {
	c := New("ws://localhost:1/ws/rover", "r1", time.Second)

	if c.SessionID() == "" {
		t.Error("SessionID should be non-empty")
	}

	c2 := New("ws://localhost:1/ws/rover", "r1", time.Second)
	if c.SessionID() == c2.SessionID() {
		t.Error("each client should get its own session ID")
	}
}

func TestConnectedInitiallyFalse(t *testing.T) {
	c := New("ws://localhost:1/ws/rover", "r1", time.Second)

	if c.Connected() {
		t.Error("Connected should be false before Run")
	}
}

func TestStatePushAndDriveRelay(t *testing.T) {
	hub := fleet.NewHub()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterRoutes(app)

	go app.Listen(":18090")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	var statesSeen atomic.Uint64
	hub.OnState(func(roverID string, state *protocol.StateData) {
		if roverID == "uplink-test" && state.SessionID != "" {
			statesSeen.Add(1)
		}
	})

	client := New("ws://localhost:18090/ws/rover", "uplink-test", 50*time.Millisecond)
	client.StateFn = func() protocol.StateData {
		return protocol.StateData{
			Tracking:    true,
			LastCommand: "F",
		}
	}

	var driveCmd atomic.Value
	client.OnDrive = func(cmd string) {
		driveCmd.Store(cmd)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	// Wait for connection and at least one state push
	deadline := time.Now().Add(2 * time.Second)
	for statesSeen.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	if !client.Connected() {
		t.Fatal("client should be connected")
	}
	if statesSeen.Load() == 0 {
		t.Fatal("hub should have received a state report")
	}

	// Relay a drive command back down
	if err := hub.SendDrive("uplink-test", "R"); err != nil {
		t.Fatalf("SendDrive error: %v", err)
	}

	deadline = time.Now().Add(time.Second)
	for driveCmd.Load() == nil && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	if got, _ := driveCmd.Load().(string); got != "R" {
		t.Errorf("OnDrive got %q, want R", got)
	}
}
