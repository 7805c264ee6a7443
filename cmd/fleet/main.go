// fleet: Fleet service for rover management.
// Accepts websocket connections from rovers and relays operator commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sightline/go-rover/internal/log"
	"github.com/sightline/go-rover/pkg/fleet"
	"github.com/sightline/go-rover/pkg/protocol"
)

var (
	version = "1.0.0"
	port    = flag.Int("port", 8080, "HTTP server port")
	debug   = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	// Override from environment
	if envPort := os.Getenv("PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", port)
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	app := fiber.New(fiber.Config{
		AppName:               "rover-fleet",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if *debug {
		app.Use(logger.New())
	}

	// Rover hub
	hub := fleet.NewHub()
	hub.RegisterRoutes(app)
	hub.RegisterAPIRoutes(app.Group("/api"))

	// Health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version,
			"rovers":  hub.RoverCount(),
		})
	})

	// Metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		stats := hub.GetStats()
		return c.SendString(fmt.Sprintf(`# HELP rover_fleet_rovers Connected rover count
# TYPE rover_fleet_rovers gauge
rover_fleet_rovers %d

# HELP rover_fleet_messages_received Total messages received
# TYPE rover_fleet_messages_received counter
rover_fleet_messages_received %d

# HELP rover_fleet_messages_sent Total messages sent
# TYPE rover_fleet_messages_sent counter
rover_fleet_messages_sent %d

# HELP rover_fleet_states_received Total state reports received
# TYPE rover_fleet_states_received counter
rover_fleet_states_received %d
`, stats.RoverCount, stats.MessagesReceived, stats.MessagesSent, stats.StatesReceived))
	})

	hub.OnState(func(roverID string, state *protocol.StateData) {
		log.Debug("state report",
			"rover", roverID,
			"tracking", state.Tracking,
			"phase", state.SearchPhase,
			"commands", state.CommandsSent)
	})

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", *port)
		log.Info("fleet server starting",
			"addr", addr,
			"ws", fmt.Sprintf("ws://localhost:%d/ws/rover", *port))

		if err := app.Listen(addr); err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}
