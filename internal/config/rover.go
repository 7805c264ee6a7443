// Package config provides configuration loading for rover commands.
package config

import (
	"fmt"
	"os"
)

// DefaultActuatorPort is the port the onboard drive daemon listens on.
const DefaultActuatorPort = "8000"

// RoverIP returns the rover IP from ROVER_IP env var.
// Falls back to the provided default if not set.
func RoverIP(defaultIP string) string {
	if ip := os.Getenv("ROVER_IP"); ip != "" {
		return ip
	}
	return defaultIP
}

// RoverIPRequired returns the rover IP from ROVER_IP env var.
// Exits if not set.
func RoverIPRequired() string {
	ip := os.Getenv("ROVER_IP")
	if ip == "" {
		fmt.Fprintln(os.Stderr, "Error: ROVER_IP environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: ROVER_IP=192.168.68.80 rover run")
		os.Exit(1)
	}
	return ip
}

// ActuatorURL returns the drive daemon HTTP base URL for a rover IP.
func ActuatorURL(roverIP string) string {
	return fmt.Sprintf("http://%s:%s", roverIP, DefaultActuatorPort)
}
