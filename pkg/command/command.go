// Package command defines the locomotion commands understood by the rover.
//
// The rover's drive firmware accepts exactly five single-letter commands.
// Everything upstream (policy, search, manual control) reduces to one of
// these; the dispatcher rejects anything else at the boundary.
package command

import "fmt"

// Command is a single locomotion command.
type Command string

const (
	Forward  Command = "F"
	Backward Command = "B"
	Left     Command = "L"
	Right    Command = "R"
	Stop     Command = "S"
)

// Valid reports whether c is one of the five drive commands.
func (c Command) Valid() bool {
	switch c {
	case Forward, Backward, Left, Right, Stop:
		return true
	}
	return false
}

// IsTurn reports whether c is a rotation command.
func (c Command) IsTurn() bool {
	return c == Left || c == Right
}

// Opposite returns the opposing turn for L/R. For non-turn commands it
// returns the command unchanged.
func (c Command) Opposite() Command {
	switch c {
	case Left:
		return Right
	case Right:
		return Left
	}
	return c
}

// Name returns a human-readable name for logging and dashboards.
func (c Command) Name() string {
	switch c {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	case Stop:
		return "stop"
	}
	return "unknown"
}

// Parse converts a wire/CLI string into a Command.
// It accepts the single-letter form ("F") and the long form ("forward"),
// case-insensitively for the letter.
func Parse(s string) (Command, error) {
	switch s {
	case "F", "f", "forward":
		return Forward, nil
	case "B", "b", "backward":
		return Backward, nil
	case "L", "l", "left":
		return Left, nil
	case "R", "r", "right":
		return Right, nil
	case "S", "s", "stop":
		return Stop, nil
	}
	return "", fmt.Errorf("invalid drive command %q", s)
}
