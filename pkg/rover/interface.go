// Package rover provides interfaces and implementations for rover drive
// control.
//
// Interfaces are kept small and composable; consumers should depend only on
// the ones they actually use. The dispatcher, for instance, only needs
// DriveController.
package rover

import "github.com/sightline/go-rover/pkg/command"

// DriveController sends one drive command to the rover. accepted is the
// rover's own acknowledgement; transportStatus describes the HTTP exchange
// for logging. A non-accepted response is handled the same as an error.
type DriveController interface {
	Drive(cmd command.Command) (accepted bool, transportStatus string, err error)
}

// StatusController provides rover status queries.
type StatusController interface {
	GetStatus() (string, error)
}

// Controller is the composite interface for full rover control.
type Controller interface {
	DriveController
	StatusController
}

// Ensure HTTPController implements Controller
var _ Controller = (*HTTPController)(nil)
