package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sightline/go-rover/internal/config"
	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/rover"
)

var driveCmd = &cobra.Command{
	Use:   "drive <command>",
	Short: "Send a single drive command to the rover",
	Long: `Drive sends one command letter to the rover's drive daemon and prints
the result. Valid commands: F (forward), B (backward), L (left),
R (right), S (stop). Full names are accepted too.

Examples:
  ROVER_IP=192.168.68.80 rover drive F
  rover drive forward`,
	Args: cobra.ExactArgs(1),
	RunE: driveOnce,
}

func init() {
	rootCmd.AddCommand(driveCmd)
}

func driveOnce(cmd *cobra.Command, args []string) error {
	parsed, err := command.Parse(args[0])
	if err != nil {
		return err
	}

	ctrl := rover.NewHTTPController(config.RoverIPRequired())

	accepted, status, err := ctrl.Drive(parsed)
	if err != nil {
		return fmt.Errorf("drive failed: %w", err)
	}

	if accepted {
		fmt.Printf("%s %s\n", color.New(color.FgGreen).Sprint("sent"), parsed.Name())
	} else {
		fmt.Printf("%s %s (%s)\n", color.New(color.FgYellow).Sprint("refused"), parsed.Name(), status)
	}

	return nil
}
