package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sightline/go-rover/internal/config"
	"github.com/sightline/go-rover/pkg/rover"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the rover's drive daemon state",
	Long: `Status asks the drive daemon for its current state.

Example:
  ROVER_IP=192.168.68.80 rover status`,
	RunE: checkStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func checkStatus(cmd *cobra.Command, args []string) error {
	ip := config.RoverIPRequired()
	ctrl := rover.NewHTTPController(ip)

	state, err := ctrl.GetStatus()
	if err != nil {
		fmt.Printf("rover %s: %s (%v)\n", ip, color.New(color.FgRed).Sprint("unreachable"), err)
		return nil
	}

	fmt.Printf("rover %s: %s (state=%s)\n", ip, color.New(color.FgGreen).Sprint("online"), state)
	return nil
}
