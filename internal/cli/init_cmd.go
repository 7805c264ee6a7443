package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter rover.yaml",
	Long: `Init creates a rover.yaml in the current directory with the stock
tuning spelled out, ready to edit.

Example:
  rover init
  rover init --force`,
	RunE: initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite existing config")
}

const configTemplate = `rover:
  id: rover
  ip: ""            # or set ROVER_IP

camera:
  device: 0
  width: 640
  height: 480
  fps: 10
  model_path: models/mobilenet_ssd.caffemodel
  config_path: models/mobilenet_ssd.prototxt

web:
  enabled: true
  port: "3000"

uplink:
  enabled: false
  url: ""           # ws://fleet-host:8080/ws/rover
  state_interval: 1s

pilot:
  confidence_threshold: 0.5
  prefer_largest: true
  retention_window: 300ms
  buffer_capacity: 4
  timer_interval: 100ms

  policy:
    lateral_dead_zone: 0.18
    lateral_offset_ratio: 0.18
    min_area: 0.03
    ideal_area: 0.22
    max_area: 0.38

  search:
    scan_hold: 500ms
    pre_turn_hold: 50ms
    micro_turn_hold: 120ms
    long_pause_hold: 250ms
    cycle_rest_hold: 250ms
    target_micro_turns: 36
    global_timeout: 240s
    direction: R
    alternate_direction: false

  turn:
    search_base_hold: 240ms
    tracking_base_hold: 280ms
    stop_spacing: 120ms
    total_stops: 3

  dispatch:
    auto: 500ms
    search: 20ms
    manual: 80ms
`

func initProject(cmd *cobra.Command, args []string) error {
	const path = "rover.yaml"

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Println("Wrote", path)
	return nil
}
