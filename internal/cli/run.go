package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/sightline/go-rover/internal/config"
	"github.com/sightline/go-rover/internal/log"
	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/detect"
	"github.com/sightline/go-rover/pkg/detect/ssd"
	"github.com/sightline/go-rover/pkg/pilot"
	"github.com/sightline/go-rover/pkg/protocol"
	"github.com/sightline/go-rover/pkg/rover"
	"github.com/sightline/go-rover/pkg/uplink"
	"github.com/sightline/go-rover/pkg/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the autonomous tracking pilot",
	Long: `Run starts the full onboard loop: camera capture, person detection,
tracking and search decisions, and command dispatch to the drive daemon.

The dashboard is served on the configured web port. If an uplink URL is
configured the rover also reports state to the fleet server.

Example:
  ROVER_IP=192.168.68.80 rover run
  rover run --config rover.yaml`,
	RunE: runPilot,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-web", false, "Disable the dashboard server")
	runCmd.Flags().Bool("no-track", false, "Start with autonomous tracking disabled")
}

func runPilot(cmd *cobra.Command, args []string) error {
	level := "info"
	if viperVerbose() {
		level = "debug"
	}
	log.Init(level)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	roverIP := cfg.Rover.IP
	if roverIP == "" {
		roverIP = config.RoverIPRequired()
	}

	// Detector
	detCfg := ssd.DefaultConfig()
	if cfg.Camera.ModelPath != "" {
		detCfg.ModelPath = cfg.Camera.ModelPath
	}
	if cfg.Camera.ConfigPath != "" {
		detCfg.ProtoPath = cfg.Camera.ConfigPath
	}
	detCfg.ConfidenceThresh = cfg.Pilot.ConfidenceThreshold

	detector, err := ssd.New(detCfg)
	if err != nil {
		return fmt.Errorf("failed to load detector: %w", err)
	}
	defer detector.Close()

	// Camera
	capture, err := gocv.VideoCaptureDevice(cfg.Camera.Device)
	if err != nil {
		return fmt.Errorf("failed to open camera %d: %w", cfg.Camera.Device, err)
	}
	defer capture.Close()

	capture.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Camera.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Camera.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(cfg.Camera.FPS))

	// Pilot
	ctrl := rover.NewHTTPController(roverIP)
	p := pilot.New(cfg.Pilot, ctrl)

	if noTrack, _ := cmd.Flags().GetBool("no-track"); noTrack {
		p.SetTracking(false, time.Now())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.Run(ctx)

	// Dashboard
	noWeb, _ := cmd.Flags().GetBool("no-web")
	if cfg.Web.Enabled && !noWeb {
		srv := web.NewServer(cfg.Web.Port)
		srv.StatusFn = p.Status
		srv.OnDrive = func(c string) error {
			parsed, err := command.Parse(c)
			if err != nil {
				return err
			}
			p.ManualDrive(parsed, time.Now())
			return nil
		}
		srv.OnTrack = func(enabled bool) error {
			p.SetTracking(enabled, time.Now())
			return nil
		}
		srv.StartAsync()
		defer srv.Shutdown()
	}

	// Fleet uplink
	if cfg.Uplink.Enabled && cfg.Uplink.URL != "" {
		interval, err := time.ParseDuration(cfg.Uplink.StateInterval)
		if err != nil {
			interval = time.Second
		}

		up := uplink.New(cfg.Uplink.URL, cfg.Rover.ID, interval)
		up.StateFn = func() protocol.StateData {
			return toStateData(p.Status())
		}
		up.OnDrive = func(c string) {
			if parsed, err := command.Parse(c); err == nil {
				p.ManualDrive(parsed, time.Now())
			}
		}
		up.OnTrack = func(enabled bool) {
			p.SetTracking(enabled, time.Now())
		}
		go up.Run(ctx)
	}

	log.Info("pilot running",
		"rover", roverIP,
		"camera", cfg.Camera.Device,
		"tracking", p.Tracking())

	// Capture loop
	go captureLoop(ctx, capture, detector, p)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	// Leave the rover stopped
	ctrl.Drive(command.Stop)

	return nil
}

// toStateData maps a pilot snapshot to the uplink wire payload
func toStateData(st pilot.Status) protocol.StateData {
	return protocol.StateData{
		Tracking:        st.Tracking,
		CommandsSent:    st.CommandsSent,
		TransportErrors: st.TransportErrors,
		LastCommand:     st.LastCommand,
		SearchPhase:     st.SearchPhase,
		SearchCycle:     st.SearchCycle,
		MicroTurnsDone:  st.MicroTurnsDone,
		MicroTurnTarget: st.MicroTurnTarget,
		FramesSeen:      st.FramesSeen,
	}
}

// captureLoop reads camera frames, runs detection and feeds the pilot
func captureLoop(ctx context.Context, capture *gocv.VideoCapture, detector detect.Detector, p *pilot.Pilot) {
	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ok := capture.Read(&img); !ok || img.Empty() {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		jpeg, err := gocv.IMEncode(gocv.JPEGFileExt, img)
		if err != nil {
			continue
		}

		dets, err := detector.Detect(jpeg.GetBytes())
		jpeg.Close()
		if err != nil {
			log.Debug("detection failed", "error", err)
			continue
		}

		p.OnFrame(dets, float64(img.Cols()), float64(img.Rows()), time.Now())
	}
}
