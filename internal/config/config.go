package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/sightline/go-rover/pkg/dispatch"
	"github.com/sightline/go-rover/pkg/pilot"
	"github.com/sightline/go-rover/pkg/policy"
	"github.com/sightline/go-rover/pkg/search"
	"github.com/sightline/go-rover/pkg/turn"
)

// Config represents the full rover configuration
type Config struct {
	Rover  RoverConfig  `mapstructure:"rover"`
	Pilot  pilot.Config `mapstructure:"pilot"`
	Camera CameraConfig `mapstructure:"camera"`
	Web    WebConfig    `mapstructure:"web"`
	Uplink UplinkConfig `mapstructure:"uplink"`
}

// RoverConfig identifies the rover and its drive daemon
type RoverConfig struct {
	ID string `mapstructure:"id"`
	IP string `mapstructure:"ip"`
}

// CameraConfig contains capture and detection settings
type CameraConfig struct {
	Device     int    `mapstructure:"device"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	FPS        int    `mapstructure:"fps"`
	ModelPath  string `mapstructure:"model_path"`
	ConfigPath string `mapstructure:"config_path"`
}

// WebConfig contains dashboard settings
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

// UplinkConfig contains fleet connection settings
type UplinkConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	StateInterval string `mapstructure:"state_interval"`
}

// Load loads configuration from the viper-bound file and environment
func Load() (*Config, error) {
	cfg := &Config{}

	// Bool defaults must go through viper: an unmarshalled false is
	// indistinguishable from unset.
	viper.SetDefault("pilot.prefer_largest", true)
	viper.SetDefault("web.enabled", true)

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Rover.ID == "" {
		cfg.Rover.ID = "rover"
	}
	if cfg.Rover.IP == "" {
		cfg.Rover.IP = RoverIP("")
	}

	if cfg.Camera.Width == 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.Height == 0 {
		cfg.Camera.Height = 480
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = 10
	}

	if cfg.Web.Port == "" {
		cfg.Web.Port = "3000"
	}

	if cfg.Uplink.StateInterval == "" {
		cfg.Uplink.StateInterval = "1s"
	}

	applyPilotDefaults(&cfg.Pilot)
}

// applyPilotDefaults fills zero-valued pilot fields from the stock tuning
func applyPilotDefaults(p *pilot.Config) {
	def := pilot.DefaultConfig()

	if p.ConfidenceThreshold == 0 {
		p.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if p.RetentionWindow == 0 {
		p.RetentionWindow = def.RetentionWindow
	}
	if p.BufferCapacity == 0 {
		p.BufferCapacity = def.BufferCapacity
	}
	if p.TimerInterval == 0 {
		p.TimerInterval = def.TimerInterval
	}

	if p.Policy == (policy.Config{}) {
		p.Policy = def.Policy
	}
	if p.Turn == (turn.Config{}) {
		p.Turn = def.Turn
	}
	if p.Intervals == (dispatch.Intervals{}) {
		p.Intervals = def.Intervals
	}
	if p.Search == (search.Config{}) {
		p.Search = def.Search
	}
}
