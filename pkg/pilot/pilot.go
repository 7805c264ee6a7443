// Package pilot runs the autonomous tracking and search control loop.
//
// One OnFrame call per delivered frame runs the full pipeline
// (ingest → select → decide → sequence → dispatch) synchronously, so
// commands are never dispatched out of the order they were decided. An
// independent timer tick keeps the turn sequencer and search controller
// advancing when frame delivery stalls.
package pilot

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sightline/go-rover/internal/log"
	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/detect"
	"github.com/sightline/go-rover/pkg/dispatch"
	"github.com/sightline/go-rover/pkg/policy"
	"github.com/sightline/go-rover/pkg/search"
	"github.com/sightline/go-rover/pkg/turn"
)

// Config holds the pilot's tuning. Component configs nest so one file
// configures the whole decision engine.
type Config struct {
	// ConfidenceThreshold drops detections below this confidence before
	// they reach the buffer.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`

	// PreferLargest selects the largest detection instead of the first.
	PreferLargest bool `mapstructure:"prefer_largest"`

	// RetentionWindow is how far back the buffer bridges empty frames.
	RetentionWindow time.Duration `mapstructure:"retention_window"`

	// BufferCapacity is the detection ring size.
	BufferCapacity int `mapstructure:"buffer_capacity"`

	// TimerInterval is the independent tick advancing time-based phases.
	TimerInterval time.Duration `mapstructure:"timer_interval"`

	Policy    policy.Config      `mapstructure:"policy"`
	Search    search.Config      `mapstructure:"search"`
	Turn      turn.Config        `mapstructure:"turn"`
	Intervals dispatch.Intervals `mapstructure:"dispatch"`
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.5,
		PreferLargest:       true,
		RetentionWindow:     300 * time.Millisecond,
		BufferCapacity:      detect.DefaultBufferCapacity,
		TimerInterval:       100 * time.Millisecond,
		Policy:              policy.DefaultConfig(),
		Search:              search.DefaultConfig(),
		Turn:                turn.DefaultConfig(),
		Intervals:           dispatch.DefaultIntervals(),
	}
}

// Status is a snapshot of the pilot for dashboards and telemetry.
type Status struct {
	Tracking        bool      `json:"tracking"`
	CommandsSent    uint64    `json:"commands_sent"`
	TransportErrors uint64    `json:"transport_errors"`
	LastCommand     string    `json:"last_command"`
	LastCommandAt   time.Time `json:"last_command_at"`
	SearchPhase     string    `json:"search_phase"`
	SearchCycle     int       `json:"search_cycle"`
	MicroTurnsDone  int       `json:"micro_turns_done"`
	MicroTurnTarget int       `json:"micro_turn_target"`
	TurnActive      bool      `json:"turn_active"`
	StopsSent       int       `json:"stops_sent"`
	TotalStops      int       `json:"total_stops"`
	FramesSeen      uint64    `json:"frames_seen"`
}

// Pilot owns the decision engine. SearchState, TurnSequence and dispatch
// bookkeeping each live in exactly one component; the pilot only routes
// ticks and detections between them.
type Pilot struct {
	cfg Config

	buf      *detect.Buffer
	disp     *dispatch.Dispatcher
	seq      *turn.Sequencer
	searcher *search.Controller

	mu           sync.Mutex
	tracking     bool
	lastDecision command.Command

	frames atomic.Uint64
}

// New creates a pilot driving act. Tracking starts enabled.
func New(cfg Config, act dispatch.Actuator) *Pilot {
	disp := dispatch.New(act, cfg.Intervals)
	seq := turn.NewSequencer(cfg.Turn, disp)
	searcher := search.NewController(cfg.Search, seq, disp)

	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = detect.DefaultBufferCapacity
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = DefaultConfig().RetentionWindow
	}
	if cfg.TimerInterval <= 0 {
		cfg.TimerInterval = DefaultConfig().TimerInterval
	}

	return &Pilot{
		cfg:      cfg,
		buf:      detect.NewBuffer(cfg.BufferCapacity),
		disp:     disp,
		seq:      seq,
		searcher: searcher,
		tracking: true,
	}
}

// Run starts the dispatch worker and the timer tick. Blocks until ctx is
// cancelled.
func (p *Pilot) Run(ctx context.Context) {
	p.disp.Start(ctx)

	ticker := time.NewTicker(p.cfg.TimerInterval)
	defer ticker.Stop()

	log.Info("pilot started",
		"timer_interval", p.cfg.TimerInterval,
		"retention_window", p.cfg.RetentionWindow,
		"prefer_largest", p.cfg.PreferLargest)

	for {
		select {
		case <-ctx.Done():
			log.Info("pilot stopped")
			return
		case <-ticker.C:
			p.TimerTick(time.Now())
		}
	}
}

// OnFrame runs one control tick for a delivered frame's detections.
// Detections below the confidence threshold are dropped before ingest.
func (p *Pilot) OnFrame(dets []detect.Detection, frameW, frameH float64, now time.Time) {
	p.frames.Add(1)

	dets = detect.FilterConfidence(dets, p.cfg.ConfidenceThreshold)
	p.buf.Ingest(dets, now)

	p.mu.Lock()
	tracking := p.tracking
	p.mu.Unlock()

	if tracking {
		recent := p.buf.Latest(p.cfg.RetentionWindow, now)
		if len(recent) > 0 {
			p.track(recent, frameW, frameH, now)
		} else {
			p.searcher.OnTargetLost(now)
			p.searcher.Advance(now)
		}
	}

	p.seq.Tick(now)
}

// track runs the tracking half of the tick: one target, one decision.
func (p *Pilot) track(recent []detect.Detection, frameW, frameH float64, now time.Time) {
	p.searcher.OnTargetSighted(now)

	target, ok := detect.Select(recent, p.cfg.PreferLargest)
	if !ok {
		return
	}

	cx, cy := target.Center()
	cmd := p.cfg.Policy.Decide(cx, cy, target.Area(), frameW, frameH)

	p.mu.Lock()
	p.lastDecision = cmd
	p.mu.Unlock()

	if cmd.IsTurn() {
		p.seq.Begin(cmd, turn.SourceTracking, now)
		return
	}
	p.disp.Dispatch(cmd, dispatch.Auto, false, now)
}

// TimerTick advances the time-based components. Runs from the timer loop
// so search phases and stop pulses never freeze when frames stall.
func (p *Pilot) TimerTick(now time.Time) {
	p.searcher.Advance(now)
	p.seq.Tick(now)
}

// ManualDrive routes an operator command through the manual dispatch
// context. An active search sweep is cancelled first: the operator wins.
func (p *Pilot) ManualDrive(cmd command.Command, now time.Time) bool {
	if !cmd.Valid() {
		return false
	}

	if p.searcher.Searching() {
		p.searcher.OnTargetSighted(now)
	}

	if cmd.IsTurn() {
		p.seq.Begin(cmd, turn.SourceManual, now)
		return true
	}
	return p.disp.Dispatch(cmd, dispatch.Manual, false, now)
}

// SetTracking enables or disables autonomous tracking. Disabling cancels
// any sweep or turn in flight and forces a Stop.
func (p *Pilot) SetTracking(enabled bool, now time.Time) {
	p.mu.Lock()
	was := p.tracking
	p.tracking = enabled
	p.mu.Unlock()

	if was && !enabled {
		p.searcher.OnTargetSighted(now)
		p.seq.Cancel(now)
		p.disp.Dispatch(command.Stop, dispatch.Auto, true, now)
		log.Info("tracking disabled")
	} else if !was && enabled {
		log.Info("tracking enabled")
	}
}

// Tracking reports whether autonomous tracking is enabled.
func (p *Pilot) Tracking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tracking
}

// Status returns a snapshot for the dashboard and telemetry uplink.
func (p *Pilot) Status() Status {
	stats := p.disp.Stats()
	done, target := p.searcher.MicroTurnProgress()
	stopsSent, totalStops := p.seq.Progress()

	p.mu.Lock()
	tracking := p.tracking
	p.mu.Unlock()

	lastCommand := ""
	if stats.LastCommand != "" {
		lastCommand = stats.LastCommand.Name()
	}

	return Status{
		Tracking:        tracking,
		CommandsSent:    stats.CommandsSent,
		TransportErrors: stats.TransportErrors,
		LastCommand:     lastCommand,
		LastCommandAt:   stats.LastCommandAt,
		SearchPhase:     p.searcher.Phase().String(),
		SearchCycle:     p.searcher.CycleIndex(),
		MicroTurnsDone:  done,
		MicroTurnTarget: target,
		TurnActive:      p.seq.Active(),
		StopsSent:       stopsSent,
		TotalStops:      totalStops,
		FramesSeen:      p.frames.Load(),
	}
}
