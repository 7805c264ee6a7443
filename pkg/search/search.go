// Package search produces rotation commands when no target is visible.
//
// The controller is a poll-driven state machine: one Advance call per tick,
// transitions firing purely on elapsed wall-clock time since the last phase
// change. It sweeps a full rotation as a series of micro-turns with pauses
// between them so the detector gets motion-blur-free windows, and it gives
// up after a global timeout so a missing target cannot drain the battery.
package search

import (
	"sync"
	"time"

	"github.com/sightline/go-rover/internal/log"
	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/dispatch"
	"github.com/sightline/go-rover/pkg/turn"
)

// Phase is one state of the search sweep. Each phase carries its own hold
// duration in Config; the controller matches phases exhaustively every tick.
type Phase int

const (
	// PhaseIdle: not searching; a target is visible or the sweep timed out.
	PhaseIdle Phase = iota
	// PhaseScan: passive wait, giving the detector a still frame.
	PhaseScan
	// PhasePreTurn: brief settle before issuing a turn.
	PhasePreTurn
	// PhaseMicroTurn: one rotation increment, delegated to the sequencer.
	PhaseMicroTurn
	// PhaseStopSettle: waiting for the turn sequence's stop pulses to land.
	PhaseStopSettle
	// PhaseLongPause: inter-turn pause, another detector window.
	PhaseLongPause
	// PhaseCycleRest: rest between full sweep cycles.
	PhaseCycleRest
)

// String returns the phase name for logs and dashboards.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScan:
		return "scan"
	case PhasePreTurn:
		return "pre_turn"
	case PhaseMicroTurn:
		return "micro_turn"
	case PhaseStopSettle:
		return "stop_settle"
	case PhaseLongPause:
		return "long_pause"
	case PhaseCycleRest:
		return "cycle_rest"
	}
	return "unknown"
}

// Config holds every phase duration and sweep parameter. The legacy slow
// sweep is reproducible by configuration alone; there is no second code
// path.
type Config struct {
	ScanHold      time.Duration `mapstructure:"scan_hold"`
	PreTurnHold   time.Duration `mapstructure:"pre_turn_hold"`
	MicroTurnHold time.Duration `mapstructure:"micro_turn_hold"`
	LongPauseHold time.Duration `mapstructure:"long_pause_hold"`
	CycleRestHold time.Duration `mapstructure:"cycle_rest_hold"`

	// TargetMicroTurns is how many micro-turns make one full sweep cycle.
	TargetMicroTurns int `mapstructure:"target_micro_turns"`

	// GlobalTimeout bounds a whole search; past it the controller forces a
	// Stop and goes idle until a target is seen and lost again.
	GlobalTimeout time.Duration `mapstructure:"global_timeout"`

	// Direction is the sweep rotation direction.
	Direction command.Command `mapstructure:"direction"`

	// AlternateDirection flips the sweep direction every cycle.
	AlternateDirection bool `mapstructure:"alternate_direction"`
}

// DefaultConfig returns the production fast sweep.
func DefaultConfig() Config {
	return Config{
		ScanHold:           500 * time.Millisecond,
		PreTurnHold:        50 * time.Millisecond,
		MicroTurnHold:      120 * time.Millisecond,
		LongPauseHold:      250 * time.Millisecond,
		CycleRestHold:      250 * time.Millisecond,
		TargetMicroTurns:   36,
		GlobalTimeout:      240 * time.Second,
		Direction:          command.Right,
		AlternateDirection: false,
	}
}

// LegacyConfig returns the slow alternating sweep that shipped before the
// fast one. Kept as configuration, not code.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.ScanHold = 12 * time.Second
	cfg.LongPauseHold = 10 * time.Second
	cfg.PreTurnHold = 3 * time.Second
	cfg.CycleRestHold = 4 * time.Second
	cfg.TargetMicroTurns = 20
	cfg.AlternateDirection = true
	return cfg
}

// Sequencer is the slice of the turn sequencer the controller drives.
type Sequencer interface {
	Begin(dir command.Command, src turn.Source, now time.Time)
	Cancel(now time.Time)
	Active() bool
	Progress() (stopsSent, totalStops int)
}

// Controller runs the search sweep. All mutation happens through Advance,
// OnTargetLost and OnTargetSighted; a single mutex guards state shared
// between the frame loop and the timer.
type Controller struct {
	cfg  Config
	seq  Sequencer
	sink turn.Sink

	mu          sync.Mutex
	phase       Phase
	phaseStart  time.Time
	searchStart time.Time
	cycleIndex  int
	microTurns  int
	direction   command.Command
	exhausted   bool // set on global timeout, cleared on sighting
}

// NewController creates a search controller driving seq, with safety Stops
// going through sink.
func NewController(cfg Config, seq Sequencer, sink turn.Sink) *Controller {
	if cfg.TargetMicroTurns <= 0 {
		cfg.TargetMicroTurns = DefaultConfig().TargetMicroTurns
	}
	if !cfg.Direction.IsTurn() {
		cfg.Direction = command.Right
	}
	return &Controller{
		cfg:       cfg,
		seq:       seq,
		sink:      sink,
		phase:     PhaseIdle,
		direction: cfg.Direction,
	}
}

// OnTargetLost starts a sweep if one is not already running. After a global
// timeout the controller stays idle until a sighting clears the latch, so a
// permanently absent target cannot restart the sweep forever.
func (c *Controller) OnTargetLost(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseIdle || c.exhausted {
		return
	}

	c.searchStart = now
	c.cycleIndex = 0
	c.microTurns = 0
	c.direction = c.cfg.Direction
	c.setPhase(PhaseScan, now)
	log.Info("target lost, starting search sweep")
}

// OnTargetSighted cancels the sweep: the active turn sequence is discarded,
// a Stop is forced, and the controller resets to idle.
func (c *Controller) OnTargetSighted(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.exhausted = false
	if c.phase == PhaseIdle {
		return
	}

	wasActive := c.seq.Active()
	c.seq.Cancel(now)
	if !wasActive {
		c.sink.Dispatch(command.Stop, dispatch.Search, true, now)
	}
	c.setPhase(PhaseIdle, now)
	log.Info("target reacquired, search sweep cancelled",
		"cycles", c.cycleIndex, "micro_turns", c.microTurns)
}

// Advance runs one poll of the state machine. Safe to call from both the
// frame loop and the timer tick.
func (c *Controller) Advance(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseIdle {
		return
	}

	if total := now.Sub(c.searchStart); total > c.cfg.GlobalTimeout {
		wasActive := c.seq.Active()
		c.seq.Cancel(now)
		if !wasActive {
			c.sink.Dispatch(command.Stop, dispatch.Search, true, now)
		}
		c.setPhase(PhaseIdle, now)
		c.exhausted = true
		log.Warn("search sweep hit global timeout",
			"timeout", c.cfg.GlobalTimeout, "cycles", c.cycleIndex)
		return
	}

	// Clock anomalies clamp to zero elapsed rather than propagate.
	elapsed := now.Sub(c.phaseStart)
	if elapsed < 0 {
		elapsed = 0
	}

	switch c.phase {
	case PhaseScan:
		if elapsed >= c.cfg.ScanHold {
			c.setPhase(PhasePreTurn, now)
		}

	case PhasePreTurn:
		if elapsed >= c.cfg.PreTurnHold {
			c.seq.Begin(c.direction, turn.SourceSearch, now)
			c.setPhase(PhaseMicroTurn, now)
		}

	case PhaseMicroTurn:
		if elapsed >= c.cfg.MicroTurnHold {
			c.microTurns++
			c.setPhase(PhaseStopSettle, now)
		}

	case PhaseStopSettle:
		sent, total := c.seq.Progress()
		if sent >= total || !c.seq.Active() {
			c.setPhase(PhaseLongPause, now)
		}

	case PhaseLongPause:
		if elapsed >= c.cfg.LongPauseHold {
			if c.microTurns >= c.cfg.TargetMicroTurns {
				c.setPhase(PhaseCycleRest, now)
			} else {
				c.setPhase(PhaseScan, now)
			}
		}

	case PhaseCycleRest:
		if elapsed >= c.cfg.CycleRestHold {
			c.cycleIndex++
			c.microTurns = 0
			if c.cfg.AlternateDirection {
				c.direction = c.direction.Opposite()
			}
			c.setPhase(PhaseScan, now)
			log.Info("search sweep starting new cycle",
				"cycle", c.cycleIndex, "direction", c.direction.Name())
		}
	}
}

func (c *Controller) setPhase(p Phase, now time.Time) {
	c.phase = p
	c.phaseStart = now
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Searching reports whether a sweep is running.
func (c *Controller) Searching() bool {
	return c.Phase() != PhaseIdle
}

// CycleIndex returns how many full sweep cycles have completed.
func (c *Controller) CycleIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycleIndex
}

// MicroTurnProgress returns micro-turns done this cycle and the per-cycle
// target.
func (c *Controller) MicroTurnProgress() (done, target int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.microTurns, c.cfg.TargetMicroTurns
}

// Direction returns the current sweep direction.
func (c *Controller) Direction() command.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}
