// Package turn expands a bare turn decision into a damped pulse sequence.
//
// The rover rotates until told otherwise, and the command link drops
// packets. A single Stop after a turn pulse is therefore not enough: the
// sequencer schedules the turn followed by staggered redundant Stop pulses
// so one dropped command cannot leave the rover spinning.
package turn

import (
	"sync"
	"time"

	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/dispatch"
)

// Source identifies who requested the turn, selecting the base hold time
// and the dispatch context for the pulses.
type Source int

const (
	// SourceSearch is the search sweep's micro-turns.
	SourceSearch Source = iota
	// SourceTracking is the tracking policy correcting toward the target.
	SourceTracking
	// SourceManual is operator-issued turns.
	SourceManual
)

func (s Source) context() dispatch.Context {
	switch s {
	case SourceSearch:
		return dispatch.Search
	case SourceManual:
		return dispatch.Manual
	}
	return dispatch.Auto
}

// Config holds the pulse-shape tuning.
type Config struct {
	// SearchBaseHold is how long a search micro-turn rotates before the
	// first Stop pulse.
	SearchBaseHold time.Duration `mapstructure:"search_base_hold"`

	// TrackingBaseHold is the rotation hold for tracking and manual turns.
	// Slightly longer than the search hold: a correction turn should
	// actually change heading, a micro-turn should barely nudge it.
	TrackingBaseHold time.Duration `mapstructure:"tracking_base_hold"`

	// StopSpacing separates the redundant Stop pulses.
	StopSpacing time.Duration `mapstructure:"stop_spacing"`

	// TotalStops is how many Stop pulses follow the turn.
	TotalStops int `mapstructure:"total_stops"`
}

// DefaultConfig returns the production pulse shape.
func DefaultConfig() Config {
	return Config{
		SearchBaseHold:   240 * time.Millisecond,
		TrackingBaseHold: 280 * time.Millisecond,
		StopSpacing:      120 * time.Millisecond,
		TotalStops:       3,
	}
}

func (c Config) baseHold(src Source) time.Duration {
	if src == SourceSearch {
		return c.SearchBaseHold
	}
	return c.TrackingBaseHold
}

// Sink is where sequenced pulses go. *dispatch.Dispatcher satisfies it.
type Sink interface {
	Dispatch(cmd command.Command, dctx dispatch.Context, force bool, now time.Time) bool
}

// step is one scheduled pulse, delay measured from sequence start.
type step struct {
	cmd   command.Command
	delay time.Duration
}

// Sequencer owns at most one active turn sequence.
//
// A same-direction Begin while a sequence is active is a no-op; an
// opposite-direction Begin forces a Stop, discards the current sequence
// and starts the new one. Tick dispatches any step whose delay has
// elapsed, in order.
type Sequencer struct {
	cfg  Config
	sink Sink

	mu        sync.Mutex
	active    bool
	direction command.Command
	source    Source
	started   time.Time
	steps     []step
	stepIdx   int
	stopsSent int
}

// NewSequencer creates a sequencer dispatching pulses through sink.
func NewSequencer(cfg Config, sink Sink) *Sequencer {
	if cfg.TotalStops <= 0 {
		cfg.TotalStops = DefaultConfig().TotalStops
	}
	return &Sequencer{cfg: cfg, sink: sink}
}

// Begin starts a turn sequence in the given direction. Non-turn commands
// are ignored. The first pulse (the turn itself) dispatches immediately.
func (s *Sequencer) Begin(dir command.Command, src Source, now time.Time) {
	if !dir.IsTurn() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		if dir == s.direction {
			// Same direction already in flight: idempotent.
			return
		}
		// Opposite direction supersedes: kill the current rotation first.
		s.sink.Dispatch(command.Stop, s.source.context(), true, now)
		s.clearLocked()
	}

	baseHold := s.cfg.baseHold(src)
	steps := make([]step, 0, 1+s.cfg.TotalStops)
	steps = append(steps, step{cmd: dir, delay: 0})
	for i := 0; i < s.cfg.TotalStops; i++ {
		steps = append(steps, step{
			cmd:   command.Stop,
			delay: baseHold + time.Duration(i)*s.cfg.StopSpacing,
		})
	}

	s.active = true
	s.direction = dir
	s.source = src
	s.started = now
	s.steps = steps
	s.stepIdx = 0
	s.stopsSent = 0

	s.tickLocked(now)
}

// Tick dispatches any step whose delay has elapsed, in order. Call it from
// the frame loop and the timer so pulses fire even when frames stall.
func (s *Sequencer) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickLocked(now)
}

func (s *Sequencer) tickLocked(now time.Time) {
	if !s.active {
		return
	}

	// Clock anomalies clamp to zero elapsed rather than propagate.
	elapsed := now.Sub(s.started)
	if elapsed < 0 {
		elapsed = 0
	}

	for s.stepIdx < len(s.steps) && s.steps[s.stepIdx].delay <= elapsed {
		st := s.steps[s.stepIdx]
		s.sink.Dispatch(st.cmd, s.source.context(), true, now)
		if st.cmd == command.Stop {
			s.stopsSent++
		}
		s.stepIdx++
	}

	if s.stepIdx >= len(s.steps) {
		s.active = false
	}
}

// Cancel discards the active sequence and forces a Stop. No-op when idle.
func (s *Sequencer) Cancel(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.sink.Dispatch(command.Stop, s.source.context(), true, now)
	s.clearLocked()
}

func (s *Sequencer) clearLocked() {
	s.active = false
	s.direction = ""
	s.steps = nil
	s.stepIdx = 0
	s.stopsSent = 0
}

// Active reports whether a sequence is in flight.
func (s *Sequencer) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Progress returns how many Stop pulses of the current (or just finished)
// sequence have been dispatched, and the total per sequence.
func (s *Sequencer) Progress() (stopsSent, totalStops int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopsSent, s.cfg.TotalStops
}

// Direction returns the active sequence direction, or "" when idle.
func (s *Sequencer) Direction() command.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ""
	}
	return s.direction
}
