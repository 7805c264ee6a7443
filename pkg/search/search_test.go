package search

import (
	"testing"
	"time"

	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/dispatch"
	"github.com/sightline/go-rover/pkg/turn"
)

// recordingSink captures dispatched commands
type recordingSink struct {
	cmds []command.Command
}

func (r *recordingSink) Dispatch(cmd command.Command, dctx dispatch.Context, force bool, now time.Time) bool {
	r.cmds = append(r.cmds, cmd)
	return true
}

func (r *recordingSink) count(cmd command.Command) int {
	n := 0
	for _, c := range r.cmds {
		if c == cmd {
			n++
		}
	}
	return n
}

// fastConfig keeps simulated sweeps short while exercising every phase
func fastConfig() Config {
	return Config{
		ScanHold:         50 * time.Millisecond,
		PreTurnHold:      10 * time.Millisecond,
		MicroTurnHold:    20 * time.Millisecond,
		LongPauseHold:    30 * time.Millisecond,
		CycleRestHold:    30 * time.Millisecond,
		TargetMicroTurns: 3,
		GlobalTimeout:    time.Hour,
		Direction:        command.Right,
	}
}

func fastTurnConfig() turn.Config {
	return turn.Config{
		SearchBaseHold:   20 * time.Millisecond,
		TrackingBaseHold: 20 * time.Millisecond,
		StopSpacing:      10 * time.Millisecond,
		TotalStops:       3,
	}
}

func newTestController(cfg Config) (*Controller, *turn.Sequencer, *recordingSink) {
	sink := &recordingSink{}
	seq := turn.NewSequencer(fastTurnConfig(), sink)
	return NewController(cfg, seq, sink), seq, sink
}

// drive simulates the cooperative tick loop in 5ms steps
func drive(c *Controller, seq *turn.Sequencer, from time.Time, d time.Duration) time.Time {
	now := from
	for elapsed := time.Duration(0); elapsed <= d; elapsed += 5 * time.Millisecond {
		now = from.Add(elapsed)
		c.Advance(now)
		seq.Tick(now)
	}
	return now
}

func TestIdleUntilTargetLost(t *testing.T) {
	c, seq, sink := newTestController(fastConfig())
	base := time.Now()

	drive(c, seq, base, 500*time.Millisecond)

	if c.Phase() != PhaseIdle {
		t.Errorf("Phase = %v, want idle before any target loss", c.Phase())
	}
	if len(sink.cmds) != 0 {
		t.Error("idle controller must not dispatch")
	}
}

func TestPhaseProgression(t *testing.T) {
	c, seq, _ := newTestController(fastConfig())
	base := time.Now()

	c.OnTargetLost(base)
	if c.Phase() != PhaseScan {
		t.Fatalf("Phase = %v, want scan after target loss", c.Phase())
	}

	// Scan hold expires into PreTurn
	c.Advance(base.Add(55 * time.Millisecond))
	if c.Phase() != PhasePreTurn {
		t.Fatalf("Phase = %v, want pre_turn", c.Phase())
	}

	// PreTurn expires into MicroTurn and begins the rotation pulse
	c.Advance(base.Add(70 * time.Millisecond))
	if c.Phase() != PhaseMicroTurn {
		t.Fatalf("Phase = %v, want micro_turn", c.Phase())
	}
	if !seq.Active() {
		t.Error("micro-turn should have started a turn sequence")
	}
}

func TestSweepLiveness(t *testing.T) {
	cfg := fastConfig()
	c, seq, sink := newTestController(cfg)
	base := time.Now()

	c.OnTargetLost(base)
	drive(c, seq, base, 2*time.Second)

	// With detections permanently empty the sweep must finish a cycle and
	// start the next one without intervention.
	if c.CycleIndex() < 1 {
		t.Errorf("CycleIndex = %d, want >= 1 after a full simulated sweep", c.CycleIndex())
	}
	if sink.count(cfg.Direction) < cfg.TargetMicroTurns {
		t.Errorf("dispatched %d turn pulses, want >= %d", sink.count(cfg.Direction), cfg.TargetMicroTurns)
	}
	if c.Phase() == PhaseIdle {
		t.Error("sweep should still be running under the global timeout")
	}
}

func TestMicroTurnCountResetsPerCycle(t *testing.T) {
	c, seq, _ := newTestController(fastConfig())
	base := time.Now()

	c.OnTargetLost(base)

	// Run until the first cycle rollover
	now := base
	deadline := base.Add(5 * time.Second)
	for c.CycleIndex() == 0 && now.Before(deadline) {
		now = now.Add(5 * time.Millisecond)
		c.Advance(now)
		seq.Tick(now)
	}

	if c.CycleIndex() != 1 {
		t.Fatalf("CycleIndex = %d, want 1", c.CycleIndex())
	}
	done, target := c.MicroTurnProgress()
	if target != 3 {
		t.Errorf("micro-turn target = %d, want 3", target)
	}
	if done >= target {
		t.Errorf("micro-turn count = %d, should reset on cycle rollover", done)
	}
}

func TestAlternateDirection(t *testing.T) {
	cfg := fastConfig()
	cfg.AlternateDirection = true
	c, seq, _ := newTestController(cfg)
	base := time.Now()

	c.OnTargetLost(base)
	if c.Direction() != command.Right {
		t.Fatalf("first cycle direction = %v, want Right", c.Direction())
	}

	now := base
	deadline := base.Add(5 * time.Second)
	for c.CycleIndex() == 0 && now.Before(deadline) {
		now = now.Add(5 * time.Millisecond)
		c.Advance(now)
		seq.Tick(now)
	}

	if c.Direction() != command.Left {
		t.Errorf("second cycle direction = %v, want Left", c.Direction())
	}
}

func TestTargetSightedCancelsSweep(t *testing.T) {
	c, seq, sink := newTestController(fastConfig())
	base := time.Now()

	c.OnTargetLost(base)
	// Get into the middle of a micro-turn
	now := drive(c, seq, base, 70*time.Millisecond)

	c.OnTargetSighted(now)

	if c.Phase() != PhaseIdle {
		t.Errorf("Phase = %v, want idle after sighting", c.Phase())
	}
	if seq.Active() {
		t.Error("sighting must cancel the active turn sequence")
	}
	if sink.count(command.Stop) == 0 {
		t.Error("sighting must force a Stop")
	}
}

func TestGlobalTimeoutForcesIdleFromAnyPhase(t *testing.T) {
	cfg := fastConfig()
	cfg.GlobalTimeout = 200 * time.Millisecond
	c, seq, sink := newTestController(cfg)
	base := time.Now()

	c.OnTargetLost(base)
	drive(c, seq, base, time.Second)

	if c.Phase() != PhaseIdle {
		t.Errorf("Phase = %v, want idle after global timeout", c.Phase())
	}
	if sink.count(command.Stop) == 0 {
		t.Error("timeout must force a Stop")
	}

	// The latch keeps a permanently absent target from restarting the sweep
	c.OnTargetLost(base.Add(2 * time.Second))
	if c.Phase() != PhaseIdle {
		t.Error("sweep must stay idle after timeout until a sighting")
	}

	// A sighting clears the latch; the next loss searches again
	c.OnTargetSighted(base.Add(3 * time.Second))
	c.OnTargetLost(base.Add(4 * time.Second))
	if c.Phase() != PhaseScan {
		t.Errorf("Phase = %v, want scan after latch cleared", c.Phase())
	}
}

func TestNegativeElapsedClamps(t *testing.T) {
	c, seq, _ := newTestController(fastConfig())
	base := time.Now()

	c.OnTargetLost(base)
	// Clock goes backwards: phase must hold, not panic or skip
	c.Advance(base.Add(-time.Minute))
	_ = seq

	if c.Phase() != PhaseScan {
		t.Errorf("Phase = %v, want scan to hold on backwards clock", c.Phase())
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.TargetMicroTurns != 36 {
		t.Errorf("TargetMicroTurns = %d, want 36", cfg.TargetMicroTurns)
	}
	if cfg.GlobalTimeout != 240*time.Second {
		t.Errorf("GlobalTimeout = %v, want 240s", cfg.GlobalTimeout)
	}
	if cfg.ScanHold != 500*time.Millisecond {
		t.Errorf("ScanHold = %v, want 500ms", cfg.ScanHold)
	}
}
