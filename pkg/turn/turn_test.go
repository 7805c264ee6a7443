package turn

import (
	"testing"
	"time"

	"github.com/sightline/go-rover/pkg/command"
	"github.com/sightline/go-rover/pkg/dispatch"
)

// recordingSink captures dispatched pulses with their timestamps
type recordingSink struct {
	cmds  []command.Command
	times []time.Time
}

func (r *recordingSink) Dispatch(cmd command.Command, dctx dispatch.Context, force bool, now time.Time) bool {
	r.cmds = append(r.cmds, cmd)
	r.times = append(r.times, now)
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

// run advances the sequencer in 10ms ticks for the given duration
func run(s *Sequencer, from time.Time, d time.Duration) time.Time {
	now := from
	for elapsed := time.Duration(0); elapsed <= d; elapsed += 10 * time.Millisecond {
		now = from.Add(elapsed)
		s.Tick(now)
	}
	return now
}

func TestSequenceShape(t *testing.T) {
	sink := &recordingSink{}
	s := NewSequencer(DefaultConfig(), sink)
	base := time.Now()

	s.Begin(command.Right, SourceSearch, base)

	if !s.Active() {
		t.Fatal("sequence should be active after Begin")
	}
	if len(sink.cmds) != 1 || sink.cmds[0] != command.Right {
		t.Fatalf("Begin should dispatch the turn immediately, got %v", sink.cmds)
	}

	run(s, base, 800*time.Millisecond)

	// One turn then exactly TotalStops stops
	if sink.count(command.Right) != 1 {
		t.Errorf("turn dispatched %d times, want 1", sink.count(command.Right))
	}
	if sink.count(command.Stop) != 3 {
		t.Errorf("stops dispatched %d times, want 3", sink.count(command.Stop))
	}
	if s.Active() {
		t.Error("sequence should be exhausted")
	}

	sent, total := s.Progress()
	if sent != 3 || total != 3 {
		t.Errorf("Progress = (%d, %d), want (3, 3)", sent, total)
	}
}

func TestStopPulseSpacing(t *testing.T) {
	cfg := DefaultConfig()
	sink := &recordingSink{}
	s := NewSequencer(cfg, sink)
	base := time.Now()

	s.Begin(command.Right, SourceSearch, base)
	run(s, base, time.Second)

	var stopTimes []time.Time
	for i, c := range sink.cmds {
		if c == command.Stop {
			stopTimes = append(stopTimes, sink.times[i])
		}
	}
	if len(stopTimes) != 3 {
		t.Fatalf("got %d stops, want 3", len(stopTimes))
	}
	for i := 1; i < len(stopTimes); i++ {
		gap := stopTimes[i].Sub(stopTimes[i-1])
		if gap < cfg.StopSpacing-10*time.Millisecond {
			t.Errorf("stop %d fired %v after stop %d, want >= ~%v", i, gap, i-1, cfg.StopSpacing)
		}
	}
}

func TestBeginSameDirectionIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	s := NewSequencer(DefaultConfig(), sink)
	base := time.Now()

	s.Begin(command.Right, SourceSearch, base)
	s.Begin(command.Right, SourceSearch, base.Add(50*time.Millisecond))
	run(s, base, time.Second)

	if sink.count(command.Right) != 1 {
		t.Errorf("turn dispatched %d times, want 1 (second Begin is a no-op)", sink.count(command.Right))
	}
	if sink.count(command.Stop) != 3 {
		t.Errorf("stops dispatched %d times, want exactly 3", sink.count(command.Stop))
	}
}

func TestBeginOppositeDirectionOverrides(t *testing.T) {
	sink := &recordingSink{}
	s := NewSequencer(DefaultConfig(), sink)
	base := time.Now()

	s.Begin(command.Right, SourceTracking, base)
	s.Begin(command.Left, SourceTracking, base.Add(50*time.Millisecond))

	// A forced Stop must land before any Left pulse
	var sawStop bool
	for _, c := range sink.cmds {
		if c == command.Stop {
			sawStop = true
		}
		if c == command.Left {
			if !sawStop {
				t.Fatal("Left dispatched before the override Stop")
			}
			break
		}
	}

	if s.Direction() != command.Left {
		t.Errorf("Direction = %v, want Left", s.Direction())
	}
}

func TestBeginIgnoresNonTurn(t *testing.T) {
	sink := &recordingSink{}
	s := NewSequencer(DefaultConfig(), sink)

	s.Begin(command.Forward, SourceTracking, time.Now())

	if s.Active() {
		t.Error("Forward should not start a turn sequence")
	}
	if len(sink.cmds) != 0 {
		t.Error("Forward Begin should dispatch nothing")
	}
}

func TestCancelForcesStop(t *testing.T) {
	sink := &recordingSink{}
	s := NewSequencer(DefaultConfig(), sink)
	base := time.Now()

	s.Begin(command.Right, SourceSearch, base)
	s.Cancel(base.Add(20 * time.Millisecond))

	if s.Active() {
		t.Error("Cancel should deactivate the sequence")
	}
	if sink.cmds[len(sink.cmds)-1] != command.Stop {
		t.Error("Cancel should dispatch a Stop")
	}

	// Further ticks must not emit the discarded pulses
	before := len(sink.cmds)
	run(s, base.Add(20*time.Millisecond), time.Second)
	if len(sink.cmds) != before {
		t.Error("cancelled sequence must not keep dispatching")
	}
}

func TestClockGoingBackwardsIsClamped(t *testing.T) {
	sink := &recordingSink{}
	s := NewSequencer(DefaultConfig(), sink)
	base := time.Now()

	s.Begin(command.Right, SourceSearch, base)
	// Tick with an earlier timestamp: must not panic or fire stops early
	s.Tick(base.Add(-time.Hour))

	if sink.count(command.Stop) != 0 {
		t.Error("backwards clock must not fire stop pulses")
	}
	if !s.Active() {
		t.Error("sequence should still be active")
	}
}
