// Package dispatch rate-limits drive commands and forwards them to the
// actuator over the unreliable network link.
//
// The dispatcher is the last gate before the wire: invalid commands are
// rejected here, per-context minimum intervals are enforced here, and
// transport failures are absorbed here. Nothing downstream retries; the
// control loop re-evaluates every tick and re-issues if the condition
// persists.
package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sightline/go-rover/internal/log"
	"github.com/sightline/go-rover/pkg/command"
)

// Context identifies which control path is dispatching, selecting the
// minimum interval between non-forced commands.
type Context int

const (
	// Auto is the tracking loop's steady-state cadence.
	Auto Context = iota
	// Search is the stop-spam cadence used by sequenced search pulses.
	Search
	// Manual is operator-issued commands.
	Manual
)

// String returns the context name for logs and dashboards.
func (c Context) String() string {
	switch c {
	case Auto:
		return "auto"
	case Search:
		return "search"
	case Manual:
		return "manual"
	}
	return "unknown"
}

// Intervals is the authoritative per-context minimum interval table.
type Intervals struct {
	Auto   time.Duration `mapstructure:"auto"`
	Search time.Duration `mapstructure:"search"`
	Manual time.Duration `mapstructure:"manual"`
}

// DefaultIntervals returns the production interval table.
func DefaultIntervals() Intervals {
	return Intervals{
		Auto:   500 * time.Millisecond,
		Search: 20 * time.Millisecond,
		Manual: 80 * time.Millisecond,
	}
}

func (i Intervals) forContext(c Context) time.Duration {
	switch c {
	case Search:
		return i.Search
	case Manual:
		return i.Manual
	}
	return i.Auto
}

// Actuator is the outbound boundary: one network round trip per command.
// A non-accepted response is treated the same as a transport error.
type Actuator interface {
	Drive(cmd command.Command) (accepted bool, transportStatus string, err error)
}

// Stats is a snapshot of dispatcher bookkeeping for observability.
type Stats struct {
	CommandsSent    uint64          `json:"commands_sent"`
	TransportErrors uint64          `json:"transport_errors"`
	RateLimited     uint64          `json:"rate_limited"`
	Rejected        uint64          `json:"rejected"`
	Dropped         uint64          `json:"dropped"`
	LastCommand     command.Command `json:"last_command"`
	LastCommandAt   time.Time       `json:"last_command_at"`
}

// queueCapacity bounds commands waiting on the actuator worker. The control
// loop decides a handful of commands per second at most; a small queue
// preserves ordering without letting a dead link accumulate stale commands.
const queueCapacity = 8

// Dispatcher forwards commands to the actuator with rate limiting.
//
// With Start running, actuator calls happen on a dedicated worker goroutine
// so a slow link never blocks the frame path. Without Start (tests, one-shot
// CLI use) sends are inline and synchronous.
type Dispatcher struct {
	act       Actuator
	intervals Intervals

	mu       sync.Mutex
	lastTime time.Time
	lastCmd  command.Command
	queue    chan command.Command

	sent            atomic.Uint64
	transportErrors atomic.Uint64
	rateLimited     atomic.Uint64
	rejected        atomic.Uint64
	dropped         atomic.Uint64

	errMu       sync.Mutex
	lastErrorAt time.Time
}

// New creates a dispatcher sending through act.
func New(act Actuator, intervals Intervals) *Dispatcher {
	return &Dispatcher{
		act:       act,
		intervals: intervals,
	}
}

// Start launches the actuator worker. It returns immediately; the worker
// runs until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.queue != nil {
		d.mu.Unlock()
		return
	}
	queue := make(chan command.Command, queueCapacity)
	d.queue = queue
	d.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case cmd := <-queue:
				d.send(cmd)
			}
		}
	}()
}

// Dispatch forwards cmd if the context's minimum interval has elapsed since
// the last command. force bypasses rate limiting (safety Stops, sequenced
// pulses). It reports whether the command passed the gate.
func (d *Dispatcher) Dispatch(cmd command.Command, dctx Context, force bool, now time.Time) bool {
	if !cmd.Valid() {
		d.rejected.Add(1)
		log.Warn("rejected invalid drive command", "command", string(cmd), "context", dctx.String())
		return false
	}

	d.mu.Lock()
	if !force && !d.lastTime.IsZero() {
		if elapsed := now.Sub(d.lastTime); elapsed >= 0 && elapsed < d.intervals.forContext(dctx) {
			d.mu.Unlock()
			d.rateLimited.Add(1)
			return false
		}
	}
	d.lastTime = now
	d.lastCmd = cmd
	queue := d.queue
	d.mu.Unlock()

	if queue == nil {
		d.send(cmd)
		return true
	}

	for {
		select {
		case queue <- cmd:
			return true
		default:
		}

		// Worker is stuck behind a dead link. Shed the oldest pending
		// command: the newest one reflects the current decision (often a
		// safety Stop) and must not lose to stale pulses.
		select {
		case <-queue:
			d.dropped.Add(1)
		default:
		}
	}
}

// send performs one actuator round trip. Failures are logged (throttled)
// and counted, never propagated.
func (d *Dispatcher) send(cmd command.Command) {
	d.sent.Add(1)

	accepted, status, err := d.act.Drive(cmd)
	if err == nil && accepted {
		return
	}

	d.transportErrors.Add(1)

	d.errMu.Lock()
	throttled := !d.lastErrorAt.IsZero() && time.Since(d.lastErrorAt) < 5*time.Second
	if !throttled {
		d.lastErrorAt = time.Now()
	}
	d.errMu.Unlock()

	if !throttled {
		log.Warn("actuator transport error",
			"command", cmd.Name(),
			"status", status,
			"error", err,
			"total_errors", d.transportErrors.Load())
	}
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	lastCmd := d.lastCmd
	lastTime := d.lastTime
	d.mu.Unlock()

	return Stats{
		CommandsSent:    d.sent.Load(),
		TransportErrors: d.transportErrors.Load(),
		RateLimited:     d.rateLimited.Load(),
		Rejected:        d.rejected.Load(),
		Dropped:         d.dropped.Load(),
		LastCommand:     lastCmd,
		LastCommandAt:   lastTime,
	}
}
