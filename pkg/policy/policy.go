// Package policy maps a target's position and apparent size to a drive
// command. Decide is a pure function of its inputs; all state lives with
// the caller.
package policy

import (
	"math"

	"github.com/sightline/go-rover/pkg/command"
)

// Config holds the decision thresholds as fractions of the frame, so the
// same tuning works across camera resolutions.
type Config struct {
	// LateralDeadZoneFraction is the half-width of the no-correction band
	// around frame center, as a fraction of frame width.
	LateralDeadZoneFraction float64 `mapstructure:"lateral_dead_zone"`

	// LateralOffsetRatio is the minimum |offset| / (frameW/2) before a
	// turn is issued. Second gate on top of the dead zone; keeps small
	// boxes near the band edge from causing turn chatter.
	LateralOffsetRatio float64 `mapstructure:"lateral_offset_ratio"`

	// Area thresholds as fractions of frame area.
	MinAreaFraction   float64 `mapstructure:"min_area"`   // Below this the target is far: approach
	IdealAreaFraction float64 `mapstructure:"ideal_area"` // Comfortable following distance
	MaxAreaFraction   float64 `mapstructure:"max_area"`   // Above this the target is too close: stop
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		LateralDeadZoneFraction: 0.18,
		LateralOffsetRatio:      0.18,
		MinAreaFraction:         0.03,
		IdealAreaFraction:       0.22,
		MaxAreaFraction:         0.38,
	}
}

// Decide returns the drive command for a target at (centerX, centerY) with
// the given box area, in a frameW x frameH frame.
//
// Priority order is safety > centering > approach > hold:
//  1. Target below the minimum size reads as far away: Forward.
//  2. Target above the maximum size is too close: Stop.
//  3. Target outside the lateral dead zone: turn toward it.
//  4. Target smaller than ideal: keep approaching.
//  5. Otherwise hold position.
func (c Config) Decide(centerX, centerY, area, frameW, frameH float64) command.Command {
	frameArea := frameW * frameH

	minArea := c.MinAreaFraction * frameArea
	idealArea := c.IdealAreaFraction * frameArea
	maxArea := c.MaxAreaFraction * frameArea
	deadZone := c.LateralDeadZoneFraction * frameW

	if area < minArea {
		return command.Forward
	}
	if area > maxArea {
		return command.Stop
	}

	offsetX := centerX - frameW/2
	if math.Abs(offsetX) > deadZone && math.Abs(offsetX)/(frameW/2) > c.LateralOffsetRatio {
		if offsetX > 0 {
			return command.Right
		}
		return command.Left
	}

	if area < idealArea {
		return command.Forward
	}
	return command.Stop
}
