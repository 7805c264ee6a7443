package policy

import (
	"testing"

	"github.com/sightline/go-rover/pkg/command"
)

// All cases use a 640x480 frame: frame area 307200, minArea 9216,
// idealArea 67584, maxArea 116736, dead zone 115.2px.
const (
	frameW = 640.0
	frameH = 480.0
)

func TestDecide(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name    string
		centerX float64
		area    float64
		want    command.Command
	}{
		{"far target approaches", 320, 5000, command.Forward},
		{"too-close target stops", 320, 130000, command.Stop},
		{"right offset turns right", 500, 70000, command.Right},
		{"left offset turns left", 150, 70000, command.Left},
		{"under ideal keeps approaching", 320, 50000, command.Forward},
		{"between ideal and max holds", 320, 90000, command.Stop},
		{"far target turns only after closing", 500, 5000, command.Forward},
		{"offset inside dead zone holds course", 400, 50000, command.Forward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.Decide(tt.centerX, 240, tt.area, frameW, frameH)
			if got != tt.want {
				t.Errorf("Decide(cx=%v, area=%v) = %v, want %v", tt.centerX, tt.area, got, tt.want)
			}
		})
	}
}

func TestDecideIsPure(t *testing.T) {
	cfg := DefaultConfig()

	first := cfg.Decide(500, 240, 70000, frameW, frameH)
	for i := 0; i < 10; i++ {
		if got := cfg.Decide(500, 240, 70000, frameW, frameH); got != first {
			t.Fatalf("Decide is not deterministic: %v then %v", first, got)
		}
	}
}

func TestDecideDeadZoneBoundary(t *testing.T) {
	cfg := DefaultConfig()

	// 115.2px dead zone: centerX 435 is 115px off center, just inside
	if got := cfg.Decide(435, 240, 70000, frameW, frameH); got != command.Stop {
		t.Errorf("just inside dead zone: got %v, want Stop", got)
	}

	// 120px off center clears both the dead zone and the offset ratio
	if got := cfg.Decide(440, 240, 70000, frameW, frameH); got != command.Right {
		t.Errorf("just outside dead zone: got %v, want Right", got)
	}
}
