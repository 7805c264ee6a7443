package detect

import (
	"testing"
	"time"
)

func box(x1, y1, x2, y2 float64) Detection {
	return Detection{X1: x1, Y1: y1, X2: x2, Y2: y2, Confidence: 0.9}
}

func TestDetectionGeometry(t *testing.T) {
	d := box(100, 50, 300, 250)

	if d.Width() != 200 {
		t.Errorf("Width = %v, want 200", d.Width())
	}
	if d.Height() != 200 {
		t.Errorf("Height = %v, want 200", d.Height())
	}
	if d.Area() != 40000 {
		t.Errorf("Area = %v, want 40000", d.Area())
	}

	cx, cy := d.Center()
	if cx != 200 || cy != 150 {
		t.Errorf("Center = (%v, %v), want (200, 150)", cx, cy)
	}
}

func TestBufferRetentionWindow(t *testing.T) {
	buf := NewBuffer(4)
	base := time.Now()

	buf.Ingest([]Detection{box(0, 0, 10, 10)}, base)

	// Within the 0.3s window the snapshot bridges empty frames
	got := buf.Latest(300*time.Millisecond, base.Add(200*time.Millisecond))
	if len(got) != 1 {
		t.Fatalf("Latest within window: got %d detections, want 1", len(got))
	}

	// Just past the window the buffer reports empty
	got = buf.Latest(300*time.Millisecond, base.Add(310*time.Millisecond))
	if got != nil {
		t.Errorf("Latest past window: got %d detections, want none", len(got))
	}
}

func TestBufferIgnoresEmptyFrames(t *testing.T) {
	buf := NewBuffer(4)
	base := time.Now()

	buf.Ingest([]Detection{box(0, 0, 10, 10)}, base)
	buf.Ingest(nil, base.Add(50*time.Millisecond))
	buf.Ingest([]Detection{}, base.Add(100*time.Millisecond))

	if buf.Len() != 1 {
		t.Errorf("Len = %d, want 1 (empty frames not stored)", buf.Len())
	}

	got := buf.Latest(300*time.Millisecond, base.Add(150*time.Millisecond))
	if len(got) != 1 {
		t.Errorf("empty ingests should not displace the last sighting")
	}
}

func TestBufferCapacityEviction(t *testing.T) {
	buf := NewBuffer(4)
	base := time.Now()

	for i := 0; i < 6; i++ {
		buf.Ingest([]Detection{box(float64(i), 0, float64(i)+10, 10)}, base.Add(time.Duration(i)*time.Millisecond))
	}

	if buf.Len() != 4 {
		t.Errorf("Len = %d, want 4", buf.Len())
	}

	// Newest snapshot wins
	got := buf.Latest(time.Second, base.Add(10*time.Millisecond))
	if len(got) != 1 || got[0].X1 != 5 {
		t.Errorf("Latest should return the newest snapshot, got %+v", got)
	}
}

func TestSelectFirst(t *testing.T) {
	dets := []Detection{box(0, 0, 10, 10), box(0, 0, 100, 100)}

	got, ok := Select(dets, false)
	if !ok {
		t.Fatal("Select returned no detection")
	}
	if got.X2 != 10 {
		t.Errorf("without preferLargest the first detection wins, got %+v", got)
	}
}

func TestSelectLargest(t *testing.T) {
	dets := []Detection{box(0, 0, 10, 10), box(0, 0, 100, 100), box(0, 0, 50, 50)}

	got, ok := Select(dets, true)
	if !ok {
		t.Fatal("Select returned no detection")
	}
	if got.X2 != 100 {
		t.Errorf("preferLargest should pick the 100x100 box, got %+v", got)
	}
}

func TestSelectTieBreakLeftToRight(t *testing.T) {
	// Equal areas: the earlier (left-to-right upstream order) entry wins
	dets := []Detection{box(0, 0, 10, 10), box(500, 0, 510, 10)}

	got, _ := Select(dets, true)
	if got.X1 != 0 {
		t.Errorf("tie-break should keep the first equal-area detection, got %+v", got)
	}
}

func TestSelectEmpty(t *testing.T) {
	if _, ok := Select(nil, true); ok {
		t.Error("Select(nil) should report no detection")
	}
}

func TestFilterConfidence(t *testing.T) {
	dets := []Detection{
		{Confidence: 0.9},
		{Confidence: 0.3},
		{Confidence: 0.6},
	}

	got := FilterConfidence(dets, 0.5)
	if len(got) != 2 {
		t.Fatalf("got %d detections, want 2", len(got))
	}
	if got[0].Confidence != 0.9 || got[1].Confidence != 0.6 {
		t.Errorf("filter should preserve order, got %+v", got)
	}
}
