// Package detect provides the detection types and retention buffer feeding
// the tracking pipeline.
//
// Detections arrive per frame from a Detector (the production one wraps a
// vision model, tests use fakes). The Buffer keeps a short history so a
// single dropped or empty frame does not read as a lost target.
package detect

import (
	"sync"
	"time"
)

// Detection is one observed object in a frame, in pixel space.
type Detection struct {
	X1, Y1     float64 // Top-left corner
	X2, Y2     float64 // Bottom-right corner
	Confidence float64 // 0-1
}

// Width returns the box width in pixels.
func (d Detection) Width() float64 {
	return d.X2 - d.X1
}

// Height returns the box height in pixels.
func (d Detection) Height() float64 {
	return d.Y2 - d.Y1
}

// Area returns the box area in square pixels.
func (d Detection) Area() float64 {
	return d.Width() * d.Height()
}

// Center returns the box center point.
func (d Detection) Center() (x, y float64) {
	return (d.X1 + d.X2) / 2, (d.Y1 + d.Y2) / 2
}

// Detector is the interface for detection backends.
// The core never constructs one; it is injected at the edge.
type Detector interface {
	// Detect finds targets in the JPEG image.
	Detect(jpeg []byte) ([]Detection, error)

	// Close releases resources.
	Close() error
}

// Snapshot is one frame's worth of detections with its arrival time.
type Snapshot struct {
	Time       time.Time
	Detections []Detection
}

// DefaultBufferCapacity is how many non-empty snapshots the Buffer retains.
const DefaultBufferCapacity = 4

// Buffer retains recent non-empty detection snapshots in a fixed-capacity
// ring so transient empty frames can be bridged. Retention is bounded both
// by the ring capacity and by the age limit passed to Latest.
type Buffer struct {
	mu    sync.Mutex
	snaps []Snapshot // ring storage
	next  int        // next write index
	count int        // filled slots, <= cap
}

// NewBuffer creates a buffer holding up to capacity snapshots.
// capacity <= 0 falls back to DefaultBufferCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{snaps: make([]Snapshot, capacity)}
}

// Ingest appends a snapshot. Empty frames are not stored; the ring only
// holds frames that actually saw something.
func (b *Buffer) Ingest(dets []Detection, ts time.Time) {
	if len(dets) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.snaps[b.next] = Snapshot{Time: ts, Detections: dets}
	b.next = (b.next + 1) % len(b.snaps)
	if b.count < len(b.snaps) {
		b.count++
	}
}

// Latest scans newest to oldest and returns the first snapshot not older
// than maxAge. A nil result is the uniform "no target" signal, whether the
// cause is true absence or retention exhaustion.
func (b *Buffer) Latest(maxAge time.Duration, now time.Time) []Detection {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < b.count; i++ {
		idx := (b.next - 1 - i + len(b.snaps)*2) % len(b.snaps)
		snap := b.snaps[idx]
		if now.Sub(snap.Time) <= maxAge {
			return snap.Detections
		}
	}
	return nil
}

// Len returns the number of retained snapshots.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Select picks the target from a detection set. With preferLargest it
// returns the largest box by area, first-wins on ties; otherwise the first
// element. The input order is assumed stable and is not re-sorted.
func Select(dets []Detection, preferLargest bool) (Detection, bool) {
	if len(dets) == 0 {
		return Detection{}, false
	}
	if !preferLargest {
		return dets[0], true
	}

	best := dets[0]
	bestArea := best.Area()
	for _, d := range dets[1:] {
		if a := d.Area(); a > bestArea {
			best = d
			bestArea = a
		}
	}
	return best, true
}

// FilterConfidence returns the detections at or above the threshold,
// preserving order.
func FilterConfidence(dets []Detection, threshold float64) []Detection {
	if threshold <= 0 {
		return dets
	}
	out := dets[:0:0]
	for _, d := range dets {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}
