// Package emotion detects a listener's mood for emotion-driven playback.
package emotion

import (
	"context"
	"math/rand/v2"
	"time"
)

// Labels are the emotions songs can be tagged with.
var Labels = []string{"Happy", "Sad", "Angry", "Neutral", "Surprised"}

// DefaultScanDelay is how long a simulated scan takes.
const DefaultScanDelay = 3 * time.Second

// Detector returns the detected emotion label.
type Detector interface {
	Detect(ctx context.Context) (string, error)
}

// SimulatedDetector waits for the scan delay and picks a label at random.
type SimulatedDetector struct {
	delay time.Duration
	intn  func(n int) int
}

// NewSimulatedDetector creates a simulated detector.
func NewSimulatedDetector(delay time.Duration) *SimulatedDetector {
	return &SimulatedDetector{delay: delay, intn: rand.IntN}
}

// Detect implements Detector.
func (d *SimulatedDetector) Detect(ctx context.Context) (string, error) {
	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return Labels[d.intn(len(Labels))], nil
}
