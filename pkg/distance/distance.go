// Package distance holds the face-to-screen distance sample type and the
// pixel-height to centimeter conversion.
package distance

import "fmt"

// Distance estimation constants.
const (
	// DefaultConstant is the empirical factor K in distance_cm = K / faceHeightPx.
	// Measured on a typical phone front camera: a face 200px tall is ~20cm away.
	// It is not a per-device calibration; override it through estimator config
	// when a camera reads consistently near or far.
	DefaultConstant = 4000.0

	// Sentinel marks "no usable measurement this frame" (no face, detector
	// failure, degenerate box).
	Sentinel = -1.0
)

// Sample is one distance estimate produced for a captured frame.
type Sample struct {
	// Centimeters is the estimated distance, or Sentinel.
	Centimeters float64

	// Generation is the capture generation the frame was issued under.
	Generation uint64

	// Seq is the capture sequence number of the analyzed frame.
	Seq uint64
}

// Valid reports whether the sample carries a real measurement.
func (s Sample) Valid() bool {
	return s.Centimeters > 0
}

// String formats the sample for logs.
func (s Sample) String() string {
	if !s.Valid() {
		return fmt.Sprintf("gen=%d seq=%d no-signal", s.Generation, s.Seq)
	}
	return fmt.Sprintf("gen=%d seq=%d %.1fcm", s.Generation, s.Seq, s.Centimeters)
}

// Sink receives distance samples. Implementations must not block for long:
// sinks are called from detector completion goroutines.
type Sink func(Sample)

// Estimate converts a face bounding-box height in pixels into centimeters
// using distance = k / height. Returns Sentinel if height or k is not positive.
func Estimate(k, faceHeightPx float64) float64 {
	if faceHeightPx <= 0 || k <= 0 {
		return Sentinel
	}
	return k / faceHeightPx
}

// Category returns a human-readable bucket for a distance in centimeters.
func Category(cm float64) string {
	if cm <= 0 {
		return "unknown"
	}
	if cm < 20 {
		return "very close"
	}
	if cm < 30 {
		return "close"
	}
	if cm < 50 {
		return "comfortable"
	}
	return "far"
}
