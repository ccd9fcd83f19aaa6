package detector

import "gocv.io/x/gocv"

// Detector finds hands in a video frame.
type Detector interface {
	// Detect returns the hands found in frame, or an empty slice.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds hand landmarker thresholds.
type Config struct {
	// MaxHands is the maximum number of hands to report (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence (0.0-1.0).
	MinConfidence float64

	// MinPresenceConf is the minimum hand presence confidence (0.0-1.0).
	MinPresenceConf float64

	// MinTrackingConf is the minimum tracking confidence (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the landmarker service script location.
	ScriptPath string

	// PythonPath overrides the interpreter used to run the service.
	PythonPath string
}

// DefaultConfig returns thresholds tuned for side-on and two-handed poses,
// where the stock 0.5 presence threshold drops too many frames.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinPresenceConf: 0.4,
		MinTrackingConf: 0.4,
	}
}
