package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion detection defaults.
const (
	DefaultMotionThreshold = 1.0 // percent of pixels
	DefaultBlurSize        = 21
	DefaultDiffThreshold   = 25
)

// Motion is the result of comparing a frame with the previous one.
type Motion struct {
	Detected      bool
	ChangePercent float64
}

// MotionDetector compares consecutive frames after grayscale conversion and
// Gaussian blur. The first frame after creation or Reset only sets the
// baseline.
type MotionDetector struct {
	threshold float64

	mu       sync.Mutex
	baseline gocv.Mat
	primed   bool
}

// NewMotionDetector creates a detector that reports motion when more than
// threshold percent of pixels change. Non-positive thresholds use the
// default.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{threshold: threshold, baseline: gocv.NewMat()}
}

// Threshold returns the change percentage above which motion is reported.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// SetThreshold ignores non-positive values.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}

// Detect compares frame with the previous frame and makes it the new baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) Motion {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Motion{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(DefaultBlurSize, DefaultBlurSize), 0, 0, gocv.BorderDefault)

	if !m.primed || blurred.Rows() != m.baseline.Rows() || blurred.Cols() != m.baseline.Cols() {
		m.swapBaseline(blurred)
		m.primed = true
		return Motion{}
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.baseline, &diff)
	gocv.Threshold(diff, &diff, DefaultDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	m.swapBaseline(blurred)

	return Motion{Detected: changed > m.threshold, ChangePercent: changed}
}

// swapBaseline takes ownership of next.
func (m *MotionDetector) swapBaseline(next gocv.Mat) {
	m.baseline.Close()
	m.baseline = next
}

// Reset forgets the baseline.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swapBaseline(gocv.NewMat())
	m.primed = false
}

// Close releases the baseline frame.
func (m *MotionDetector) Close() {
	m.Reset()
}
