package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns scripted hands. Frames set with SetSequence are
// played back one per Detect call; the last entry repeats once exhausted.
type MockDetector struct {
	mu       sync.Mutex
	sequence [][]HandLandmarks
	index    int
	err      error
	calls    int
}

// NewMockDetector creates a MockDetector that reports no hands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands makes every Detect call return hands.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.SetSequence([][]HandLandmarks{hands})
}

// SetSequence replaces the playback sequence.
func (m *MockDetector) SetSequence(seq [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = seq
	m.index = 0
}

// SetError sets the error returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted result.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) == 0 {
		return nil, nil
	}

	hands := m.sequence[m.index]
	if m.index < len(m.sequence)-1 {
		m.index++
	}
	return hands, nil
}

// Close is a no-op.
func (m *MockDetector) Close() error {
	return nil
}

// OpenHand returns a synthetic open hand with fingers spread upward from a
// wrist at (x, 0.8). Left hands mirror the thumb to the other side.
func OpenHand(handedness string, x float64) HandLandmarks {
	return syntheticHand(handedness, x, 1.0)
}

// ClosedHand returns a synthetic fist: every finger folded back toward the palm.
func ClosedHand(handedness string, x float64) HandLandmarks {
	return syntheticHand(handedness, x, 0.25)
}

// syntheticHand lays each finger out as a straight chain of four joints.
// extension scales finger length; the thumb is always extended sideways.
func syntheticHand(handedness string, x, extension float64) HandLandmarks {
	h := HandLandmarks{Handedness: handedness, Score: 0.95}

	side := 1.0
	if handedness == Left {
		side = -1.0
	}

	wrist := Point3D{X: x, Y: 0.8}
	h.Points[Wrist] = wrist

	for j := 1; j <= 4; j++ {
		f := float64(j)
		h.Points[ThumbCMC+j-1] = Point3D{X: x + side*0.04*f, Y: 0.8 - 0.03*f}
	}

	// Finger bases spread across the palm, index nearest the thumb.
	bases := []int{IndexMCP, MiddleMCP, RingMCP, PinkyMCP}
	for i, base := range bases {
		bx := x + side*(0.05-0.033*float64(i))
		h.Points[base] = Point3D{X: bx, Y: 0.68}
		for j := 1; j <= 3; j++ {
			h.Points[base+j] = Point3D{
				X: bx,
				Y: 0.68 - 0.1*extension*float64(j),
				Z: -0.02 * (1 - extension) * float64(j),
			}
		}
	}

	return h
}
