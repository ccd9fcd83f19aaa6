// Package detector extracts hand landmarks from camera frames and turns them
// into the per-frame feature vector and hand count consumed downstream.
package detector

// Hand landmark indices, MediaPipe hand landmarker order.
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the landmarker.
const (
	Left  = "Left"
	Right = "Right"
)

// Point3D is a landmark position. X and Y are image-normalised, Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"`
	Score      float64               `json:"score"`
}

func (p Point3D) sub(o Point3D) Point3D {
	return Point3D{X: p.X - o.X, Y: p.Y - o.Y, Z: p.Z - o.Z}
}

// WristRelative returns a copy translated so the wrist is the origin. The
// same pose then yields the same landmarks wherever it sits in the frame.
func (h HandLandmarks) WristRelative() HandLandmarks {
	out := HandLandmarks{Handedness: h.Handedness, Score: h.Score}
	wrist := h.Points[Wrist]
	for i, p := range h.Points {
		out.Points[i] = p.sub(wrist)
	}
	return out
}

// Flatten appends x,y,z of every landmark to dst.
func (h *HandLandmarks) Flatten(dst []float64) []float64 {
	for _, p := range h.Points {
		dst = append(dst, p.X, p.Y, p.Z)
	}
	return dst
}
