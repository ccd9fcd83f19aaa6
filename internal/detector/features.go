package detector

// HandDims is the number of values contributed by one hand.
const HandDims = NumLandmarks * 3

// FeatureDims is the length of a two-hand feature vector: [Left | Right].
const FeatureDims = HandDims * 2

// FeatureVector builds the classifier input for one frame. The left hand
// fills the first half and the right hand the second; a missing hand stays
// zero. When both hands report the same handedness the higher scoring one
// keeps its slot and the other takes the free slot. Hands beyond two are
// ignored.
//
// Each hand is made wrist-relative before it is flattened, so recorded
// samples and live frames compare by pose rather than position.
func FeatureVector(hands []HandLandmarks) []float64 {
	features := make([]float64, FeatureDims)

	var slots [2]*HandLandmarks
	var spill []*HandLandmarks

	for i := range hands {
		h := &hands[i]
		slot := 1
		if h.Handedness == Left {
			slot = 0
		}

		switch {
		case slots[slot] == nil:
			slots[slot] = h
		case h.Score > slots[slot].Score:
			spill = append(spill, slots[slot])
			slots[slot] = h
		default:
			spill = append(spill, h)
		}
	}

	for _, h := range spill {
		for s := range slots {
			if slots[s] == nil {
				slots[s] = h
				break
			}
		}
	}

	for s, h := range slots {
		if h == nil {
			continue
		}
		rel := h.WristRelative()
		rel.Flatten(features[s*HandDims : s*HandDims])
	}

	return features
}

// HandCount is the feature count reported to the confirmer: the number of
// FeatureVector slots filled, so at most two.
func HandCount(hands []HandLandmarks) int {
	return min(len(hands), 2)
}
