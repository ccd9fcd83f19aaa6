package classifier

import (
	"encoding/json"
	"fmt"
)

// Sample is one recorded training frame as stored and posted by the UI.
type Sample struct {
	Features  []float64 `json:"features"`
	Hands     int       `json:"hands"`
	Timestamp int64     `json:"timestamp"`
}

// DecodeSamples parses raw JSON samples.
func DecodeSamples(raw []json.RawMessage) ([]Sample, error) {
	samples := make([]Sample, 0, len(raw))
	for i, r := range raw {
		var s Sample
		if err := json.Unmarshal(r, &s); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Train averages samples into a template for class. Every sample must have
// the same non-zero dimension.
func Train(class string, samples []Sample) (Template, error) {
	if len(samples) == 0 {
		return Template{}, fmt.Errorf("no samples provided for %q", class)
	}

	dims := len(samples[0].Features)
	if dims == 0 {
		return Template{}, fmt.Errorf("sample 0 of %q has no features", class)
	}

	sum := make([]float64, dims)
	for i, s := range samples {
		if len(s.Features) != dims {
			return Template{}, fmt.Errorf("%w: sample %d of %q has %d values, expected %d",
				ErrDimensionMismatch, i, class, len(s.Features), dims)
		}
		for j, v := range s.Features {
			sum[j] += v
		}
	}

	n := float64(len(samples))
	for j := range sum {
		sum[j] /= n
	}

	return Template{Class: class, Vector: sum}, nil
}
