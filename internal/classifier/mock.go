package classifier

import (
	"sync"

	"github.com/ayusman/mudra/internal/confirm"
)

// Mock returns scripted classifications in order, repeating the last one.
type Mock struct {
	mu      sync.Mutex
	results []confirm.Classification
	index   int
	err     error
}

// NewMock creates a Mock that plays results.
func NewMock(results ...confirm.Classification) *Mock {
	return &Mock{results: results}
}

// SetError makes Classify fail with err.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Classify ignores features and returns the next scripted result.
func (m *Mock) Classify(features []float64) (confirm.Classification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return confirm.Classification{}, m.err
	}
	if len(m.results) == 0 {
		return confirm.Classification{Class: confirm.DefaultReservedClass}, nil
	}

	r := m.results[m.index]
	if m.index < len(m.results)-1 {
		m.index++
	}
	return r, nil
}
