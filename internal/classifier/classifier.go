// Package classifier maps a per-frame feature vector to a class label and a
// confidence score.
package classifier

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ayusman/mudra/internal/confirm"
)

// ErrDimensionMismatch is returned when a feature vector does not match the
// template length.
var ErrDimensionMismatch = errors.New("feature dimension mismatch")

// Classifier labels one frame.
type Classifier interface {
	Classify(features []float64) (confirm.Classification, error)
}

// Template is the averaged feature vector of one class.
type Template struct {
	Class  string
	Vector []float64
}

// Options tune a TemplateClassifier.
type Options struct {
	// Temperature scales distances before the softmax. Smaller is sharper.
	Temperature float64
	// MaxDistance reports the reserved class when the nearest template is
	// further away. Zero disables the check.
	MaxDistance float64
	// ReservedClass is the label for frames that match nothing.
	ReservedClass string
}

// DefaultOptions returns the options used by the desktop app.
func DefaultOptions() Options {
	return Options{
		Temperature:   0.25,
		MaxDistance:   3.0,
		ReservedClass: confirm.DefaultReservedClass,
	}
}

// TemplateClassifier is a nearest-template classifier. Confidence is the
// softmax weight of the nearest template over all templates.
type TemplateClassifier struct {
	opts      Options
	mu        sync.RWMutex
	templates []Template
}

// NewTemplateClassifier creates an empty classifier.
func NewTemplateClassifier(opts Options) *TemplateClassifier {
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultOptions().Temperature
	}
	if opts.ReservedClass == "" {
		opts.ReservedClass = confirm.DefaultReservedClass
	}
	return &TemplateClassifier{opts: opts}
}

// SetTemplate adds or replaces the template for t.Class.
func (c *TemplateClassifier) SetTemplate(t Template) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.templates {
		if c.templates[i].Class == t.Class {
			c.templates[i] = t
			return
		}
	}
	c.templates = append(c.templates, t)
	sort.Slice(c.templates, func(i, j int) bool {
		return c.templates[i].Class < c.templates[j].Class
	})
}

// RemoveTemplate drops the template for class, if any.
func (c *TemplateClassifier) RemoveTemplate(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.templates {
		if c.templates[i].Class == class {
			c.templates = append(c.templates[:i], c.templates[i+1:]...)
			return
		}
	}
}

// Templates returns the class names that currently have a template.
func (c *TemplateClassifier) Templates() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, len(c.templates))
	for i, t := range c.templates {
		names[i] = t.Class
	}
	return names
}

// Classify returns the nearest class. With no templates every frame is the
// reserved class at zero confidence.
func (c *TemplateClassifier) Classify(features []float64) (confirm.Classification, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.templates) == 0 {
		return confirm.Classification{Class: c.opts.ReservedClass}, nil
	}

	distances := make([]float64, len(c.templates))
	best := 0
	for i, t := range c.templates {
		if len(t.Vector) != len(features) {
			return confirm.Classification{}, fmt.Errorf("%w: template %q has %d values, frame has %d",
				ErrDimensionMismatch, t.Class, len(t.Vector), len(features))
		}
		distances[i] = euclideanDistance(features, t.Vector)
		if distances[i] < distances[best] {
			best = i
		}
	}

	// Shift by the minimum so the best weight is exp(0) and nothing underflows.
	var sum float64
	for _, d := range distances {
		sum += math.Exp(-(d - distances[best]) / c.opts.Temperature)
	}
	confidence := 1 / sum

	class := c.templates[best].Class
	if c.opts.MaxDistance > 0 && distances[best] > c.opts.MaxDistance {
		class = c.opts.ReservedClass
	}

	return confirm.Classification{Class: class, Confidence: confidence}, nil
}

func euclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
