package confirm

import (
	"errors"
	"fmt"
)

// Reference tuning values used by the desktop app.
const (
	DefaultRequiredStreak = 15
	DefaultMinConfidence  = 0.85
	DefaultCooldownFrames = 60

	// DefaultReservedClass is the catch-all label the classifier emits for
	// hand poses that are not a known sign.
	DefaultReservedClass = "unknown"
)

// ErrInvalidConfig is wrapped by every ConfigurationError.
var ErrInvalidConfig = errors.New("invalid confirmer configuration")

// ConfigurationError reports a construction parameter that cannot be used.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("confirm: %s: %s", e.Field, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidConfig).
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

// ClassSpec describes one recognisable class.
type ClassSpec struct {
	Name string `json:"name"`
	// RequiredFeatureCount is the exact number of detected hands the class
	// needs. Zero means unconstrained.
	RequiredFeatureCount int `json:"required_feature_count"`
}

// Config holds the static tuning of a Confirmer.
type Config struct {
	// RequiredStreak is the number of consecutive qualifying frames needed to confirm.
	RequiredStreak int
	// MinConfidence is the per-frame confidence floor in [0,1].
	MinConfidence float64
	// CooldownFrames suppresses any new confirmation for this many frames.
	CooldownFrames int
	// Classes is the class table. The reserved class is added when missing.
	Classes []ClassSpec
	// ReservedClass names the never-confirmable class. Empty means DefaultReservedClass.
	ReservedClass string
}

// DefaultClasses returns the reference class table: one single-hand sign,
// two two-handed signs and the reserved class.
func DefaultClasses() []ClassSpec {
	return []ClassSpec{
		{Name: "gojo", RequiredFeatureCount: 1},
		{Name: "ryomen", RequiredFeatureCount: 2},
		{Name: "megumi", RequiredFeatureCount: 2},
		{Name: DefaultReservedClass, RequiredFeatureCount: 0},
	}
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		RequiredStreak: DefaultRequiredStreak,
		MinConfidence:  DefaultMinConfidence,
		CooldownFrames: DefaultCooldownFrames,
		Classes:        DefaultClasses(),
		ReservedClass:  DefaultReservedClass,
	}
}

// Validate checks the configuration and returns the class table as a lookup
// map keyed by class name.
func (c Config) Validate() (map[string]int, error) {
	if c.RequiredStreak <= 0 {
		return nil, &ConfigurationError{Field: "RequiredStreak", Reason: fmt.Sprintf("must be positive, got %d", c.RequiredStreak)}
	}
	// The negated form also rejects NaN.
	if !(c.MinConfidence >= 0 && c.MinConfidence <= 1) {
		return nil, &ConfigurationError{Field: "MinConfidence", Reason: fmt.Sprintf("must be within [0,1], got %v", c.MinConfidence)}
	}
	if c.CooldownFrames < 0 {
		return nil, &ConfigurationError{Field: "CooldownFrames", Reason: fmt.Sprintf("must not be negative, got %d", c.CooldownFrames)}
	}

	reserved := c.reserved()
	classes := make(map[string]int, len(c.Classes)+1)
	for i, spec := range c.Classes {
		if spec.Name == "" {
			return nil, &ConfigurationError{Field: "Classes", Reason: fmt.Sprintf("class %d has an empty name", i)}
		}
		if _, dup := classes[spec.Name]; dup {
			return nil, &ConfigurationError{Field: "Classes", Reason: fmt.Sprintf("duplicate class name %q", spec.Name)}
		}
		if spec.RequiredFeatureCount < 0 {
			return nil, &ConfigurationError{Field: "Classes", Reason: fmt.Sprintf("class %q has negative required feature count %d", spec.Name, spec.RequiredFeatureCount)}
		}
		if spec.Name == reserved && spec.RequiredFeatureCount != 0 {
			return nil, &ConfigurationError{Field: "Classes", Reason: fmt.Sprintf("reserved class %q must not require features", reserved)}
		}
		classes[spec.Name] = spec.RequiredFeatureCount
	}
	classes[reserved] = 0

	return classes, nil
}

func (c Config) reserved() string {
	if c.ReservedClass == "" {
		return DefaultReservedClass
	}
	return c.ReservedClass
}
