// Package confirm turns a noisy per-frame stream of classifier outputs into
// discrete gesture confirmations.
//
// A Confirmer accumulates a streak of consecutive qualifying frames for one
// class and confirms it once the streak reaches the configured length. After
// a confirmation a cooldown suppresses every new confirmation, and the
// confirmed state only clears when the caller reports a frame without any
// usable input (HandleNoSignal) or hard-resets the confirmer.
//
// A Confirmer is not safe for concurrent use. It is meant to be driven from a
// single frame loop; hosts with several goroutines must serialise calls.
package confirm

import (
	"log/slog"
)

// Classification is one frame's classifier output.
type Classification struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
}

// Confirmed is emitted when a streak reaches the required length.
type Confirmed struct {
	Class        string  `json:"class"`
	Confidence   float64 `json:"confidence"`
	StreakLength int     `json:"streak_length"`
}

// Reset is emitted when a confirmed gesture is released by HandleNoSignal.
type Reset struct {
	PreviousClass string `json:"previous_class"`
}

// Progress is the presentation view of the current streak.
type Progress struct {
	CurrentClass string  `json:"current_class"`
	StreakLength int     `json:"streak_length"`
	Ratio        float64 `json:"ratio"` // not clamped
	IsConfirmed  bool    `json:"is_confirmed"`
}

// Snapshot exposes the complete mutable state for diagnostics.
type Snapshot struct {
	CurrentClass       string `json:"current_class"`
	StreakLength       int    `json:"streak_length"`
	LastConfirmedClass string `json:"last_confirmed_class"`
	CooldownRemaining  int    `json:"cooldown_remaining"`
	IsConfirmed        bool   `json:"is_confirmed"`
}

// Option customises a Confirmer.
type Option func(*Confirmer)

// WithLogger sets the logger that receives listener failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Confirmer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Confirmer is the temporal confirmation state machine.
type Confirmer struct {
	cfg      Config
	reserved string
	classes  map[string]int
	logger   *slog.Logger

	confirmed *notifier[Confirmed]
	reset     *notifier[Reset]

	currentClass       string
	streakLength       int
	lastConfirmedClass string
	cooldownRemaining  int
	isConfirmed        bool
}

// New validates cfg and returns an idle Confirmer.
// An invalid configuration yields a *ConfigurationError and a nil Confirmer.
func New(cfg Config, opts ...Option) (*Confirmer, error) {
	classes, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	c := &Confirmer{
		cfg:      cfg,
		reserved: cfg.reserved(),
		classes:  classes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.confirmed = newNotifier[Confirmed]("confirmed", c.logger)
	c.reset = newNotifier[Reset]("reset", c.logger)

	return c, nil
}

// Config returns the configuration the confirmer was built with.
func (c *Confirmer) Config() Config {
	return c.cfg
}

// OnConfirmed registers fn to run on every confirmation.
func (c *Confirmer) OnConfirmed(fn func(Confirmed)) Subscription {
	return c.confirmed.subscribe(fn)
}

// OnReset registers fn to run whenever a confirmation is released.
func (c *Confirmer) OnReset(fn func(Reset)) Subscription {
	return c.reset.subscribe(fn)
}

// Update processes one frame. featureCount is the number of hands the caller
// detected for this frame. Frames that fail any gate reset the streak; no
// frame ever produces an error.
func (c *Confirmer) Update(cl Classification, featureCount int) {
	if c.cooldownRemaining > 0 {
		c.cooldownRemaining--
	}

	required, known := c.classes[cl.Class]
	if !known || cl.Class == c.reserved {
		c.resetStreak()
		return
	}

	// Exact hand count, not "at least".
	if required > 0 && featureCount != required {
		c.resetStreak()
		return
	}

	// NaN confidence never qualifies.
	if !(cl.Confidence >= c.cfg.MinConfidence) {
		c.resetStreak()
		return
	}

	// A freshly seeded streak never confirms in the call that seeded it,
	// even with RequiredStreak == 1.
	if cl.Class != c.currentClass {
		c.resetStreak()
		c.currentClass = cl.Class
		c.streakLength = 1
		return
	}

	c.streakLength++

	if c.streakLength >= c.cfg.RequiredStreak && !c.isConfirmed && c.cooldownRemaining == 0 {
		c.isConfirmed = true
		c.lastConfirmedClass = cl.Class
		c.cooldownRemaining = c.cfg.CooldownFrames

		c.confirmed.emit(Confirmed{
			Class:        cl.Class,
			Confidence:   cl.Confidence,
			StreakLength: c.streakLength,
		})
	}
}

// HandleNoSignal reports a frame without any usable input. It releases an
// active confirmation and clears the streak but leaves the cooldown running.
func (c *Confirmer) HandleNoSignal() {
	if c.isConfirmed {
		c.isConfirmed = false
		c.reset.emit(Reset{PreviousClass: c.lastConfirmedClass})
	}
	c.resetStreak()
}

// Progress reports the current streak. It has no side effects.
func (c *Confirmer) Progress() Progress {
	return Progress{
		CurrentClass: c.currentClass,
		StreakLength: c.streakLength,
		Ratio:        float64(c.streakLength) / float64(c.cfg.RequiredStreak),
		IsConfirmed:  c.isConfirmed,
	}
}

// Snapshot returns the full state.
func (c *Confirmer) Snapshot() Snapshot {
	return Snapshot{
		CurrentClass:       c.currentClass,
		StreakLength:       c.streakLength,
		LastConfirmedClass: c.lastConfirmedClass,
		CooldownRemaining:  c.cooldownRemaining,
		IsConfirmed:        c.isConfirmed,
	}
}

// Reset wipes all state back to construction defaults, cooldown included.
// No notification is emitted.
func (c *Confirmer) Reset() {
	c.currentClass = ""
	c.streakLength = 0
	c.lastConfirmedClass = ""
	c.cooldownRemaining = 0
	c.isConfirmed = false
}

func (c *Confirmer) resetStreak() {
	c.currentClass = ""
	c.streakLength = 0
}
