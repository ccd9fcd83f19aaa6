// Package history persists confirmation events.
package history

import (
	"log/slog"
	"time"

	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/store"
)

// Sink stores one history row.
type Sink interface {
	Record(c *store.Confirmation) error
}

// Recorder writes a row per Confirmed and Reset notification. Write errors
// are logged and never reach the confirmer.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder writing to sink.
func NewRecorder(sink Sink, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// Attach subscribes r to c.
func (r *Recorder) Attach(c *confirm.Confirmer) []confirm.Subscription {
	return []confirm.Subscription{
		c.OnConfirmed(r.Confirmed),
		c.OnReset(r.Reset),
	}
}

// Confirmed records e.
func (r *Recorder) Confirmed(e confirm.Confirmed) {
	r.write(&store.Confirmation{
		Kind:       store.KindConfirmed,
		Class:      e.Class,
		Confidence: e.Confidence,
		Streak:     e.StreakLength,
	})
}

// Reset records e against the class that was released.
func (r *Recorder) Reset(e confirm.Reset) {
	r.write(&store.Confirmation{
		Kind:  store.KindReset,
		Class: e.PreviousClass,
	})
}

func (r *Recorder) write(c *store.Confirmation) {
	c.CreatedAt = r.now()
	if err := r.sink.Record(c); err != nil {
		r.logger.Error("failed to record history", "kind", c.Kind, "class", c.Class, "error", err)
	}
}
