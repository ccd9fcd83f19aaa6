package replay

import (
	"log/slog"

	"github.com/ayusman/mudra/internal/confirm"
)

// Event kinds.
const (
	KindConfirmed = "confirmed"
	KindReset     = "reset"
)

// Event is a notification raised while replaying, tagged with the 1-based
// frame number that raised it.
type Event struct {
	Frame      int     `json:"frame"`
	Kind       string  `json:"kind"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence,omitempty"`
	Streak     int     `json:"streak,omitempty"`
}

// Step is the outcome of one frame.
type Step struct {
	Index    int
	Frame    Frame
	Progress confirm.Progress
	State    confirm.Snapshot
	Events   []Event
}

// Result is the outcome of a full replay.
type Result struct {
	Frames int
	Events []Event
	Final  confirm.Snapshot
}

// Confirmations counts confirmed events.
func (r Result) Confirmations() int {
	n := 0
	for _, e := range r.Events {
		if e.Kind == KindConfirmed {
			n++
		}
	}
	return n
}

// Player steps through a trace one frame at a time on a fresh confirmer.
type Player struct {
	frames    []Frame
	next      int
	confirmer *confirm.Confirmer
	pending   []Event
}

// NewPlayer validates cfg and prepares frames for replay.
func NewPlayer(cfg confirm.Config, frames []Frame, logger *slog.Logger) (*Player, error) {
	c, err := confirm.New(cfg, confirm.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	p := &Player{frames: frames, confirmer: c}
	c.OnConfirmed(func(e confirm.Confirmed) {
		p.pending = append(p.pending, Event{
			Frame:      p.next,
			Kind:       KindConfirmed,
			Class:      e.Class,
			Confidence: e.Confidence,
			Streak:     e.StreakLength,
		})
	})
	c.OnReset(func(e confirm.Reset) {
		p.pending = append(p.pending, Event{Frame: p.next, Kind: KindReset, Class: e.PreviousClass})
	})
	return p, nil
}

// Len returns the number of frames in the trace.
func (p *Player) Len() int {
	return len(p.frames)
}

// Done reports whether every frame has been played.
func (p *Player) Done() bool {
	return p.next >= len(p.frames)
}

// Step plays the next frame. It returns false once the trace is exhausted.
func (p *Player) Step() (Step, bool) {
	if p.Done() {
		return Step{}, false
	}

	f := p.frames[p.next]
	p.next++
	p.pending = nil

	if f.NoSignal {
		p.confirmer.HandleNoSignal()
	} else {
		p.confirmer.Update(confirm.Classification{Class: f.Class, Confidence: f.Confidence}, f.Hands)
	}

	return Step{
		Index:    p.next,
		Frame:    f,
		Progress: p.confirmer.Progress(),
		State:    p.confirmer.Snapshot(),
		Events:   p.pending,
	}, true
}

// Snapshot returns the confirmer state after the frames played so far.
func (p *Player) Snapshot() confirm.Snapshot {
	return p.confirmer.Snapshot()
}

// Run replays every frame and collects the events in order.
func Run(cfg confirm.Config, frames []Frame, logger *slog.Logger) (Result, error) {
	p, err := NewPlayer(cfg, frames, logger)
	if err != nil {
		return Result{}, err
	}

	res := Result{Frames: len(frames)}
	for {
		step, ok := p.Step()
		if !ok {
			break
		}
		res.Events = append(res.Events, step.Events...)
	}
	res.Final = p.Snapshot()
	return res, nil
}
