package replay

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/testdata"
)

func loadTrace(t *testing.T, name string) []Frame {
	t.Helper()
	data, err := testdata.Trace(name)
	if err != nil {
		t.Fatal(err)
	}
	frames, err := ParseTrace(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseTrace(%s) error = %v", name, err)
	}
	return frames
}

func TestParseTrace(t *testing.T) {
	input := `# comment
class,confidence,hands
gojo,0.9,1
-,,0
,,0
ryomen, 0.75 ,2
unknown,0.99,
`
	frames, err := ParseTrace(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseTrace() error = %v", err)
	}

	want := []Frame{
		{Line: 3, Class: "gojo", Confidence: 0.9, Hands: 1},
		{Line: 4, NoSignal: true},
		{Line: 5, NoSignal: true},
		{Line: 6, Class: "ryomen", Confidence: 0.75, Hands: 2},
		{Line: 7, Class: "unknown", Confidence: 0.99},
	}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d: %+v", len(frames), len(want), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d = %+v, want %+v", i, frames[i], want[i])
		}
	}
}

func TestParseTrace_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bad confidence", "gojo,high,1\n"},
		{"bad hands", "gojo,0.9,two\n"},
		{"negative hands", "gojo,0.9,-1\n"},
		{"missing class", ",0.9,1\n"},
		{"wrong field count", "gojo,0.9\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseTrace(strings.NewReader(tt.input)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRun_EmbeddedTraces(t *testing.T) {
	tests := []struct {
		trace  string
		events []Event
		final  confirm.Snapshot
	}{
		{
			trace: "hold",
			events: []Event{
				{Frame: 15, Kind: KindConfirmed, Class: "gojo", Confidence: 0.92, Streak: 15},
				{Frame: 17, Kind: KindReset, Class: "gojo"},
			},
			final: confirm.Snapshot{LastConfirmedClass: "gojo", CooldownRemaining: 59},
		},
		{
			trace:  "flicker",
			events: nil,
			final:  confirm.Snapshot{CurrentClass: "ryomen", StreakLength: 1},
		},
		{
			trace: "two_hands",
			events: []Event{
				{Frame: 35, Kind: KindConfirmed, Class: "ryomen", Confidence: 0.95, Streak: 15},
			},
			final: confirm.Snapshot{CurrentClass: "ryomen", StreakLength: 15, LastConfirmedClass: "ryomen", CooldownRemaining: 60, IsConfirmed: true},
		},
		{
			trace:  "low_confidence",
			events: nil,
			final:  confirm.Snapshot{CurrentClass: "megumi", StreakLength: 14},
		},
	}

	for _, tt := range tests {
		t.Run(tt.trace, func(t *testing.T) {
			res, err := Run(confirm.DefaultConfig(), loadTrace(t, tt.trace), nil)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if len(res.Events) != len(tt.events) {
				t.Fatalf("events = %+v, want %+v", res.Events, tt.events)
			}
			for i := range tt.events {
				if res.Events[i] != tt.events[i] {
					t.Errorf("event %d = %+v, want %+v", i, res.Events[i], tt.events[i])
				}
			}
			if res.Final != tt.final {
				t.Errorf("final = %+v, want %+v", res.Final, tt.final)
			}
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := confirm.DefaultConfig()
	cfg.CooldownFrames = -1

	_, err := Run(cfg, nil, nil)
	if !errors.Is(err, confirm.ErrInvalidConfig) {
		t.Errorf("Run() error = %v, want ErrInvalidConfig", err)
	}
}

func TestPlayer_Step(t *testing.T) {
	frames := loadTrace(t, "hold")
	p, err := NewPlayer(confirm.DefaultConfig(), frames, nil)
	if err != nil {
		t.Fatalf("NewPlayer() error = %v", err)
	}
	if p.Len() != len(frames) {
		t.Errorf("Len() = %d", p.Len())
	}

	var steps []Step
	for {
		s, ok := p.Step()
		if !ok {
			break
		}
		steps = append(steps, s)
	}

	if !p.Done() || len(steps) != len(frames) {
		t.Fatalf("played %d of %d frames", len(steps), len(frames))
	}
	if steps[13].Progress.IsConfirmed || !steps[14].Progress.IsConfirmed {
		t.Error("confirmation should happen on the 15th frame")
	}
	if len(steps[14].Events) != 1 || len(steps[15].Events) != 0 {
		t.Errorf("events on frames 15/16 = %v / %v", steps[14].Events, steps[15].Events)
	}
	if steps[15].Progress.Ratio <= 1 {
		t.Errorf("held sign ratio = %v, want above 1", steps[15].Progress.Ratio)
	}
}

func TestTraces(t *testing.T) {
	names := testdata.Traces()
	if len(names) < 4 || names[0] != "flicker" {
		t.Errorf("Traces() = %v", names)
	}
	if _, err := testdata.Trace("missing"); err == nil {
		t.Error("expected error for a missing trace")
	}
}
