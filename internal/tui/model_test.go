package tui

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/replay"
	"github.com/ayusman/mudra/testdata"
)

func holdModel(t *testing.T) Model {
	t.Helper()
	data, err := testdata.Trace("hold")
	if err != nil {
		t.Fatal(err)
	}
	frames, err := replay.ParseTrace(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	m, err := New("hold", confirm.DefaultConfig(), frames, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func press(t *testing.T, m Model, key tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(key)
	return updated.(Model), cmd
}

var stepKey = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := confirm.DefaultConfig()
	cfg.RequiredStreak = 0

	if _, err := New("bad", cfg, nil, nil); err == nil {
		t.Error("expected error for invalid config")
	}
}

func TestModel_StepThroughHold(t *testing.T) {
	m := holdModel(t)
	if m.Playing() {
		t.Error("new model should be paused")
	}

	for range 15 {
		m, _ = press(t, m, stepKey)
	}
	if len(m.Events()) != 1 || m.Events()[0].Kind != replay.KindConfirmed {
		t.Fatalf("events after 15 frames = %+v", m.Events())
	}
	if !strings.Contains(m.View(), "CONFIRMED") {
		t.Error("view should show the confirmation")
	}

	for range 10 {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	}
	if len(m.Events()) != 2 || m.Events()[1].Kind != replay.KindReset {
		t.Fatalf("events at end = %+v", m.Events())
	}
	if !strings.Contains(m.View(), "DONE") {
		t.Error("view should show the trace is finished")
	}
}

func TestModel_PlayTicks(t *testing.T) {
	m := holdModel(t)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if !m.Playing() || cmd == nil {
		t.Fatal("space should start playback and schedule a tick")
	}

	updated, cmd := m.Update(TickMsg{Gen: m.gen})
	m = updated.(Model)
	if m.last.Index != 1 || cmd == nil {
		t.Errorf("tick should play one frame, at %d", m.last.Index)
	}

	// A tick from before the pause is ignored.
	stale := m.gen
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	updated, _ = m.Update(TickMsg{Gen: stale})
	m = updated.(Model)
	if m.Playing() || m.last.Index != 1 {
		t.Errorf("paused model advanced to %d", m.last.Index)
	}
}

func TestModel_PlayStopsAtEnd(t *testing.T) {
	m := holdModel(t)
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace})

	for i := 0; i < 30; i++ {
		updated, _ := m.Update(TickMsg{Gen: m.gen})
		m = updated.(Model)
	}
	if m.Playing() {
		t.Error("playback should stop at the end of the trace")
	}
	if m.last.Index != m.player.Len() {
		t.Errorf("index = %d, want %d", m.last.Index, m.player.Len())
	}

	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if cmd != nil {
		t.Error("play on a finished trace should do nothing")
	}
}

func TestModel_Restart(t *testing.T) {
	m := holdModel(t)
	for range 16 {
		m, _ = press(t, m, stepKey)
	}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if len(m.Events()) != 0 || m.last.Index != 0 || m.player.Done() {
		t.Errorf("restart left state: events=%d index=%d", len(m.Events()), m.last.Index)
	}
	if !strings.Contains(m.View(), "no events") {
		t.Error("view should be empty after restart")
	}
}

func TestModel_Speed(t *testing.T) {
	m := holdModel(t)

	for range 10 {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'+'}})
	}
	if m.interval != minInterval {
		t.Errorf("interval = %s, want %s", m.interval, minInterval)
	}
	for range 20 {
		m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
	}
	if m.interval != maxInterval {
		t.Errorf("interval = %s, want %s", m.interval, maxInterval)
	}
}

func TestModel_Quit(t *testing.T) {
	m := holdModel(t)
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestRenderBar(t *testing.T) {
	if got := strings.Count(renderBar(0.5), "█"); got != barLen/2 {
		t.Errorf("half bar filled %d", got)
	}
	if got := strings.Count(renderBar(1.4), "█"); got != barLen {
		t.Errorf("overfull bar filled %d", got)
	}
}
