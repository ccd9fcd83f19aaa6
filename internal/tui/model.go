// Package tui steps through a recorded trace in the terminal, showing the
// streak progress and the events a live confirmer would raise.
package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/replay"
)

// Key bindings.
const (
	KeyQuit    = "q"
	KeyCtrlC   = "ctrl+c"
	KeyPlay    = " "
	KeyStep    = "n"
	KeyRight   = "right"
	KeyRestart = "r"
	KeyFaster  = "+"
	KeySlower  = "-"
)

const (
	// DefaultInterval is roughly the 30 fps camera rate.
	DefaultInterval = 33 * time.Millisecond
	minInterval     = 5 * time.Millisecond
	maxInterval     = time.Second

	barLen    = 30
	logLength = 8
)

// TickMsg advances playback by one frame.
type TickMsg struct {
	// Gen discards ticks scheduled before the last restart or pause.
	Gen int
}

// Model is the bubbletea model for the replay viewer.
type Model struct {
	name   string
	cfg    confirm.Config
	frames []replay.Frame
	logger *slog.Logger

	player   *replay.Player
	last     replay.Step
	events   []replay.Event
	playing  bool
	interval time.Duration
	gen      int
	err      error

	width int
}

// New builds a paused viewer for frames. The configuration is validated
// before the first frame is played.
func New(name string, cfg confirm.Config, frames []replay.Frame, logger *slog.Logger) (Model, error) {
	m := Model{
		name:     name,
		cfg:      cfg,
		frames:   frames,
		logger:   logger,
		interval: DefaultInterval,
	}
	if err := m.restart(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Init starts paused.
func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) restart() error {
	p, err := replay.NewPlayer(m.cfg, m.frames, m.logger)
	if err != nil {
		return err
	}
	m.player = p
	m.last = replay.Step{}
	m.events = nil
	m.playing = false
	m.gen++
	return nil
}

func (m *Model) step() bool {
	s, ok := m.player.Step()
	if !ok {
		m.playing = false
		return false
	}
	m.last = s
	m.events = append(m.events, s.Events...)
	return true
}

func (m Model) tick() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return TickMsg{Gen: gen}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case TickMsg:
		if !m.playing || msg.Gen != m.gen {
			return m, nil
		}
		if !m.step() {
			return m, nil
		}
		return m, m.tick()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		return m, tea.Quit

	case KeyPlay:
		if m.player.Done() {
			return m, nil
		}
		m.playing = !m.playing
		m.gen++
		if m.playing {
			return m, m.tick()
		}
		return m, nil

	case KeyStep, KeyRight:
		if m.playing {
			m.playing = false
			m.gen++
		}
		m.step()
		return m, nil

	case KeyRestart:
		if err := m.restart(); err != nil {
			m.err = err
		}
		return m, nil

	case KeyFaster:
		m.interval = max(m.interval/2, minInterval)
		return m, nil

	case KeySlower:
		m.interval = min(m.interval*2, maxInterval)
		return m, nil
	}

	return m, nil
}

// Events returns the events raised so far.
func (m Model) Events() []replay.Event {
	return m.events
}

// Playing reports whether playback is running.
func (m Model) Playing() bool {
	return m.playing
}

// View renders the viewer.
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 60
	}

	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		dividerStyle.Render(strings.Repeat("─", width)),
		m.renderProgress(),
		m.renderState(),
		dividerStyle.Render(strings.Repeat("─", width)),
		m.renderLog(),
	}
	if m.err != nil {
		sections = append(sections, cooldownStyle.Render("Error: "+m.err.Error()))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("MUDRA REPLAY")
	if m.name != "" {
		title += dimStyle.Render(" " + m.name)
	}
	return title + dimStyle.Render(fmt.Sprintf("  streak %d  min %.2f  cooldown %d",
		m.cfg.RequiredStreak, m.cfg.MinConfidence, m.cfg.CooldownFrames))
}

func (m Model) renderStatus() string {
	var state string
	switch {
	case m.player.Done():
		state = doneStyle.Render("■ DONE")
	case m.playing:
		state = playingStyle.Render("▶ PLAY")
	default:
		state = pausedStyle.Render("‖ PAUSE")
	}

	return fmt.Sprintf("%s  frame %d/%d  %s", state, m.last.Index, m.player.Len(),
		dimStyle.Render(m.interval.String()+"/frame"))
}

func (m Model) renderProgress() string {
	p := m.last.Progress
	class := p.CurrentClass
	if class == "" {
		class = "-"
	}

	label := classStyle.Render(fmt.Sprintf("%-10s", class))
	if p.IsConfirmed {
		label = confirmedStyle.Render(fmt.Sprintf("%-10s", class))
	}
	return fmt.Sprintf("%s %s %d/%d", label, renderBar(p.Ratio), p.StreakLength, m.cfg.RequiredStreak)
}

// renderBar draws ratio as a bar. Ratios above 1 fill the bar.
func renderBar(ratio float64) string {
	filled := int(ratio * barLen)
	filled = max(0, min(filled, barLen))

	fill := barFillStyle
	if filled == barLen {
		fill = barFullStyle
	}
	return fill.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barLen-filled))
}

func (m Model) renderState() string {
	s := m.last.State
	var parts []string

	if s.IsConfirmed {
		parts = append(parts, confirmedStyle.Render("CONFIRMED"))
	}
	if s.LastConfirmedClass != "" {
		parts = append(parts, dimStyle.Render("last ")+s.LastConfirmedClass)
	}
	if s.CooldownRemaining > 0 {
		parts = append(parts, cooldownStyle.Render(fmt.Sprintf("cooldown %d", s.CooldownRemaining)))
	}

	f := m.last.Frame
	switch {
	case m.last.Index == 0:
	case f.NoSignal:
		parts = append(parts, dimStyle.Render("input: no signal"))
	default:
		parts = append(parts, dimStyle.Render(fmt.Sprintf("input: %s %.2f hands=%d", f.Class, f.Confidence, f.Hands)))
	}

	if len(parts) == 0 {
		return dimStyle.Render("idle")
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderLog() string {
	if len(m.events) == 0 {
		return dimStyle.Render("no events")
	}

	start := max(0, len(m.events)-logLength)
	lines := make([]string, 0, len(m.events)-start)
	for _, e := range m.events[start:] {
		frame := dimStyle.Render(fmt.Sprintf("%5d", e.Frame))
		switch e.Kind {
		case replay.KindConfirmed:
			lines = append(lines, fmt.Sprintf("%s %s %s %s", frame, confirmedStyle.Render("confirmed"),
				e.Class, dimStyle.Render(fmt.Sprintf("conf=%.2f streak=%d", e.Confidence, e.Streak))))
		default:
			lines = append(lines, fmt.Sprintf("%s %s %s", frame, resetStyle.Render("reset"), e.Class))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderFooter() string {
	parts := []string{
		footerKeyStyle.Render("Space") + footerDescStyle.Render(" Play"),
		footerKeyStyle.Render("n") + footerDescStyle.Render(" Step"),
		footerKeyStyle.Render("r") + footerDescStyle.Render(" Restart"),
		footerKeyStyle.Render("+/-") + footerDescStyle.Render(" Speed"),
		footerKeyStyle.Render("q") + footerDescStyle.Render(" Quit"),
	}
	return strings.Join(parts, "  ")
}
