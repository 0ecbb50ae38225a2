// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Polls the session for status and maps keys to playback controls
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Sendspin/varispeed-go/internal/app"
	"github.com/Sendspin/varispeed-go/internal/version"
)

const (
	refreshInterval = 100 * time.Millisecond
	seekStep        = 5 * time.Second
	volumeStep      = 5
	defaultWidth    = 60
)

// Controller is the playback surface the TUI drives
type Controller interface {
	Status() app.Status
	TogglePause() bool
	Seek(deltaUs int64) error
	AdjustSpeed(steps int) float64
	SetSpeed(speed float64) float64
	AdjustPitch(semitones int) float64
	AdjustRate(steps int) float64
	ResetParameters()
	AdjustVolume(delta int)
	ToggleMute()
}

type tickMsg time.Time

// Model represents the TUI state
type Model struct {
	ctrl     Controller
	keys     KeyMap
	progress progress.Model
	help     help.Model

	status    app.Status
	message   string
	showDebug bool
	quitting  bool

	width  int
	height int
}

// NewModel creates a model driving ctrl
func NewModel(ctrl Controller) Model {
	h := help.New()
	h.Styles.ShortKey = keyStyle
	h.Styles.FullKey = keyStyle

	return Model{
		ctrl: ctrl,
		keys: DefaultKeyMap(),
		progress: progress.New(
			progress.WithoutPercentage(),
			progress.WithDefaultGradient(),
		),
		help:  h,
		width: defaultWidth,
	}
}

// Run creates the TUI program for ctrl
func Run(ctrl Controller) *tea.Program {
	return tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
}

// Init starts the status refresh
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.status = m.ctrl.Status()
		if m.status.Finished {
			m.quitting = true
			return m, tea.Quit
		}
		return m, tickEvery()
	}
	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.PlayPause):
		if m.ctrl.TogglePause() {
			m.message = "Paused"
		}
	case key.Matches(msg, m.keys.SeekForward):
		m.seek(seekStep)
	case key.Matches(msg, m.keys.SeekBackward):
		m.seek(-seekStep)
	case key.Matches(msg, m.keys.SpeedUp):
		m.message = fmt.Sprintf("Speed %.2fx", m.ctrl.AdjustSpeed(1))
	case key.Matches(msg, m.keys.SpeedDown):
		m.message = fmt.Sprintf("Speed %.2fx", m.ctrl.AdjustSpeed(-1))
	case key.Matches(msg, m.keys.Preset):
		n := int(msg.String()[0] - '1')
		if n >= 0 && n < len(app.SpeedPresets) {
			m.message = fmt.Sprintf("Speed %.2fx", m.ctrl.SetSpeed(app.SpeedPresets[n]))
		}
	case key.Matches(msg, m.keys.PitchUp):
		m.message = fmt.Sprintf("Pitch %.3f", m.ctrl.AdjustPitch(1))
	case key.Matches(msg, m.keys.PitchDown):
		m.message = fmt.Sprintf("Pitch %.3f", m.ctrl.AdjustPitch(-1))
	case key.Matches(msg, m.keys.RateUp):
		m.message = fmt.Sprintf("Rate %.2fx", m.ctrl.AdjustRate(1))
	case key.Matches(msg, m.keys.RateDown):
		m.message = fmt.Sprintf("Rate %.2fx", m.ctrl.AdjustRate(-1))
	case key.Matches(msg, m.keys.Reset):
		m.ctrl.ResetParameters()
		m.message = "Normal speed and pitch"
	case key.Matches(msg, m.keys.VolumeUp):
		m.ctrl.AdjustVolume(volumeStep)
	case key.Matches(msg, m.keys.VolumeDown):
		m.ctrl.AdjustVolume(-volumeStep)
	case key.Matches(msg, m.keys.Mute):
		m.ctrl.ToggleMute()
	case key.Matches(msg, m.keys.Debug):
		m.showDebug = !m.showDebug
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	m.status = m.ctrl.Status()
	return m, nil
}

func (m *Model) seek(d time.Duration) {
	if err := m.ctrl.Seek(d.Microseconds()); err != nil {
		m.message = err.Error()
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	inner := max(m.width-4, 20)
	st := m.status

	var b strings.Builder
	b.WriteString(titleStyle.Render(version.Product + " " + version.Version))
	b.WriteString("\n")

	name := st.Name
	if name == "" {
		name = "(no file)"
	}
	b.WriteString(valueStyle.Render(runewidth.Truncate(name, inner, "…")))
	b.WriteString("\n")
	if st.Format.SampleRate > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%dHz %s %d-bit", st.Format.SampleRate, channelName(st.Format.Channels), st.Format.BitDepth)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.renderProgress(inner))
	b.WriteString("\n\n")

	b.WriteString(row("Speed", fmt.Sprintf("%.2fx", st.Speed)))
	b.WriteString(row("Pitch", fmt.Sprintf("%.3f", st.Pitch)))
	b.WriteString(row("Rate", fmt.Sprintf("%.2fx", st.Rate)))
	b.WriteString(row("Volume", volumeText(st.Volume, st.Muted)))

	state := "Playing"
	if st.Paused {
		state = "Paused"
	}
	b.WriteString(row("State", state))

	if st.Err != nil {
		b.WriteString(warnStyle.Render(runewidth.Truncate(st.Err.Error(), inner, "…")))
		b.WriteString("\n")
	}

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	if m.message != "" {
		b.WriteString(m.message)
		b.WriteString("\n")
	}
	m.help.Width = inner
	b.WriteString(m.help.View(m.keys))

	return frameStyle.Width(inner + 2).Render(b.String())
}

func (m Model) renderProgress(width int) string {
	elapsed := time.Duration(m.status.PositionUs) * time.Microsecond
	total := time.Duration(m.status.DurationUs) * time.Microsecond

	var percent float64
	if total > 0 {
		percent = min(max(float64(elapsed)/float64(total), 0), 1)
	}

	left := formatDuration(elapsed)
	right := "--:--"
	if total > 0 {
		right = formatDuration(total)
	}

	m.progress.Width = max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 5)
	return left + " " + m.progress.ViewAs(percent) + " " + right
}

func (m Model) renderDebug() string {
	st := m.status
	lines := []string{
		fmt.Sprintf("Session:  %s", st.ID),
		fmt.Sprintf("Stage:    processed=%d dup=%d dropped=%d faults=%d epochs=%d",
			st.Stage.Processed, st.Stage.Duplicates, st.Stage.Dropped, st.Stage.Faults, st.Stage.Epochs),
		fmt.Sprintf("Player:   decoded=%d consumed=%d retries=%d",
			st.Player.Decoded, st.Player.Consumed, st.Player.Retries),
		fmt.Sprintf("Output:   latency=%s underruns=%d", st.Latency.Round(time.Millisecond), st.Underruns),
	}
	return dimStyle.Render(strings.Join(lines, "\n")) + "\n"
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func volumeText(volume int, muted bool) string {
	if muted {
		return "muted"
	}
	return fmt.Sprintf("%s %d%%", renderBar(volume, 100, 10), volume)
}

func renderBar(value, maxValue, width int) string {
	filled := max(0, min(value*width/maxValue, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatDuration(d time.Duration) string {
	d = max(d, 0).Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}
