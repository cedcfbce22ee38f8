package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/rfxcom/internal/capture"
)

// DefaultMonitorRows is how many frames the monitor keeps on screen
const DefaultMonitorRows = 500

// FrameEvent is one frame fed to the monitor
type FrameEvent struct {
	Time      time.Time
	Direction capture.Direction
	Raw       []byte
}

// SourceClosedMsg ends the stream. Err is nil on a clean end of input.
type SourceClosedMsg struct {
	Err error
}

// monitorKeyMap defines key bindings for the monitor screen
type monitorKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Pause  key.Binding
	Follow key.Binding
	Clear  key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Pause, k.Follow, k.Clear, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Follow},
		{k.Pause, k.Clear, k.Quit},
	}
}

// MonitorModel shows frames from a live gateway or a capture file in a
// scrolling table.
type MonitorModel struct {
	Title string

	source  <-chan FrameEvent
	table   table.Model
	spinner spinner.Model
	help    help.Model
	keys    monitorKeyMap

	rows     []table.Row
	maxRows  int
	frames   int
	failures int
	paused   bool
	follow   bool
	closed   bool
	err      error

	width  int
	height int
}

var monitorColumns = []table.Column{
	{Title: "Time", Width: 12},
	{Title: "", Width: 1},
	{Title: "Packet type", Width: 20},
	{Title: "Sub type", Width: 14},
	{Title: "Device", Width: 12},
	{Title: "States", Width: 36},
}

// NewMonitorModel creates a monitor reading from source until it is closed
func NewMonitorModel(title string, source <-chan FrameEvent) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	t := table.New(
		table.WithColumns(monitorColumns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(PrimaryColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(TextColor).
		Background(PrimaryColor)
	t.SetStyles(styles)

	return MonitorModel{
		Title:   title,
		source:  source,
		table:   t,
		spinner: s,
		help:    help.New(),
		keys: monitorKeyMap{
			Up: key.NewBinding(
				key.WithKeys("up", "k"),
				key.WithHelp("↑/k", "up"),
			),
			Down: key.NewBinding(
				key.WithKeys("down", "j"),
				key.WithHelp("↓/j", "down"),
			),
			Pause: key.NewBinding(
				key.WithKeys("p", " "),
				key.WithHelp("p", "pause"),
			),
			Follow: key.NewBinding(
				key.WithKeys("f", "end"),
				key.WithHelp("f", "follow"),
			),
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "clear"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "ctrl+c", "esc"),
				key.WithHelp("q", "quit"),
			),
		},
		maxRows: DefaultMonitorRows,
		follow:  true,
	}
}

// Init starts the spinner and the first read from the source
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForFrame(m.source))
}

// waitForFrame reads the next event from the source
func waitForFrame(source <-chan FrameEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-source
		if !ok {
			return SourceClosedMsg{}
		}
		return ev
	}
}

// Update handles key presses, window resizes and incoming frames
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		// Title, status bar and help take four lines
		if h := msg.Height - 6; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			return m, nil
		case key.Matches(msg, m.keys.Follow):
			m.follow = true
			m.table.GotoBottom()
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.rows = nil
			m.table.SetRows(nil)
			return m, nil
		case key.Matches(msg, m.keys.Up):
			m.follow = false
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case FrameEvent:
		m.addFrame(msg)
		return m, waitForFrame(m.source)

	case SourceClosedMsg:
		m.closed = true
		m.err = msg.Err
		return m, nil

	case spinner.TickMsg:
		if m.closed {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// addFrame counts the frame and, unless paused, appends its row
func (m *MonitorModel) addFrame(ev FrameEvent) {
	m.frames++
	summary := SummarizeFrame(ev.Raw)
	if summary.Err != nil {
		m.failures++
	}
	if m.paused {
		return
	}

	m.rows = append(m.rows, frameRow(ev, summary))
	if len(m.rows) > m.maxRows {
		m.rows = m.rows[len(m.rows)-m.maxRows:]
	}
	m.table.SetRows(m.rows)
	if m.follow {
		m.table.GotoBottom()
	}
}

func frameRow(ev FrameEvent, s FrameSummary) table.Row {
	marker := directionMarker(ev.Direction)
	pt := s.PacketType
	if pt == "" {
		pt = "?"
	}
	return table.Row{
		ev.Time.Format("15:04:05.000"),
		marker,
		pt,
		s.SubType,
		s.Device,
		s.StatesLine(),
	}
}

// Frames returns how many frames arrived, including paused ones
func (m MonitorModel) Frames() int { return m.frames }

// Failures returns how many frames failed to decode
func (m MonitorModel) Failures() int { return m.failures }

// Rows returns the rows currently held
func (m MonitorModel) Rows() []table.Row { return m.rows }

// Err returns the error that ended the source, if any
func (m MonitorModel) Err() error { return m.err }

// View renders the monitor screen
func (m MonitorModel) View() string {
	var b strings.Builder

	b.WriteString(HeaderTitleStyle.Render(m.Title))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	var status string
	switch {
	case m.err != nil:
		status = ErrorMessageStyle.Render(fmt.Sprintf("%s source failed: %v", FailureMarker, m.err))
	case m.closed:
		status = fmt.Sprintf("%s end of input", SuccessMarker)
	case m.paused:
		status = lipgloss.NewStyle().Foreground(WarningColor).Render("paused")
	default:
		status = m.spinner.View() + " listening"
	}
	b.WriteString(StatusBarStyle.Render(fmt.Sprintf("%s  frames: %d  decode failures: %d", status, m.frames, m.failures)))
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}
