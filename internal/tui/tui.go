// Package tui provides a Bubble Tea terminal user interface for the download queue.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/dlqueue/internal/config"
	"github.com/handiism/dlqueue/internal/download"
	"github.com/handiism/dlqueue/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8B500"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)
)

const maxLogs = 8

// Focus is the part of the screen receiving keys.
type Focus int

const (
	FocusInput Focus = iota
	FocusQueue
)

// Submitter queues URLs; *playlist.Queue satisfies it.
type Submitter interface {
	Submit(ctx context.Context, urls []string, opts model.Options) ([]download.Result, error)
}

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	focus     Focus
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry

	manager     *download.Manager
	submitter   Submitter
	events      <-chan download.Event
	unsubscribe func()

	ctx    context.Context
	cancel context.CancelFunc

	jobs   []model.Job
	counts download.Counts
	cursor int

	// Options applied to the next submission
	audioOnly bool
	verify    bool
	playlist  bool
	verbose   bool

	width  int
	height int
}

// NewModel creates a TUI model driving manager. It subscribes to the
// manager's events right away.
func NewModel(manager *download.Manager, submitter Submitter, settings *config.Settings) Model {
	ti := textinput.New()
	ti.Placeholder = "https://www.youtube.com/watch?v=... (space separated)"
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 40

	events, unsubscribe := manager.Events()
	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		focus:       FocusInput,
		textInput:   ti,
		spinner:     sp,
		progress:    prog,
		settings:    settings,
		manager:     manager,
		submitter:   submitter,
		events:      events,
		unsubscribe: unsubscribe,
		ctx:         ctx,
		cancel:      cancel,
		audioOnly:   settings.AudioOnly,
		verify:      settings.Verify,
		playlist:    settings.Playlist,
		counts:      manager.Counts(),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

// Message types
type (
	// EventMsg carries one event from the manager's bus.
	EventMsg struct {
		Event download.Event
	}

	// EventsClosedMsg is sent when the bus has closed.
	EventsClosedMsg struct{}

	// SubmitDoneMsg reports the outcome of a submission.
	SubmitDoneMsg struct {
		Results []download.Result
		Err     error
	}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-40, 20), 60)
		m.textInput.Width = min(max(msg.Width-6, 20), 100)
		return m, nil

	case tea.KeyMsg:
		if quit := m.handleKey(msg, &cmds); quit {
			return m, tea.Quit
		}
		if m.focus != FocusInput {
			return m, tea.Batch(cmds...)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case EventMsg:
		m.refresh()
		ev := download.Describe(msg.Event)
		if msg.Event.Kind != download.ProgressUpdated {
			m.addLog(ev)
		}
		cmds = append(cmds, m.waitForEvent())

	case EventsClosedMsg:
		m.events = nil

	case SubmitDoneMsg:
		for _, r := range msg.Results {
			if !r.Accepted {
				m.addLog(download.ProgressEvent{Message: fmt.Sprintf("Rejected %s: %v", r.URL, r.Err), Level: download.LevelError})
			}
		}
		if msg.Err != nil {
			m.addLog(download.ProgressEvent{Message: msg.Err.Error(), Level: download.LevelWarning})
		}
		m.refresh()
	}

	if m.focus == FocusInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// handleKey applies a key press and reports whether the program should quit.
func (m *Model) handleKey(msg tea.KeyMsg, cmds *[]tea.Cmd) bool {
	switch msg.String() {
	case "ctrl+c":
		m.close()
		return true
	case "tab":
		m.toggleFocus()
		return false
	}

	if m.focus == FocusInput {
		switch msg.String() {
		case "esc":
			m.toggleFocus()
		case "enter":
			if urls := splitURLs(m.textInput.Value()); len(urls) > 0 {
				*cmds = append(*cmds, m.submit(urls))
				m.textInput.SetValue("")
			}
		}
		return false
	}

	job, hasJob := m.selected()
	switch msg.String() {
	case "q", "esc":
		m.close()
		return true
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
	case "p":
		if hasJob {
			m.manager.Pause(job.ID)
		}
	case "r":
		if hasJob {
			m.manager.Resume(job.ID)
		}
	case "x":
		if hasJob {
			m.manager.Cancel(job.ID)
		}
	case "c":
		if hasJob && job.Status.IsTerminal() {
			m.manager.Archive(job.ID)
		}
	case "+", "=":
		m.manager.SetConcurrency(m.manager.Concurrency() + 1)
	case "-":
		if n := m.manager.Concurrency(); n > 1 {
			m.manager.SetConcurrency(n - 1)
		}
	case "a":
		m.audioOnly = !m.audioOnly
	case "v":
		m.verify = !m.verify
	case "l":
		m.playlist = !m.playlist
	case "d":
		m.verbose = !m.verbose
	}
	m.refresh()
	return false
}

func (m *Model) toggleFocus() {
	if m.focus == FocusInput {
		m.focus = FocusQueue
		m.textInput.Blur()
	} else {
		m.focus = FocusInput
		m.textInput.Focus()
	}
}

func (m *Model) close() {
	m.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m *Model) refresh() {
	m.jobs = m.manager.Jobs()
	m.counts = m.manager.Counts()
	if m.cursor >= len(m.jobs) {
		m.cursor = max(len(m.jobs)-1, 0)
	}
}

func (m Model) selected() (model.Job, bool) {
	if m.cursor < 0 || m.cursor >= len(m.jobs) {
		return model.Job{}, false
	}
	return m.jobs[m.cursor], true
}

func (m *Model) addLog(ev download.ProgressEvent) {
	if ev.Level == download.LevelVerbose && !m.verbose {
		return
	}
	m.logs = append(m.logs, LogEntry{Message: ev.Message, Level: ev.Level})
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// options returns the settings snapshot with the UI toggles applied.
func (m Model) options() model.Options {
	opts := m.settings.ToOptions()
	opts.AudioOnly = m.audioOnly
	opts.Verify = m.verify
	opts.Playlist = m.playlist
	return opts
}

func (m Model) submit(urls []string) tea.Cmd {
	ctx, submitter, opts := m.ctx, m.submitter, m.options()
	return func() tea.Msg {
		results, err := submitter.Submit(ctx, urls, opts)
		return SubmitDoneMsg{Results: results, Err: err}
	}
}

// waitForEvent returns a command that delivers the next bus event.
func (m Model) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("dlqueue"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadsPath)))
	b.WriteString("\n\n")

	b.WriteString(m.viewInput())
	b.WriteString("\n")
	b.WriteString(m.viewQueue())
	b.WriteString("\n")
	b.WriteString(m.viewSelected())
	b.WriteString(m.renderLogs())

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	label := "Enter URLs:"
	if m.focus != FocusInput {
		label = "Enter URLs (tab to edit):"
	}
	b.WriteString(subtitleStyle.Render(label))
	b.WriteString("\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString(fmt.Sprintf("  %s audio only (a)  %s verify (v)  %s playlist (l)  %s verbose (d)\n",
		check(m.audioOnly), check(m.verify), check(m.playlist), check(m.verbose)))

	return b.String()
}

func (m Model) viewQueue() string {
	var b strings.Builder

	header := fmt.Sprintf("Queue: %d waiting, %d active, %d paused, %d finished | concurrency %d",
		m.counts.Queued, m.counts.Active, m.counts.Paused, m.counts.Finished, m.counts.Concurrency)
	if m.counts.Active > 0 {
		header = m.spinner.View() + " " + header
	}
	b.WriteString(subtitleStyle.Render(header))
	b.WriteString("\n")

	if len(m.jobs) == 0 {
		b.WriteString(dimStyle.Render("  (no downloads)"))
		b.WriteString("\n")
		return b.String()
	}

	for i, job := range m.jobs {
		line := fmt.Sprintf("%-11s %5.1f%%  %-40s %s",
			job.Status, job.Progress, truncate(job.Title(), 40), jobDetail(job))
		prefix := "  "
		style := statusStyle(job.Status)
		if i == m.cursor && m.focus == FocusQueue {
			prefix = "> "
			style = selectedStyle
		}
		b.WriteString(style.Render(prefix + line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewSelected() string {
	job, ok := m.selected()
	if !ok || m.focus != FocusQueue {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.progress.ViewAs(job.Progress / 100))
	b.WriteString("\n")
	details := []string{job.ID}
	if job.Metadata != nil {
		details = append(details, fmt.Sprintf("%s | %s", job.Metadata.Uploader, model.FormatDuration(time.Duration(job.Metadata.Duration*float64(time.Second)))))
	}
	if job.FilePath != "" {
		details = append(details, job.FilePath)
	}
	if job.Err != nil && job.Status == model.StatusError {
		details = append(details, errorStyle.Render(job.Err.Error()))
	}
	b.WriteString(boxStyle.Render(strings.Join(details, "\n")))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	if m.focus == FocusInput {
		return "enter: queue URLs • tab/esc: queue view • ctrl+c: quit"
	}
	return "↑/↓: select • p: pause • r: resume • x: cancel • c: clear • +/-: concurrency • a/v/l/d: toggles • tab: input • q: quit"
}

func jobDetail(job model.Job) string {
	switch job.Status {
	case model.StatusDownloading:
		return fmt.Sprintf("%s  ETA %s", model.FormatSpeed(job.Speed), model.FormatDuration(job.ETA))
	case model.StatusCompleted:
		return model.FormatSize(job.TotalBytes)
	case model.StatusError:
		if kind, ok := model.KindOf(job.Err); ok {
			return model.Message(kind)
		}
		return job.ErrorMessage()
	}
	return ""
}

func statusStyle(s model.Status) lipgloss.Style {
	switch s {
	case model.StatusCompleted:
		return successStyle
	case model.StatusError:
		return errorStyle
	case model.StatusPaused:
		return warningStyle
	case model.StatusDownloading:
		return infoStyle
	default:
		return dimStyle
	}
}

func check(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func splitURLs(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\n' || r == '\t'
	})
}

// Run starts the TUI application and returns when the user quits.
func Run(manager *download.Manager, submitter Submitter, settings *config.Settings) error {
	p := tea.NewProgram(NewModel(manager, submitter, settings), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
