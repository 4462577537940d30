// Package tui is the bubbletea front end: a scrolling transcript, a
// prompt line, and a spinner while the engine works. The driving
// goroutine owns the engine; it receives submitted lines over a channel
// and pushes rendering back in through program.Send.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	stageStyle    = lipgloss.NewStyle().Faint(true)
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	thinkingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
)

// TUI forwards engine activity into a running program. It satisfies
// ui.UI, so the REPL driver renders the same way in both modes.
type TUI struct {
	program *tea.Program
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(stage string) {
	t.program.Send(StatusMsg(stage))
}

func (t *TUI) Segment(kind, text string) {
	t.program.Send(SegmentMsg{Kind: kind, Text: text})
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

func (t *TUI) Done() {
	t.program.Send(DoneMsg{})
}

// Err renders a failure line in red.
func (t *TUI) Err(msg string) {
	t.program.Send(ErrMsg(msg))
}

type (
	// SegmentMsg is one streamed chunk; Kind is "thinking" or "answer".
	SegmentMsg struct{ Kind, Text string }
	StatusMsg  string
	LogMsg     string
	ErrMsg     string
	// DoneMsg ends the in-flight request and re-arms the input.
	DoneMsg struct{}
)

type Model struct {
	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	submit   chan<- string

	transcript []string
	current    string // in-flight streamed output
	status     string
	busy       bool
	ready      bool
	quitting   bool
	width      int
	height     int
}

// NewModel builds the chat model. Submitted lines go out on submit; the
// reader must keep draining it until the program exits.
func NewModel(submit chan<- string) Model {
	ti := textinput.New()
	ti.Placeholder = "query, /search, /research, /thinking on|off, /web on|off, exit"
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = promptStyle

	return Model{input: ti, spin: sp, submit: submit, status: "idle"}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.busy {
				return m.handleSubmit()
			}
		}
		if !m.busy {
			m.input, tiCmd = m.input.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-3)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 3
		}
		m.input.Width = msg.Width - 4
		m.refresh()

	case spinner.TickMsg:
		if m.busy {
			m.spin, spCmd = m.spin.Update(msg)
			return m, spCmd
		}

	case StatusMsg:
		m.status = string(msg)

	case SegmentMsg:
		text := msg.Text
		if msg.Kind == "thinking" {
			text = thinkingStyle.Render(text)
		}
		m.current += text
		m.refresh()

	case LogMsg:
		m.flush()
		m.transcript = append(m.transcript, noticeStyle.Render(string(msg)))
		m.refresh()

	case ErrMsg:
		m.flush()
		m.transcript = append(m.transcript, errorStyle.Render(string(msg)))
		m.refresh()

	case DoneMsg:
		m.flush()
		m.busy = false
		m.status = "idle"
		m.refresh()
		return m, textinput.Blink
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	if line == "" {
		return m, nil
	}
	if line == "exit" || line == "quit" {
		m.quitting = true
		return m, tea.Quit
	}

	m.input.SetValue("")
	m.flush()
	m.transcript = append(m.transcript, promptStyle.Render("> ")+line)
	m.busy = true
	m.status = "working"
	m.refresh()

	submit := m.submit
	return m, tea.Batch(m.spin.Tick, func() tea.Msg {
		submit <- line
		return nil
	})
}

// flush moves the in-flight stream into the transcript.
func (m *Model) flush() {
	if m.current != "" {
		m.transcript = append(m.transcript, strings.TrimSuffix(m.current, "\n"))
		m.current = ""
	}
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	content := strings.Join(m.transcript, "\n")
	if m.current != "" {
		if content != "" {
			content += "\n"
		}
		content += m.current
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "\n  starting..."
	}

	header := titleStyle.Render(" ace ") + " " + stageStyle.Render(m.status)
	if m.busy {
		header += " " + m.spin.View()
	}

	bottom := m.input.View()
	if m.busy {
		bottom = stageStyle.Render("(working)")
	}

	view := header + "\n" + m.viewport.View() + "\n" + bottom
	if m.quitting {
		return view + "\n"
	}
	return view
}
