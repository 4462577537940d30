package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	thinkingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	stageStyle    = lipgloss.NewStyle().Faint(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
)

// ConsoleUI streams to a writer. Thinking segments render faint italic
// so they read apart from the answer; pass color=false when the writer
// is a pipe.
type ConsoleUI struct {
	mu      sync.Mutex
	w       io.Writer
	color   bool
	midLine bool
}

func NewConsoleUI(w io.Writer, color bool) *ConsoleUI {
	return &ConsoleUI{w: w, color: color}
}

func (c *ConsoleUI) UpdateStatus(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakLine()
	fmt.Fprintln(c.w, c.render(stageStyle, "· "+stage))
}

func (c *ConsoleUI) Segment(kind, text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	nl := strings.HasSuffix(text, "\n")
	if kind == "thinking" && c.color {
		text = thinkingStyle.Render(strings.TrimSuffix(text, "\n"))
		if nl {
			text += "\n"
		}
	}
	fmt.Fprint(c.w, text)
	c.midLine = !nl
}

func (c *ConsoleUI) Log(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakLine()
	fmt.Fprintln(c.w, c.render(noticeStyle, msg))
}

// Done closes any half-written stream line.
func (c *ConsoleUI) Done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.breakLine()
}

func (c *ConsoleUI) breakLine() {
	if c.midLine {
		fmt.Fprintln(c.w)
		c.midLine = false
	}
}

func (c *ConsoleUI) render(style lipgloss.Style, s string) string {
	if !c.color {
		return s
	}
	return style.Render(s)
}
