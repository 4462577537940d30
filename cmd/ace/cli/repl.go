package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/ace/internal/runtime"
	"github.com/felixgeelhaar/ace/internal/search"
	"github.com/felixgeelhaar/ace/internal/ui"
	"github.com/felixgeelhaar/ace/internal/ui/tui"
)

const helpText = `commands:
  /think <query>      one cycle with thinking forced on
  /search <query>     merged context, web, and plugin search
  /research <topic>   multi-stage research with synthesis
  /thinking on|off    toggle thinking segments
  /web on|off         toggle the web search source
  stats               store totals and session counters
  help                this text
  exit                leave
anything else runs one adaptation cycle`

func runREPL() {
	s := openSession(false, true)
	defer s.Close()

	if useTUI {
		runTUI(s)
		return
	}
	runPlain(s)
}

func runPlain(s *session) {
	u := ui.NewConsoleUI(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
	wireUI(s.engine, u)

	fmt.Println("ace - type a query, 'help' for commands, 'exit' to leave")
	in := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !in.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		dispatch(s.engine, u, line)
	}
}

func runTUI(s *session) {
	input := make(chan string, 1)
	program := tea.NewProgram(tui.NewModel(input))
	u := tui.NewTUI(program)
	wireUI(s.engine, u)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range input {
			dispatch(s.engine, u, line)
		}
	}()

	_, err := program.Run()
	close(input)
	<-done
	if err != nil {
		fmt.Fprintf(os.Stderr, "interface error: %v\n", err)
		os.Exit(1)
	}
}

// wireUI feeds engine events into a front end. Errors are not wired;
// each dispatch reports its own failures.
func wireUI(e *runtime.Engine, u ui.UI) {
	bus := e.Bus()
	bus.Subscribe(runtime.EventStageChange, func(ev runtime.Event) {
		stage, _ := ev.Data["stage"].(string)
		if stage != "" && stage != "idle" && stage != "applied" {
			u.UpdateStatus(stage)
		}
	})
	bus.Subscribe(runtime.EventSegment, func(ev runtime.Event) {
		kind, _ := ev.Data["kind"].(string)
		text, _ := ev.Data["text"].(string)
		u.Segment(kind, text)
	})
	bus.Subscribe(runtime.EventDeltaApplied, func(ev runtime.Event) {
		u.Log(fmt.Sprintf("context: +%v bullets, %v votes, -%v removed (v%v)",
			ev.Data["added"], ev.Data["updated"], ev.Data["removed"], ev.Data["version"]))
	})
	bus.Subscribe(runtime.EventPruned, func(ev runtime.Event) {
		u.Log(fmt.Sprintf("pruned %v stale bullets", ev.Data["count"]))
	})
	bus.Subscribe(runtime.EventResearchStage, func(ev runtime.Event) {
		stage, _ := ev.Data["stage"].(string)
		u.UpdateStatus("research: " + stage)
	})
}

// fail reports a failure line, red when the front end can render it.
func fail(u ui.UI, msg string) {
	if r, ok := u.(interface{ Err(string) }); ok {
		r.Err(msg)
		return
	}
	u.Log(msg)
}

func dispatch(e *runtime.Engine, u ui.UI, line string) {
	ctx := context.Background()
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help":
		u.Log(helpText)

	case "stats":
		u.Log(formatStats(e.Stats()))

	case "/think":
		if rest == "" {
			u.Log("usage: /think <query>")
			break
		}
		thinkCycle(e, u, rest)

	case "/search":
		if rest == "" {
			u.Log("usage: /search <query>")
			break
		}
		results, err := e.Search(ctx, rest)
		if err != nil {
			fail(u, "search failed: "+err.Error())
			break
		}
		u.Log(formatResults(results))

	case "/research":
		if rest == "" {
			u.Log("usage: /research <topic>")
			break
		}
		report, err := e.Research(ctx, rest)
		if err != nil {
			fail(u, "research failed: "+err.Error())
		}
		if report != nil {
			u.Log(report.Markdown())
		}

	case "/thinking", "/web":
		setToggle(e, u, strings.TrimPrefix(cmd, "/"), rest)

	default:
		cycle(e, u, line)
	}
	u.Done()
}

func cycle(e *runtime.Engine, u ui.UI, query string) {
	if _, err := e.RunCycle(context.Background(), query); err != nil {
		fail(u, "cycle failed: "+err.Error())
	}
}

// thinkCycle forces thinking on for one cycle, then puts the switch
// back.
func thinkCycle(e *runtime.Engine, u ui.UI, query string) {
	restore := !e.Stats().ThinkingEnabled
	if restore {
		e.Toggle("thinking", true)
	}
	cycle(e, u, query)
	if restore {
		e.Toggle("thinking", false)
	}
}

func setToggle(e *runtime.Engine, u ui.UI, name, value string) {
	if value != "on" && value != "off" {
		u.Log("usage: /" + name + " on|off")
		return
	}
	if err := e.Toggle(name, value == "on"); err != nil {
		u.Log(err.Error())
		return
	}
	u.Log(name + " " + value)
}

func formatStats(st runtime.Stats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bullets: %d (%d helpful), version %d\n", st.TotalBullets, st.HelpfulBullets, st.Version)
	fmt.Fprintf(&sb, "avg helpfulness: %.2f\n", st.AvgHelpfulness)
	fmt.Fprintf(&sb, "cycles recorded: %d\n", st.Cycles)
	fmt.Fprintf(&sb, "web: %s, thinking: %s", onOff(st.WebEnabled), onOff(st.ThinkingEnabled))
	return sb.String()
}

func formatResults(results []search.Result) string {
	if len(results) == 0 {
		return "no results"
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%2d. [%s] %.2f %s", i+1, r.Source, r.Score, oneLine(r.Content, 100))
		if r.URL != "" {
			fmt.Fprintf(&sb, " <%s>", r.URL)
		}
		if i < len(results)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func oneLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
