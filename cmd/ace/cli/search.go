package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search context, web, and plugin sources",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Search never touches the model, so a dead backend is no
		// reason to refuse.
		s := openSession(false, false)
		defer s.Close()

		results, err := s.engine.Search(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
			os.Exit(1)
		}
		if len(results) == 0 {
			fmt.Println("no results")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tSCORE\tCONTENT")
		for _, r := range results {
			content := oneLine(r.Content, 80)
			if r.URL != "" {
				content += " <" + r.URL + ">"
			}
			fmt.Fprintf(w, "%s\t%.2f\t%s\n", r.Source, r.Score, content)
		}
		w.Flush()
	},
}

var researchCmd = &cobra.Command{
	Use:   "research [topic]",
	Short: "Multi-stage research with a synthesized report",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(true, false)
		defer s.Close()

		report, err := s.engine.Research(context.Background(), args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "research failed: %v\n", err)
			if report == nil {
				os.Exit(1)
			}
		}
		fmt.Print(renderMarkdown(report.Markdown()))
		if err != nil {
			os.Exit(1)
		}
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Store totals and switch positions",
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(false, false)
		defer s.Close()

		fmt.Println(formatStats(s.engine.Stats()))
	},
}

// renderMarkdown pretty-prints through glamour on a terminal and falls
// back to raw markdown in a pipe.
func renderMarkdown(md string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return md
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
