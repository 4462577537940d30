package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ace/internal/ui"
)

var (
	configPath   string
	dbPath       string
	providerFlag string
	modelFlag    string
	logLevel     string
	noWeb        bool
	noThinking   bool
	useTUI       bool
)

// RootCmd represents the base command; without a subcommand it starts
// the REPL.
var RootCmd = &cobra.Command{
	Use:   "ace",
	Short: "Self-improving context engine",
	Long: `ace grows a playbook of reusable strategies from the tasks it runs.
Every query executes a generate, reflect, curate cycle against a bullet
store: strategies that helped are voted up, ones that misled are voted
down and eventually pruned.`,
	Run: func(cmd *cobra.Command, args []string) {
		runREPL()
	},
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session (the default)",
	Run: func(cmd *cobra.Command, args []string) {
		runREPL()
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Run one cycle and stream the answer",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openSession(true, false)
		defer s.Close()

		u := ui.NewConsoleUI(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
		wireUI(s.engine, u)

		_, err := s.engine.RunCycle(context.Background(), args[0])
		u.Done()
		if err != nil {
			fmt.Fprintf(os.Stderr, "ask failed: %v\n", err)
			os.Exit(1)
		}
	},
}

// Execute runs the CLI. Runtime failures exit 1 inside the commands;
// a parse or usage error lands here and exits 2.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func init() {
	RootCmd.AddCommand(replCmd)
	RootCmd.AddCommand(askCmd)
	RootCmd.AddCommand(searchCmd)
	RootCmd.AddCommand(researchCmd)
	RootCmd.AddCommand(statsCmd)
	RootCmd.AddCommand(demoCmd)

	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.ace/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file (default ~/.ace/ace.db)")
	RootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "Provider backend (ollama, openai, anthropic, gemini, stub)")
	RootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model name (default depends on provider)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().BoolVar(&noWeb, "no-web", false, "Disable the web search source")
	RootCmd.PersistentFlags().BoolVar(&noThinking, "no-thinking", false, "Disable thinking segments")

	RootCmd.Flags().BoolVar(&useTUI, "tui", false, "Full-screen interface")
	replCmd.Flags().BoolVar(&useTUI, "tui", false, "Full-screen interface")
}

