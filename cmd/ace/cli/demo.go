package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/ace/internal/config"
	"github.com/felixgeelhaar/ace/internal/observe"
	"github.com/felixgeelhaar/ace/internal/pipeline"
	"github.com/felixgeelhaar/ace/internal/provider"
	"github.com/felixgeelhaar/ace/internal/runtime"
	"github.com/felixgeelhaar/ace/internal/store"
	"github.com/felixgeelhaar/ace/internal/ui"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Offline showcase on the stub provider",
	Long: `Runs three scripted adaptation cycles and a search against an
in-memory store. No model backend, network, or database is touched.`,
	Run: func(cmd *cobra.Command, args []string) {
		runDemo()
	},
}

var demoQueries = []string{
	"How should I handle flaky integration tests?",
	"Our nightly batch importer got slow, where do I start?",
	"How do I roll out a schema change without downtime?",
}

// demoScript alternates generation and reflection replies, one pair per
// query above.
var demoScript = []string{
	"<think>Flaky usually means shared state or timing, not logic.</think>" +
		"Treat flakes as a quarantine problem. Move the failing tests behind a retry budget, " +
		"tag them, and make the tag expire: each quarantined test gets one sprint to be fixed or deleted.\n" +
		"STEPS: [identify shared state; quarantine with expiring tag; fix or delete within a sprint]\n" +
		"OUTCOME: quarantine workflow proposed\n" +
		"SUCCESS: true",
	"HELPFUL: []\n" +
		"HARMFUL: []\n" +
		"OBSOLETE: []\n" +
		"INSIGHT: [Content: Quarantine flaky tests behind an expiring tag, fix or delete within one sprint; Type: strategy; Confidence: 0.9]",

	"<think>Slow batch jobs are nearly always one hot query or N+1 writes.</think>" +
		"Measure before touching code. Wrap the run in timing per stage, then EXPLAIN the slowest " +
		"query; in imports the usual culprits are per-row INSERTs and a missing index on the join key.\n" +
		"STEPS: [time each stage; EXPLAIN the slowest query; batch the writes]\n" +
		"OUTCOME: profiling plan produced\n" +
		"SUCCESS: true",
	"HELPFUL: []\n" +
		"HARMFUL: []\n" +
		"OBSOLETE: []\n" +
		"INSIGHT: [Content: Profile per stage before optimizing, one EXPLAIN usually finds the hot query; Type: strategy; Confidence: 0.85]\n" +
		"INSIGHT: [Content: Batch importer row-by-row INSERTs are the default suspect, write in transactions; Type: domain_knowledge; Confidence: 0.8]",

	"<think>Expand-migrate-contract is the standard answer here.</think>" +
		"Ship it in three deploys. First expand: add the new column or table, nullable, unused. " +
		"Then migrate: backfill and dual-write behind a flag. Last contract: switch readers and drop the old shape.\n" +
		"STEPS: [expand schema additively; backfill and dual-write; contract after readers switch]\n" +
		"OUTCOME: zero-downtime rollout plan\n" +
		"SUCCESS: true",
	"HELPFUL: []\n" +
		"HARMFUL: []\n" +
		"OBSOLETE: []\n" +
		"INSIGHT: [Content: Schema changes ship as expand, migrate, contract across three deploys; Type: strategy; Confidence: 0.95]",
}

func runDemo() {
	obs := observe.NewWithConfig(os.Stderr, "console", "error")
	defer obs.Close()

	cfg := config.Default()
	cfg.Provider.Backend = "stub"
	cfg.Web.Enabled = false
	cfg.Thinking.Enabled = true

	eng := runtime.New(runtime.Options{
		Config:   cfg,
		Observer: obs,
		Store:    store.NewMemoryStore(),
		Roles:    pipeline.Roles{Generator: provider.NewStubFromResponses(demoScript...)},
	})
	defer eng.Close()
	if err := eng.Initialize(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed to start: %v\n", err)
		os.Exit(1)
	}

	u := ui.NewConsoleUI(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))
	wireUI(eng, u)

	for _, q := range demoQueries {
		fmt.Printf("\n> %s\n", q)
		cycle(eng, u, q)
		u.Done()
	}

	fmt.Println("\n> /search schema change")
	if results, err := eng.Search(context.Background(), "schema change"); err == nil {
		u.Log(formatResults(results))
	}
	u.Done()

	fmt.Println()
	fmt.Println(formatStats(eng.Stats()))
}
