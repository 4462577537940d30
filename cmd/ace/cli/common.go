package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/felixgeelhaar/ace/internal/config"
	"github.com/felixgeelhaar/ace/internal/observe"
	"github.com/felixgeelhaar/ace/internal/pipeline"
	"github.com/felixgeelhaar/ace/internal/plugin"
	"github.com/felixgeelhaar/ace/internal/prompt"
	"github.com/felixgeelhaar/ace/internal/runtime"
	"github.com/felixgeelhaar/ace/internal/store"
)

// session bundles everything a command needs, in close order.
type session struct {
	obs    *observe.Observer
	store  store.Storage
	engine *runtime.Engine
}

func (s *session) Close() {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
	if s.obs != nil {
		s.obs.Close()
	}
}

// openSession loads config, opens the store, builds the provider and
// engine, and initializes it. strict makes a failed provider probe
// fatal; watch wires live config reload (the REPL wants it, one-shot
// commands do not).
func openSession(strict, watch bool) *session {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if found, err := plugin.Discover(config.DefaultPluginsDir()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: plugin discovery failed: %v\n", err)
	} else {
		cfg.Plugins = append(cfg.Plugins, found...)
	}

	prompts, err := prompt.Load(config.DefaultPromptsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v, using built-in prompts\n", err)
	}

	obs := observe.NewWithConfig(os.Stderr, cfg.Log.Format, cfg.Log.Level)

	st := openStore()

	p, err := runtime.BuildProvider(cfg.Provider, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize provider: %v\n", err)
		st.Close()
		os.Exit(1)
	}

	watchPath := ""
	if watch {
		watchPath = cfgPath
	}
	eng := runtime.New(runtime.Options{
		Config:     cfg,
		ConfigPath: watchPath,
		Observer:   obs,
		Store:      st,
		Roles:      pipeline.Roles{Generator: p},
		Prompts:    prompts,
	})

	s := &session{obs: obs, store: st, engine: eng}
	if err := eng.Initialize(context.Background()); err != nil {
		var probe *runtime.ProviderCheckError
		if errors.As(err, &probe) && !strict {
			fmt.Fprintf(os.Stderr, "warning: %v (cycles will fail until the backend is back)\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "failed to start engine: %v\n", err)
			s.Close()
			os.Exit(1)
		}
	}
	return s
}

func applyFlags(cfg *config.Config) {
	if providerFlag != "" {
		cfg.Provider.Backend = providerFlag
	}
	if modelFlag != "" {
		cfg.Provider.Model = modelFlag
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if noWeb {
		cfg.Web.Enabled = false
	}
	if noThinking {
		cfg.Thinking.Enabled = false
	}
}

func openStore() store.Storage {
	path := dbPath
	if path == "" {
		path = config.DefaultDBPath()
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	return st
}
