// Package runtime owns the live context state for a process and wires the
// cycle pipeline, unified search, research, persistence, and events into
// one engine the CLI and TUI drive.
package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/ace/internal/config"
	"github.com/felixgeelhaar/ace/internal/memory"
	"github.com/felixgeelhaar/ace/internal/observe"
	"github.com/felixgeelhaar/ace/internal/pipeline"
	"github.com/felixgeelhaar/ace/internal/plugin"
	"github.com/felixgeelhaar/ace/internal/prompt"
	"github.com/felixgeelhaar/ace/internal/provider"
	"github.com/felixgeelhaar/ace/internal/search"
	"github.com/felixgeelhaar/ace/internal/store"
	"github.com/felixgeelhaar/ace/internal/stream"
	"github.com/felixgeelhaar/ace/internal/web"
)

// ProviderCheckError reports a failed startup probe. The REPL downgrades
// it to a warning; one-shot commands treat it as fatal.
type ProviderCheckError struct {
	Err error
}

func (e *ProviderCheckError) Error() string {
	return fmt.Sprintf("provider check failed: %v", e.Err)
}

func (e *ProviderCheckError) Unwrap() error { return e.Err }

// Stats summarizes the live store and the engine switches.
type Stats struct {
	TotalBullets    int
	HelpfulBullets  int
	Version         int
	AvgHelpfulness  float64
	Cycles          int
	WebEnabled      bool
	ThinkingEnabled bool
}

// Options wires an engine.
type Options struct {
	Config config.Config
	// ConfigPath, when set, is watched for live reload.
	ConfigPath string
	Observer   *observe.Observer
	Store      store.Storage
	Roles      pipeline.Roles
	// Prompts overrides the default template set when non-zero.
	Prompts prompt.Set
}

// Engine is the single owner of the live ContextState for a process.
// Cycles are serialized; searches and research read immutable snapshots
// and may run concurrently with a cycle.
type Engine struct {
	obs        *observe.Observer
	store      store.Storage
	bus        *EventBus
	tracker    *SessionTracker
	registry   *search.Registry
	searcher   *search.Searcher
	researcher *search.Researcher
	pipe       *pipeline.Pipeline
	configPath string

	cycleMu sync.Mutex // one writer: cycles, toggles, provider swaps

	mu          sync.RWMutex // guards the fields below
	cfg         config.Config
	state       *memory.ContextState
	rolesGen    provider.Provider
	webOn       bool
	webSource   *search.WebSource
	plugins     []*plugin.Host
	watchCancel context.CancelFunc
}

// New builds an engine from options. Call Initialize before use.
func New(opts Options) *Engine {
	cfg := opts.Config
	prompts := opts.Prompts
	if prompts == (prompt.Set{}) {
		prompts = prompt.Default()
	}
	retry := provider.RetryPolicy{
		Attempts: cfg.Retry.MaxAttempts,
		Backoff:  cfg.Retry.Backoff.Std(),
	}

	registry := search.NewRegistry()
	searcher := search.NewSearcher(opts.Observer, registry, search.SearcherConfig{
		TopK:       cfg.Memory.TopK,
		MaxResults: cfg.Search.MaxResults,
		TagFilter:  cfg.Search.TagFilter,
	})
	researcher := search.NewResearcher(opts.Observer, searcher, opts.Roles.Generator,
		prompts, retry, search.ResearchConfig{
			Questions:  cfg.Research.Questions,
			MaxSources: cfg.Research.MaxSources,
		})
	pipe := pipeline.New(opts.Observer, opts.Roles, prompts, pipeline.Config{
		TopK:          cfg.Memory.TopK,
		MinConfidence: cfg.Memory.MinConfidence,
		Policy:        memory.Policy{MaxBullets: cfg.Memory.MaxBullets},
		Retry:         retry,
		Thinking:      cfg.Thinking.Enabled,
	})

	e := &Engine{
		obs:        opts.Observer,
		store:      opts.Store,
		bus:        NewEventBus(),
		tracker:    NewSessionTracker(),
		registry:   registry,
		searcher:   searcher,
		researcher: researcher,
		pipe:       pipe,
		configPath: opts.ConfigPath,
		cfg:        cfg,
		state:      memory.NewState(),
		rolesGen:   opts.Roles.Generator,
	}

	pipe.OnStage = func(s pipeline.State) {
		e.bus.PublishWithData(EventStageChange, "", map[string]interface{}{"stage": s.String()})
	}
	pipe.OnSegment = func(seg stream.Segment) {
		e.bus.PublishWithData(EventSegment, "", map[string]interface{}{
			"kind": seg.Kind.String(),
			"text": seg.Text,
		})
	}
	researcher.OnStage = func(stage search.Stage) {
		e.bus.PublishWithData(EventResearchStage, "", map[string]interface{}{"stage": string(stage)})
	}

	return e
}

// Initialize loads the persisted state, registers configured sources,
// starts the config watcher, and probes the provider. A failed probe
// returns a *ProviderCheckError after everything else is up.
func (e *Engine) Initialize(ctx context.Context) error {
	ctx, span := e.obs.StartSpan(ctx, "initialize")
	defer span.End()

	st, err := e.store.LoadState()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	e.obs.Log().Info().
		Int("bullets", st.Len()).
		Int("version", st.Version()).
		Msg("context state loaded")

	e.mu.RLock()
	cfg := e.cfg
	e.mu.RUnlock()

	if cfg.Web.Enabled {
		e.enableWeb()
	}
	for _, path := range cfg.Plugins {
		e.loadPlugin(path)
	}

	if e.configPath != "" {
		wctx, cancel := context.WithCancel(context.Background())
		if err := config.Watch(wctx, e.configPath, e.applyConfig); err != nil {
			cancel()
			e.obs.Log().Warn().Err(err).Msg("config watcher unavailable")
		} else {
			e.mu.Lock()
			e.watchCancel = cancel
			e.mu.Unlock()
		}
	}

	gen := e.generator()
	if err := gen.Check(ctx); err != nil {
		e.obs.Log().Warn().Str("provider", gen.Name()).Err(err).Msg("provider unreachable")
		return &ProviderCheckError{Err: err}
	}
	return nil
}

// RunCycle runs one adaptation cycle against the live state and, on
// success, swaps and persists the new snapshot. On failure the live state
// is untouched. Cycles are serialized.
func (e *Engine) RunCycle(ctx context.Context, query string) (*pipeline.CycleResult, error) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	ctx, span := e.obs.StartSpan(ctx, "engine.cycle")
	defer span.End()

	e.bus.PublishSimple(EventCycleStart, query)

	before := e.State()
	res, err := e.pipe.RunCycle(ctx, query, before)
	if err != nil {
		e.tracker.RecordCycle(false, err.Error())
		e.bus.PublishWithData(EventEngineError, query, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	e.mu.Lock()
	e.state = res.State
	e.mu.Unlock()

	e.persist(res)

	e.bus.PublishWithData(EventDeltaApplied, query, map[string]interface{}{
		"added":   len(res.Delta.Additions),
		"updated": len(res.Delta.Updates),
		"removed": len(res.Delta.Removals),
		"version": res.State.Version(),
	})
	if pruned := before.Len() + len(res.Delta.Additions) - len(res.Delta.Removals) - res.State.Len(); pruned > 0 {
		e.bus.PublishWithData(EventPruned, query, map[string]interface{}{"count": pruned})
	}
	e.tracker.RecordCycle(res.Trajectory.Success, res.Trajectory.Outcome)
	return res, nil
}

// persist mirrors a successful cycle into the store. Persistence failures
// degrade: the applied state stands, the miss is logged and published.
func (e *Engine) persist(res *pipeline.CycleResult) {
	if err := e.store.SaveState(res.State); err != nil {
		e.obs.Log().Error().Err(err).Msg("failed to persist state snapshot")
		e.bus.PublishWithData(EventEngineError, res.Trajectory.Query, map[string]interface{}{"error": err.Error()})
	}

	tr := &store.Trajectory{
		ID:          res.Trajectory.ID,
		Query:       res.Trajectory.Query,
		Outcome:     res.Trajectory.Outcome,
		Success:     res.Trajectory.Success,
		Steps:       res.Trajectory.Steps,
		UsedBullets: res.Trajectory.UsedBullets,
		Digest:      store.Fingerprint(res.Trajectory.Answer),
		CreatedAt:   res.Trajectory.CreatedAt,
	}
	if err := e.store.SaveTrajectory(tr); err != nil {
		e.obs.Log().Error().Err(err).Msg("failed to persist trajectory")
	}
}

// Search runs the unified search against the current snapshot.
func (e *Engine) Search(ctx context.Context, query string) ([]search.Result, error) {
	e.bus.PublishSimple(EventSearchStart, query)

	results, err := e.searcher.Search(ctx, query, e.State())
	if err != nil {
		e.bus.PublishWithData(EventEngineError, query, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	e.tracker.RecordSearch()
	e.bus.PublishWithData(EventSearchDone, query, map[string]interface{}{"results": len(results)})
	return results, nil
}

// Research runs the four stage research flow against the current
// snapshot. On failure the partial report accompanies the error.
func (e *Engine) Research(ctx context.Context, topic string) (*search.Report, error) {
	report, err := e.researcher.Research(ctx, topic, e.State())
	if err != nil {
		e.bus.PublishWithData(EventEngineError, topic, map[string]interface{}{"error": err.Error()})
		return report, err
	}
	e.tracker.RecordResearch()
	return report, nil
}

// Toggle flips a runtime switch: "thinking" or "web".
func (e *Engine) Toggle(name string, on bool) error {
	switch name {
	case "thinking":
		e.cycleMu.Lock()
		e.pipe.SetThinking(on)
		e.cycleMu.Unlock()
		e.mu.Lock()
		e.cfg.Thinking.Enabled = on
		e.mu.Unlock()
	case "web":
		if on {
			e.enableWeb()
		} else {
			e.disableWeb()
		}
		e.mu.Lock()
		e.cfg.Web.Enabled = on
		e.mu.Unlock()
	default:
		return fmt.Errorf("unknown toggle %q", name)
	}
	e.obs.Log().Info().Str("switch", name).Bool("on", on).Msg("toggled")
	return nil
}

// State returns the live snapshot. Snapshots are immutable, so callers
// may keep reading one while cycles advance the engine.
func (e *Engine) State() *memory.ContextState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Stats reports store totals and switch positions. Cycles counts the
// whole persisted log, not just this process.
func (e *Engine) Stats() Stats {
	st := e.State()
	stats := Stats{TotalBullets: st.Len(), Version: st.Version()}

	var netSum int
	for _, b := range st.Bullets() {
		if b.Helpful > b.Harmful {
			stats.HelpfulBullets++
		}
		netSum += b.Net()
	}
	if st.Len() > 0 {
		stats.AvgHelpfulness = float64(netSum) / float64(st.Len())
	}

	if log, err := e.store.ListTrajectories(0); err == nil {
		stats.Cycles = len(log)
	}

	e.mu.RLock()
	stats.WebEnabled = e.webOn
	stats.ThinkingEnabled = e.cfg.Thinking.Enabled
	e.mu.RUnlock()
	return stats
}

// Trajectories exposes the persisted cycle log, newest first.
func (e *Engine) Trajectories(limit int) ([]*store.Trajectory, error) {
	return e.store.ListTrajectories(limit)
}

// Bus is the engine's event bus; UI layers subscribe here.
func (e *Engine) Bus() *EventBus { return e.bus }

// Tracker exposes the per-process counters.
func (e *Engine) Tracker() *SessionTracker { return e.tracker }

// Sources lists the registered search sources.
func (e *Engine) Sources() []string { return e.registry.List() }

// RegisterSource adds a custom search source alongside the built-ins.
func (e *Engine) RegisterSource(src search.Source) error {
	return e.registry.Register(src)
}

func (e *Engine) generator() provider.Provider {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rolesGen
}

func (e *Engine) enableWeb() {
	e.mu.Lock()
	if e.webSource == nil {
		e.webSource = search.NewWebSource(web.NewClient())
	}
	src := e.webSource
	e.webOn = true
	e.mu.Unlock()

	if err := e.registry.Register(src); err != nil {
		e.obs.Log().Debug().Err(err).Msg("web source already registered")
	}
}

func (e *Engine) disableWeb() {
	e.registry.Unregister("web")
	e.mu.Lock()
	e.webOn = false
	e.mu.Unlock()
}

func (e *Engine) loadPlugin(path string) {
	host, err := plugin.Open(path)
	if err != nil {
		e.obs.Log().Warn().Str("path", path).Err(err).Msg("search plugin failed to load")
		return
	}
	src := search.NewPluginSource(host.Source())
	if err := e.registry.Register(src); err != nil {
		e.obs.Log().Warn().Str("plugin", src.Name()).Err(err).Msg("search plugin name collision")
		host.Close()
		return
	}
	e.mu.Lock()
	e.plugins = append(e.plugins, host)
	e.mu.Unlock()
	e.obs.Log().Info().Str("plugin", src.Name()).Msg("search plugin loaded")
}

// applyConfig is the live-reload hook: thinking, web, and provider
// changes take effect immediately; other sections apply on next start.
func (e *Engine) applyConfig(next config.Config) {
	e.mu.Lock()
	prev := e.cfg
	e.cfg = next
	e.mu.Unlock()

	e.cycleMu.Lock()
	e.pipe.SetThinking(next.Thinking.Enabled)
	e.cycleMu.Unlock()

	if next.Web.Enabled != prev.Web.Enabled {
		if next.Web.Enabled {
			e.enableWeb()
		} else {
			e.disableWeb()
		}
	}

	if next.Provider != prev.Provider {
		e.swapProvider(next.Provider)
	}

	e.obs.Log().Debug().Msg("config reloaded")
}

// swapProvider rebuilds the backend after a config change. The reflector
// follows the generator; distinct reflectors are a construction-time
// choice only.
func (e *Engine) swapProvider(cfg config.ProviderConfig) {
	p, err := BuildProvider(cfg, e.store)
	if err != nil {
		e.obs.Log().Warn().Err(err).Msg("provider rebuild failed, keeping previous")
		return
	}

	e.cycleMu.Lock()
	e.pipe.SetRoles(pipeline.Roles{Generator: p, Reflector: p})
	e.researcher.SetProvider(p)
	e.cycleMu.Unlock()

	e.mu.Lock()
	e.rolesGen = p
	e.mu.Unlock()

	e.obs.Log().Info().
		Str("provider", p.Name()).
		Str("model", cfg.Model).
		Msg("provider swapped")
}

// Close stops the config watcher and kills loaded plugins. The store is
// the caller's to close.
func (e *Engine) Close() {
	e.mu.Lock()
	cancel := e.watchCancel
	e.watchCancel = nil
	plugins := e.plugins
	e.plugins = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, h := range plugins {
		h.Close()
	}
}
