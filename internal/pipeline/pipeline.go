package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/ace/internal/memory"
	"github.com/felixgeelhaar/ace/internal/observe"
	"github.com/felixgeelhaar/ace/internal/prompt"
	"github.com/felixgeelhaar/ace/internal/provider"
	"github.com/felixgeelhaar/ace/internal/rank"
	"github.com/felixgeelhaar/ace/internal/stream"
)

// State is the cycle state machine position. Every cycle walks
// Idle → Generating → Reflecting → Curating → Applied → Idle; any
// failure returns straight to Idle with the caller's state untouched.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateReflecting
	StateCurating
	StateApplied
)

func (s State) String() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateReflecting:
		return "reflecting"
	case StateCurating:
		return "curating"
	case StateApplied:
		return "applied"
	default:
		return "idle"
	}
}

// Roles assigns a provider to each model-facing role. A nil Reflector
// falls back to the Generator, so one backend can serve both.
type Roles struct {
	Generator provider.Provider
	Reflector provider.Provider
}

// Config bounds a pipeline.
type Config struct {
	TopK          int     // bullets shown to the generator
	MinConfidence float64 // proposal acceptance threshold
	Policy        memory.Policy
	Retry         provider.RetryPolicy
	Thinking      bool // ask the generator for explicit reasoning
}

// DefaultConfig mirrors the documented defaults.
var DefaultConfig = Config{
	TopK:          10,
	MinConfidence: 0.5,
	Policy:        memory.DefaultPolicy,
	Retry:         provider.DefaultRetry,
	Thinking:      true,
}

// Pipeline drives cycles. It holds no state store of its own; every
// RunCycle call works against the snapshot it is given. Callers
// serialize RunCycle and SetThinking.
type Pipeline struct {
	obs     *observe.Observer
	roles   Roles
	prompts prompt.Set
	cfg     Config

	// OnStage, when set, observes every state transition.
	OnStage func(State)
	// OnSegment, when set, observes classified segments as they stream.
	OnSegment func(stream.Segment)
}

// New wires a pipeline. Zero config fields fall back to defaults.
func New(obs *observe.Observer, roles Roles, prompts prompt.Set, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig.TopK
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultConfig.MinConfidence
	}
	if cfg.Policy.MaxBullets <= 0 {
		cfg.Policy = memory.DefaultPolicy
	}
	return &Pipeline{
		obs:     obs,
		roles:   roles,
		prompts: prompts,
		cfg:     cfg,
	}
}

// SetRoles swaps the backends for subsequent cycles. Callers serialize
// with RunCycle.
func (p *Pipeline) SetRoles(r Roles) { p.roles = r }

// SetThinking flips the reasoning request for subsequent cycles.
func (p *Pipeline) SetThinking(on bool) { p.cfg.Thinking = on }

// Thinking reports whether cycles currently request reasoning.
func (p *Pipeline) Thinking() bool { return p.cfg.Thinking }

func (p *Pipeline) transition(next State) {
	if p.OnStage != nil {
		p.OnStage(next)
	}
}

func (p *Pipeline) reflector() provider.Provider {
	if p.roles.Reflector != nil {
		return p.roles.Reflector
	}
	return p.roles.Generator
}

// RunCycle executes one full cycle against the given snapshot and
// returns the post-apply state. The snapshot is never mutated; on any
// failure the caller keeps its state and nothing was applied.
func (p *Pipeline) RunCycle(ctx context.Context, query string, st *memory.ContextState) (*CycleResult, error) {
	ctx, span := p.obs.StartSpan(ctx, "cycle")
	defer span.End()

	started := time.Now()
	fail := func(err error) (*CycleResult, error) {
		p.transition(StateIdle)
		return nil, err
	}

	p.transition(StateGenerating)
	traj, segments, err := p.generate(ctx, query, st)
	if err != nil {
		return fail(fmt.Errorf("generate: %w", err))
	}

	p.transition(StateReflecting)
	insight, err := p.reflect(ctx, traj, st)
	if err != nil {
		return fail(fmt.Errorf("reflect: %w", err))
	}

	p.transition(StateCurating)
	delta := ComputeDelta(st, insight, traj.ID, traj.CreatedAt, p.cfg.MinConfidence)

	next, err := memory.ApplyDelta(st, delta, p.cfg.Policy)
	if err != nil {
		return fail(fmt.Errorf("apply: %w", err))
	}
	p.transition(StateApplied)

	p.obs.Log().Info().
		Str("trajectory", traj.ID).
		Int("additions", len(delta.Additions)).
		Int("updates", len(delta.Updates)).
		Int("removals", len(delta.Removals)).
		Int("bullets", next.Len()).
		Int64("elapsed_ms", time.Since(started).Milliseconds()).
		Msg("cycle applied")
	p.transition(StateIdle)

	return &CycleResult{
		Trajectory: traj,
		Insight:    insight,
		Delta:      delta,
		State:      next,
		Segments:   segments,
	}, nil
}

// generate ranks context for the query, streams the model reply through
// the segment classifier, and parses the trajectory.
func (p *Pipeline) generate(ctx context.Context, query string, st *memory.ContextState) (Trajectory, []stream.Segment, error) {
	ctx, span := p.obs.StartSpan(ctx, "generate")
	defer span.End()

	top := rank.Top(st.Bullets(), query, p.cfg.TopK)
	used := make([]memory.Bullet, len(top))
	usedIDs := make([]string, len(top))
	for i, scored := range top {
		used[i] = scored.Bullet
		usedIDs[i] = scored.Bullet.ID
	}

	req := provider.Request{
		Prompt:   p.prompts.BuildGeneration(query, used),
		Thinking: p.cfg.Thinking,
	}

	var segments []stream.Segment
	attempt := 0
	err := p.cfg.Retry.Do(ctx, func() error {
		attempt++
		if attempt > 1 {
			p.obs.Log().Warn().Int("attempt", attempt).Msg("retrying generation stream")
		}
		segs, err := p.streamOnce(ctx, req)
		if err != nil {
			return err
		}
		segments = segs
		return nil
	})
	if err != nil {
		return Trajectory{}, nil, err
	}

	answer := stream.Text(segments, stream.Answer)
	parts := prompt.ParseTrajectory(answer)
	traj := Trajectory{
		ID:          uuid.NewString(),
		Query:       query,
		Steps:       parts.Steps,
		Outcome:     parts.Outcome,
		Success:     parts.Success,
		Answer:      answer,
		Thinking:    stream.Text(segments, stream.Thinking),
		UsedBullets: usedIDs,
		CreatedAt:   time.Now().UTC(),
	}
	return traj, segments, nil
}

// streamOnce consumes one model stream through the classifier. Segments
// are forwarded to OnSegment as they are classified.
func (p *Pipeline) streamOnce(ctx context.Context, req provider.Request) ([]stream.Segment, error) {
	chunks, err := p.roles.Generator.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	classifier := stream.NewClassifier()
	var segments []stream.Segment
	emit := func(segs []stream.Segment) {
		for _, seg := range segs {
			segments = append(segments, seg)
			if p.OnSegment != nil {
				p.OnSegment(seg)
			}
		}
	}
	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		emit(classifier.Feed(chunk.Text))
	}
	emit(classifier.Flush())

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return segments, nil
}

// reflect asks the reflector role to grade the bullets the generator
// saw and to propose new knowledge. Parsing is strict: an unstructured
// reply aborts the cycle.
func (p *Pipeline) reflect(ctx context.Context, traj Trajectory, st *memory.ContextState) (Insight, error) {
	ctx, span := p.obs.StartSpan(ctx, "reflect")
	defer span.End()

	used := make([]memory.Bullet, 0, len(traj.UsedBullets))
	for _, id := range traj.UsedBullets {
		if b, ok := st.Lookup(id); ok {
			used = append(used, b)
		}
	}

	req := provider.Request{
		Prompt: p.prompts.BuildReflection(traj.Query, traj.Steps, traj.Outcome, traj.Success, used),
	}
	reply, err := provider.GenerateWithRetry(ctx, p.reflector(), req, p.cfg.Retry)
	if err != nil {
		return Insight{}, err
	}

	parts, err := prompt.ParseInsight(reply)
	if err != nil {
		return Insight{}, err
	}

	insight := Insight{
		Helpful:  parts.Helpful,
		Harmful:  parts.Harmful,
		Obsolete: parts.Obsolete,
	}
	for _, prop := range parts.Proposals {
		insight.Proposals = append(insight.Proposals, Proposal{
			Content:    prop.Content,
			Type:       prop.Kind,
			Confidence: prop.Confidence,
		})
	}
	return insight, nil
}
