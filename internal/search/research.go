package search

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/ace/internal/memory"
	"github.com/felixgeelhaar/ace/internal/observe"
	"github.com/felixgeelhaar/ace/internal/prompt"
	"github.com/felixgeelhaar/ace/internal/provider"
)

// Stage names one phase of a research run.
type Stage string

const (
	StageGather     Stage = "gather"
	StageFormulate  Stage = "formulate"
	StageAnswer     Stage = "answer"
	StageSynthesize Stage = "synthesize"
)

// StageError reports which stage a research run died in and which
// stages had already completed. The partial report travels back with
// it so callers can render progress.
type StageError struct {
	Stage     Stage
	Completed []Stage
	Err       error
}

func (e *StageError) Error() string {
	if len(e.Completed) == 0 {
		return fmt.Sprintf("research failed at stage %s: %v", e.Stage, e.Err)
	}
	names := make([]string, len(e.Completed))
	for i, s := range e.Completed {
		names[i] = string(s)
	}
	return fmt.Sprintf("research failed at stage %s (completed: %s): %v",
		e.Stage, strings.Join(names, ", "), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Report is the outcome of a research run.
type Report struct {
	Topic     string
	Sources   []Result
	Questions []string
	Answers   []string
	Synthesis string
	Stages    []Stage // completed stages, in order
}

// Markdown renders the report for terminal display.
func (r *Report) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Research: %s\n\n", r.Topic)
	if len(r.Sources) > 0 {
		sb.WriteString("## Sources\n\n")
		for i, src := range r.Sources {
			fmt.Fprintf(&sb, "%d. (%s) %s\n", i+1, src.Source, clip(src.Content, 120))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(r.Synthesis)
	sb.WriteByte('\n')
	return sb.String()
}

// ResearchConfig bounds a research run.
type ResearchConfig struct {
	Questions  int // sub-questions per topic
	MaxSources int // gathered sources kept
}

// DefaultResearchConfig mirrors the documented defaults.
var DefaultResearchConfig = ResearchConfig{Questions: 3, MaxSources: 5}

var questionTemplates = []string{
	"What are the core concepts behind %s?",
	"What are common pitfalls when working with %s?",
	"What are current best practices for %s?",
	"How does %s compare to its main alternatives?",
	"What open problems remain around %s?",
}

// Researcher drives the four stage research flow: gather sources,
// formulate sub-questions, answer them, synthesize a report.
type Researcher struct {
	obs      *observe.Observer
	searcher *Searcher
	llm      provider.Provider
	prompts  prompt.Set
	retry    provider.RetryPolicy
	cfg      ResearchConfig

	// OnStage, when set, is invoked after each completed stage.
	OnStage func(Stage)
}

// NewResearcher wires a researcher. Question count is capped by the
// number of available templates.
func NewResearcher(obs *observe.Observer, searcher *Searcher, llm provider.Provider,
	prompts prompt.Set, retry provider.RetryPolicy, cfg ResearchConfig) *Researcher {
	if cfg.Questions <= 0 {
		cfg.Questions = DefaultResearchConfig.Questions
	}
	if cfg.Questions > len(questionTemplates) {
		cfg.Questions = len(questionTemplates)
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = DefaultResearchConfig.MaxSources
	}
	return &Researcher{
		obs:      obs,
		searcher: searcher,
		llm:      llm,
		prompts:  prompts,
		retry:    retry,
		cfg:      cfg,
	}
}

// SetProvider swaps the backend for subsequent runs. Callers serialize
// with Research.
func (r *Researcher) SetProvider(p provider.Provider) { r.llm = p }

// formulate derives sub-questions from fixed templates. Question
// generation is deterministic; no model call involved.
func formulate(topic string, n int) []string {
	questions := make([]string, 0, n)
	for i := 0; i < n && i < len(questionTemplates); i++ {
		questions = append(questions, fmt.Sprintf(questionTemplates[i], topic))
	}
	return questions
}

// Research runs all four stages against a state snapshot. On failure
// the partial report is returned together with a *StageError naming
// the failed stage.
func (r *Researcher) Research(ctx context.Context, topic string, st *memory.ContextState) (*Report, error) {
	ctx, span := r.obs.StartSpan(ctx, "research")
	defer span.End()

	report := &Report{Topic: topic}
	fail := func(stage Stage, err error) (*Report, error) {
		return report, &StageError{
			Stage:     stage,
			Completed: append([]Stage(nil), report.Stages...),
			Err:       err,
		}
	}
	done := func(stage Stage) {
		report.Stages = append(report.Stages, stage)
		if r.OnStage != nil {
			r.OnStage(stage)
		}
		r.obs.Log().Debug().Str("stage", string(stage)).Msg("research stage complete")
	}

	sources, err := r.searcher.Search(ctx, topic, st)
	if err != nil {
		return fail(StageGather, err)
	}
	if len(sources) > r.cfg.MaxSources {
		sources = sources[:r.cfg.MaxSources]
	}
	report.Sources = sources
	done(StageGather)

	report.Questions = formulate(topic, r.cfg.Questions)
	done(StageFormulate)

	answers := make([]string, len(report.Questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(report.Questions))
	for i, question := range report.Questions {
		g.Go(func() error {
			extra, err := r.searcher.Search(gctx, question, st)
			if err != nil {
				return err
			}
			material := append(append([]Result(nil), sources...), extra...)
			reply, err := provider.GenerateWithRetry(gctx, r.llm, provider.Request{
				Prompt: r.prompts.BuildAnswer(question, sourcesBlock(material)),
			}, r.retry)
			if err != nil {
				return fmt.Errorf("question %d: %w", i+1, err)
			}
			answers[i] = strings.TrimSpace(reply)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(StageAnswer, err)
	}
	report.Answers = answers
	done(StageAnswer)

	reply, err := provider.GenerateWithRetry(ctx, r.llm, provider.Request{
		Prompt: r.prompts.BuildSynthesis(topic,
			sourcesBlock(sources), answersBlock(report.Questions, answers)),
	}, r.retry)
	if err != nil {
		return fail(StageSynthesize, err)
	}
	report.Synthesis = strings.TrimSpace(reply)
	done(StageSynthesize)

	return report, nil
}

// sourcesBlock numbers sources for citation in prompts.
func sourcesBlock(sources []Result) string {
	if len(sources) == 0 {
		return "No sources available."
	}
	var sb strings.Builder
	for i, src := range sources {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "[%d] (%s) %s", i+1, src.Source, clip(src.Content, 200))
	}
	return sb.String()
}

func answersBlock(questions, answers []string) string {
	var sb strings.Builder
	for i := range questions {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Q%d: %s\nA%d: %s", i+1, questions[i], i+1, answers[i])
	}
	return sb.String()
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
