package search

import (
	"context"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/felixgeelhaar/ace/internal/memory"
	"github.com/felixgeelhaar/ace/internal/observe"
	"github.com/felixgeelhaar/ace/internal/rank"
)

// SearcherConfig bounds a searcher's result set.
type SearcherConfig struct {
	TopK       int    // context hits considered per query
	MaxResults int    // merged result cap
	TagFilter  string // doublestar glob over bullet tags, empty keeps all
}

// DefaultSearcherConfig mirrors the documented defaults.
var DefaultSearcherConfig = SearcherConfig{TopK: 10, MaxResults: 10}

// Searcher merges ranked context bullets with results from registered
// sources. Source failures degrade to a logged warning so a dead web
// backend or crashed plugin never sinks a query.
type Searcher struct {
	obs      *observe.Observer
	registry *Registry
	cfg      SearcherConfig
}

// NewSearcher wires a searcher over the given source registry.
func NewSearcher(obs *observe.Observer, registry *Registry, cfg SearcherConfig) *Searcher {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultSearcherConfig.TopK
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultSearcherConfig.MaxResults
	}
	return &Searcher{obs: obs, registry: registry, cfg: cfg}
}

// filterBullets keeps bullets with at least one tag matching the glob
// pattern. An empty pattern keeps everything.
func filterBullets(bullets []memory.Bullet, pattern string) []memory.Bullet {
	if pattern == "" {
		return bullets
	}
	var kept []memory.Bullet
	for _, b := range bullets {
		for _, tag := range b.Tags {
			match, err := doublestar.Match(pattern, tag)
			if err == nil && match {
				kept = append(kept, b)
				break
			}
		}
	}
	return kept
}

// Search ranks the state's bullets against query and merges them with
// results from every registered source. The error return is reserved
// for cancellation; per-source failures only log a warning.
func (s *Searcher) Search(ctx context.Context, query string, st *memory.ContextState) ([]Result, error) {
	ctx, span := s.obs.StartSpan(ctx, "search")
	defer span.End()

	bullets := filterBullets(st.Bullets(), s.cfg.TagFilter)
	var results []Result
	for _, scored := range rank.Top(bullets, query, s.cfg.TopK) {
		results = append(results, Result{
			Source:  "context",
			Content: scored.Bullet.Content,
			Score:   scored.Score,
		})
	}

	if s.registry != nil && s.registry.Count() > 0 {
		external, errs := s.registry.SearchAll(ctx, query, s.cfg.MaxResults)
		for _, err := range errs {
			s.obs.Log().Warn().Err(err).Msg("search source degraded")
		}
		results = append(results, external...)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sortResults(results)
	if len(results) > s.cfg.MaxResults {
		results = results[:s.cfg.MaxResults]
	}

	s.obs.Log().Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("search complete")
	return results, nil
}
