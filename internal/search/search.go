// Package search merges context from local memory, the web, and
// external source plugins into one ranked result list, and drives
// multi-stage research runs that synthesize those results into a
// report.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Result is one search hit, regardless of where it came from.
type Result struct {
	Source  string // "context", "web", or a plugin name
	Content string
	URL     string // empty for context hits
	Score   float64
}

// Source answers search queries. Implementations wrap the web backend,
// plugin subprocesses, or any other external knowledge provider.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, max int) ([]Result, error)
}

// Registry manages available sources. It provides a centralized way to
// register, discover, and query them.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]Source),
	}
}

// Register adds a source to the registry.
func (r *Registry) Register(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source %q already registered", name)
	}
	r.sources[name] = src
	return nil
}

// Unregister removes a source from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sources, name)
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[name]
	return src, ok
}

// List returns the registered source names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered sources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sources)
}

// SearchAll queries every registered source in parallel and returns
// their results concatenated in source name order, so output is
// deterministic regardless of completion timing. Sources that fail
// contribute an error instead of results.
func (r *Registry) SearchAll(ctx context.Context, query string, max int) ([]Result, []error) {
	names := r.List()
	slots := make([][]Result, len(names))
	slotErrs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		src, ok := r.Get(name)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			got, err := src.Search(ctx, query, max)
			if err != nil {
				slotErrs[i] = fmt.Errorf("source %s: %w", src.Name(), err)
				return
			}
			slots[i] = got
		}(i, src)
	}
	wg.Wait()

	var results []Result
	var errs []error
	for i := range names {
		if slotErrs[i] != nil {
			errs = append(errs, slotErrs[i])
			continue
		}
		results = append(results, slots[i]...)
	}
	return results, errs
}

// sourceOrder ranks context hits before web hits before plugin hits
// when scores tie.
func sourceOrder(name string) int {
	switch name {
	case "context":
		return 0
	case "web":
		return 1
	default:
		return 2
	}
}

// sortResults orders by score descending; ties keep context hits first
// and otherwise preserve per-source arrival order.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return sourceOrder(results[i].Source) < sourceOrder(results[j].Source)
	})
}
