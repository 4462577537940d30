package search

import (
	"context"

	"github.com/felixgeelhaar/ace/internal/plugin"
	"github.com/felixgeelhaar/ace/internal/web"
)

// WebSource adapts the instant answer client to the Source interface.
type WebSource struct {
	client *web.Client
}

// NewWebSource wraps a web client for registry use.
func NewWebSource(client *web.Client) *WebSource {
	return &WebSource{client: client}
}

func (w *WebSource) Name() string { return "web" }

func (w *WebSource) Search(ctx context.Context, query string, max int) ([]Result, error) {
	hits, err := w.client.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if max > 0 && len(hits) > max {
		hits = hits[:max]
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		content := h.Content
		if h.Title != "" {
			content = h.Title + ": " + content
		}
		results = append(results, Result{
			Source:  "web",
			Content: content,
			URL:     h.URL,
			Score:   h.Score,
		})
	}
	return results, nil
}

// PluginSource adapts a loaded source plugin. The plugin RPC protocol
// carries no context, so cancellation takes effect once the in-flight
// call returns.
type PluginSource struct {
	name string
	src  plugin.Source
}

// NewPluginSource wraps a dispensed plugin source. The plugin's name is
// fetched once at wrap time.
func NewPluginSource(src plugin.Source) *PluginSource {
	return &PluginSource{name: src.Name(), src: src}
}

func (p *PluginSource) Name() string { return p.name }

func (p *PluginSource) Search(ctx context.Context, query string, max int) ([]Result, error) {
	hits, err := p.src.Search(query, max)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Source:  p.name,
			Content: h.Content,
			URL:     h.URL,
			Score:   h.Score,
		})
	}
	return results, nil
}
