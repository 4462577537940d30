package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaProvider talks to a local Ollama daemon. It is the primary backend
// and the only one with native thinking support: when a request asks for
// thinking, the enable_thinking option is set and thinking-capable models
// wrap their reasoning in <think> delimiters.
type OllamaProvider struct {
	client *api.Client
	opts   Options
}

func NewOllamaProvider(opts Options) *OllamaProvider {
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if envURL := os.Getenv("OLLAMA_HOST"); envURL != "" && opts.BaseURL == "" {
		baseURL = envURL
	}
	uri, _ := url.Parse(baseURL)
	return &OllamaProvider{
		client: api.NewClient(uri, http.DefaultClient),
		opts:   opts,
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *OllamaProvider) modelOptions(req Request) map[string]any {
	opts := map[string]any{
		"temperature": p.opts.Temperature,
		"num_predict": atLeast(p.opts.MaxTokens, 128),
		"num_ctx":     atLeast(p.opts.ContextWindow, 512),
	}
	if req.Thinking {
		opts["enable_thinking"] = true
	}
	return opts
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (string, error) {
	timeout := p.opts.timeout(req.Thinking)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stream := false
	r := &api.GenerateRequest{
		Model:   p.opts.Model,
		Prompt:  req.Prompt,
		Stream:  &stream,
		Options: p.modelOptions(req),
	}

	var sb strings.Builder
	err := p.client.Generate(ctx, r, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", classify(err, phase(req), timeout))
	}
	return sb.String(), nil
}

// Stream generates with a chunk callback. The timeout is an inactivity
// watchdog: it resets on every chunk, so a long thinking phase stays alive
// as long as tokens keep arriving.
func (p *OllamaProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	timeout := p.opts.timeout(req.Thinking)
	streamCtx, cancel := context.WithCancel(ctx)

	var timedOut atomic.Bool
	watchdog := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		cancel()
	})

	r := &api.GenerateRequest{
		Model:   p.opts.Model,
		Prompt:  req.Prompt,
		Options: p.modelOptions(req),
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer cancel()
		defer watchdog.Stop()

		err := p.client.Generate(streamCtx, r, func(resp api.GenerateResponse) error {
			watchdog.Reset(timeout)
			select {
			case out <- Chunk{Text: resp.Response}:
				return nil
			case <-streamCtx.Done():
				return streamCtx.Err()
			}
		})
		if err != nil {
			if timedOut.Load() {
				err = &TimeoutError{Phase: phase(req), After: timeout}
			} else {
				err = classify(err, phase(req), timeout)
			}
			select {
			case out <- Chunk{Err: fmt.Errorf("ollama stream failed: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

func atLeast(n, floor int) int {
	if n < floor {
		return floor
	}
	return n
}
