package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider talks to the Gemini API through the official client.
type GeminiProvider struct {
	client *genai.Client
	model  string
	opts   Options
}

func NewGeminiProvider(opts Options) (*GeminiProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-1.5-flash-latest"
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		opts:   opts,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Check validates nothing beyond construction; the client has no ping
// endpoint and a generation probe would bill tokens.
func (p *GeminiProvider) Check(ctx context.Context) error {
	return nil
}

func textFromCandidates(cands []*genai.Candidate) string {
	var out string
	for _, cand := range cands {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				out += string(t)
			}
		}
	}
	return out
}

func (p *GeminiProvider) Generate(ctx context.Context, req Request) (string, error) {
	timeout := p.opts.timeout(req.Thinking)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	gm := p.client.GenerativeModel(p.model)
	resp, err := gm.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", classify(err, phase(req), timeout))
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return textFromCandidates(resp.Candidates[:1]), nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	timeout := p.opts.timeout(req.Thinking)
	streamCtx, cancel := context.WithTimeout(ctx, timeout)

	gm := p.client.GenerativeModel(p.model)
	iter := gm.GenerateContentStream(streamCtx, genai.Text(req.Prompt))

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer cancel()
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				err = classify(err, phase(req), timeout)
				select {
				case out <- Chunk{Err: fmt.Errorf("gemini stream failed: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- Chunk{Text: textFromCandidates(resp.Candidates)}:
			case <-streamCtx.Done():
				return
			}
		}
	}()
	return out, nil
}
