package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider serves OpenAI and OpenAI-compatible endpoints. Thinking
// requests pass through unchanged: these models emit no <think> delimiters,
// so the whole stream classifies as answer.
type OpenAIProvider struct {
	client *openai.Client
	opts   Options
}

func NewOpenAIProvider(opts Options) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		opts:   opts,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (p *OpenAIProvider) request(req Request) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: p.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: float32(p.opts.Temperature),
		MaxTokens:   p.opts.MaxTokens,
	}
}

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	timeout := p.opts.timeout(req.Thinking)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, p.request(req))
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", classify(err, phase(req), timeout))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	timeout := p.opts.timeout(req.Thinking)
	streamCtx, cancel := context.WithTimeout(ctx, timeout)

	stream, err := p.client.CreateChatCompletionStream(streamCtx, p.request(req))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("openai stream failed: %w", classify(err, phase(req), timeout))
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer cancel()
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				err = classify(err, phase(req), timeout)
				select {
				case out <- Chunk{Err: fmt.Errorf("openai stream failed: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			select {
			case out <- Chunk{Text: resp.Choices[0].Delta.Content}:
			case <-streamCtx.Done():
				return
			}
		}
	}()
	return out, nil
}
