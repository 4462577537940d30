package provider

import (
	"context"
	"sync"
	"time"
)

// StubStep is one scripted reply: a response text or an error.
type StubStep struct {
	Response string
	Err      error
}

// StubProvider replays scripted replies for tests and the offline demo.
// After the script runs out it keeps answering with a fixed completion so
// loops terminate cleanly.
type StubProvider struct {
	mu    sync.Mutex
	steps []StubStep
	calls int

	// Delay is applied per call when set, respecting ctx.
	Delay time.Duration
	// ChunkSize controls stream granularity; small values exercise
	// delimiter splitting. Zero means 7 bytes.
	ChunkSize int
}

const stubExhausted = "OUTCOME: stub script exhausted\nSUCCESS: true"

func NewStubProvider(steps ...StubStep) *StubProvider {
	return &StubProvider{steps: steps}
}

// NewStubFromResponses scripts plain text replies.
func NewStubFromResponses(responses ...string) *StubProvider {
	steps := make([]StubStep, len(responses))
	for i, r := range responses {
		steps[i] = StubStep{Response: r}
	}
	return NewStubProvider(steps...)
}

func (s *StubProvider) Name() string {
	return "stub"
}

func (s *StubProvider) Check(ctx context.Context) error {
	return nil
}

// Calls reports how many Generate/Stream calls the stub has served.
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubProvider) next() StubStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.steps) == 0 {
		return StubStep{Response: stubExhausted}
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step
}

func (s *StubProvider) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.Delay):
		return nil
	}
}

func (s *StubProvider) Generate(ctx context.Context, req Request) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	step := s.next()
	if step.Err != nil {
		return "", step.Err
	}
	return step.Response, nil
}

func (s *StubProvider) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	step := s.next()

	size := s.ChunkSize
	if size <= 0 {
		size = 7
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		if step.Err != nil {
			select {
			case out <- Chunk{Err: step.Err}:
			case <-ctx.Done():
			}
			return
		}
		for text := step.Response; text != ""; {
			n := size
			if n > len(text) {
				n = len(text)
			}
			select {
			case out <- Chunk{Text: text[:n]}:
			case <-ctx.Done():
				return
			}
			text = text[n:]
		}
	}()
	return out, nil
}
