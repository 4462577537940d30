// Package provider abstracts the model backends. Every backend exposes the
// same surface: one-shot generation, chunked streaming, and a startup
// reachability check. Transient transport failures share a taxonomy so the
// caller can retry uniformly.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Request is one model call.
type Request struct {
	Prompt string
	// Thinking asks the backend for explicit reasoning wrapped in
	// <think> delimiters. Backends without native support ignore it.
	Thinking bool
}

// Chunk is one element of a response stream. A chunk carries either text
// or a terminal error, never both; the stream closes after an error.
type Chunk struct {
	Text string
	Err  error
}

// Provider is a model backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
	// Check probes reachability; called once at startup.
	Check(ctx context.Context) error
}

// ErrUnavailable marks a backend that could not be reached. Transient.
var ErrUnavailable = errors.New("model backend unavailable")

// TimeoutError marks a model call that exceeded its deadline, including an
// idle stream during thinking. Transient.
type TimeoutError struct {
	Phase string // "thinking" or "generate"
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model call timed out during %s after %s", e.Phase, e.After)
}

func (e *TimeoutError) Timeout() bool { return true }

// Transient reports whether an error is worth retrying.
func Transient(err error) bool {
	var te *TimeoutError
	return errors.Is(err, ErrUnavailable) || errors.As(err, &te)
}

const (
	defaultModel    = "qwen2.5-coder:1.5b"
	defaultBaseURL  = "http://localhost:11434"
	thinkingTimeout = 300 * time.Second
	plainTimeout    = 120 * time.Second
)

// Options configures a backend. Zero values fall back to stock defaults.
type Options struct {
	Model           string
	BaseURL         string
	APIKey          string
	Temperature     float64
	MaxTokens       int
	ContextWindow   int
	ThinkingTimeout time.Duration
	PlainTimeout    time.Duration
}

func (o Options) timeout(thinking bool) time.Duration {
	if thinking {
		if o.ThinkingTimeout > 0 {
			return o.ThinkingTimeout
		}
		return thinkingTimeout
	}
	if o.PlainTimeout > 0 {
		return o.PlainTimeout
	}
	return plainTimeout
}

func phase(req Request) string {
	if req.Thinking {
		return "thinking"
	}
	return "generate"
}

// classify maps transport failures onto the shared taxonomy. Context
// cancellation passes through untouched so callers can tell a dead backend
// from their own cancel.
func classify(err error, phase string, after time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Phase: phase, After: after}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Phase: phase, After: after}
	}
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// RetryPolicy bounds retries of transient model-call failures. Retries
// never apply to delta application.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry matches the stock retry budget.
var DefaultRetry = RetryPolicy{Attempts: 3, Backoff: 500 * time.Millisecond}

// Do runs fn until it succeeds, fails non-transiently, or the attempt
// budget is spent. Backoff doubles between attempts and respects ctx.
func (rp RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := rp.Attempts
	if attempts <= 0 {
		attempts = DefaultRetry.Attempts
	}
	delay := rp.Backoff
	if delay <= 0 {
		delay = DefaultRetry.Backoff
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil || !Transient(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}

// GenerateWithRetry wraps p.Generate in the retry policy.
func GenerateWithRetry(ctx context.Context, p Provider, req Request, rp RetryPolicy) (string, error) {
	var out string
	err := rp.Do(ctx, func() error {
		text, err := p.Generate(ctx, req)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}
