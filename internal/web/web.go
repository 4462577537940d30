// Package web queries the DuckDuckGo Instant Answer API for context
// snippets that supplement locally stored knowledge. The client is rate
// limited and every failure wraps ErrSearchProvider so callers can
// degrade to local results instead of aborting.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// ErrSearchProvider reports that the web search backend failed. Callers
// treat it as a soft failure and continue with local results.
var ErrSearchProvider = errors.New("web search provider failed")

const (
	defaultBaseURL = "https://api.duckduckgo.com"
	userAgent      = "ace-agent/1.0"

	abstractScore = 1.0
	topicScore    = 0.5
	maxTopics     = 3
)

// Result is one snippet returned by a web search.
type Result struct {
	Title   string
	Content string
	URL     string
	Score   float64
}

// Client talks to the DuckDuckGo Instant Answer API.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient returns a client with a ten second request timeout and a
// one request per second limit (burst of two).
func NewClient() *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultBaseURL,
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}

type relatedTopic struct {
	Text     string `json:"Text"`
	FirstURL string `json:"FirstURL"`
}

type instantAnswer struct {
	Heading       string         `json:"Heading"`
	Abstract      string         `json:"Abstract"`
	AbstractURL   string         `json:"AbstractURL"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

// Search fetches the instant answer for query. It returns the abstract
// first when present, then up to three related topics at half weight.
// An empty slice with a nil error means the API had nothing to say.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchProvider, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSearchProvider, resp.StatusCode)
	}

	var answer instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchProvider, err)
	}

	var results []Result
	if answer.Abstract != "" {
		results = append(results, Result{
			Title:   answer.Heading,
			Content: answer.Abstract,
			URL:     answer.AbstractURL,
			Score:   abstractScore,
		})
	}
	taken := 0
	for _, topic := range answer.RelatedTopics {
		if taken >= maxTopics {
			break
		}
		if topic.Text == "" {
			continue
		}
		results = append(results, Result{
			Content: topic.Text,
			URL:     topic.FirstURL,
			Score:   topicScore,
		})
		taken++
	}
	return results, nil
}
