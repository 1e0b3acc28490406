// Package mistral streams chat completions from Mistral's OpenAI-compatible
// endpoint over plain HTTP and decodes the event stream with sse.Parser.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"agenda/internal/llm"
	"agenda/internal/llm/sse"
	"agenda/internal/llm/wire"
)

const (
	DefaultBaseURL = "https://api.mistral.ai/v1"
	DefaultModel   = "mistral-small-latest"

	providerName = "mistral"
	maxErrorBody = 4 << 10
)

var ErrMissingAPIKey = errors.New("mistral API key not configured")

type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

type Option func(*Client)

// WithBaseURL points the client at another OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(apiKey, model string, opts ...Option) *Client {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		httpClient: llm.NewHTTPClient(0, 0),
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Provider() string {
	return providerName
}

func (c *Client) Model() string {
	return c.model
}

// ChatStream sends the conversation with streaming enabled. A non-2xx answer
// is returned as *llm.APIError before any event is produced.
func (c *Client) ChatStream(ctx context.Context, req *llm.ChatRequest) (llm.StreamReader, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(wire.Request(c.model, req, true))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", providerName, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &llm.APIError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}

	return sse.NewParser(resp.Body), nil
}
