package openai

import (
	"context"
	"errors"

	"agenda/internal/llm"
	"agenda/internal/llm/sse"
	"agenda/internal/llm/wire"

	openai "github.com/sashabaranov/go-openai"
)

const providerName = "openai"

type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new OpenAI client with the given API key and model.
// If baseURL is empty, it uses the default OpenAI API endpoint.
// If baseURL is provided, it uses the custom endpoint (useful for OpenAI-compatible APIs).
func NewClient(apiKey, model string, baseURL ...string) *Client {
	config := openai.DefaultConfig(apiKey)
	if len(baseURL) > 0 && baseURL[0] != "" {
		config.BaseURL = baseURL[0]
	}
	config.HTTPClient = llm.NewHTTPClient(0, 0)

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) Provider() string {
	return providerName
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) ChatStream(ctx context.Context, req *llm.ChatRequest) (llm.StreamReader, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, wire.Request(c.model, req, true))
	if err != nil {
		return nil, convertError(err)
	}

	return &StreamReader{
		stream: stream,
		acc:    sse.NewAccumulator(),
	}, nil
}

// convertError maps SDK status errors onto llm.APIError.
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.APIError{
			Provider:   providerName,
			StatusCode: apiErr.HTTPStatusCode,
			Body:       apiErr.Message,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &llm.APIError{
			Provider:   providerName,
			StatusCode: reqErr.HTTPStatusCode,
			Body:       string(reqErr.Body),
		}
	}

	return err
}
