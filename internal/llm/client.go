package llm

import (
	"context"
	"fmt"
)

// Client opens streamed chat completions against an LLM provider.
type Client interface {
	ChatStream(ctx context.Context, req *ChatRequest) (StreamReader, error)
	Provider() string
	Model() string
}

type ChatRequest struct {
	Messages    []Message
	Tools       []*ToolDefinition
	Temperature float32
	MaxTokens   int
}

type ToolDefinition struct {
	Type     string
	Function *FunctionDef
}

type FunctionDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// StreamReader yields the events of one streamed response. Recv returns
// io.EOF once the stream is exhausted. A StreamReader is single-pass.
type StreamReader interface {
	Recv() (*StreamEvent, error)
	Close() error
}

// APIError is returned when the provider answers with a non-success status.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Body)
}
