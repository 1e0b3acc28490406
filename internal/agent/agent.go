package agent

import (
	"context"
	"errors"

	"agenda/internal/llm"
	"agenda/internal/logger"
	"agenda/internal/tool"
)

// DefaultMaxRounds bounds the LLM calls made for one chat request.
const DefaultMaxRounds = 5

var (
	// ErrAborted is returned when the sink refuses content or the request
	// context ends. Nothing after the abort point runs.
	ErrAborted = errors.New("chat aborted")
	// ErrProvider wraps failures to open or read a model stream.
	ErrProvider = errors.New("LLM call failed")
)

// Sink receives answer content as it streams in.
type Sink interface {
	Emit(ctx context.Context, content string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, content string) error

func (f SinkFunc) Emit(ctx context.Context, content string) error { return f(ctx, content) }

// ToolExecutor runs named tool calls. Execute never fails: errors come back
// as the result content.
type ToolExecutor interface {
	Definitions() []*llm.ToolDefinition
	Execute(ctx context.Context, actor string, call *llm.ToolCall) *tool.CallResult
}

type Input struct {
	// Actor is the user tools act on behalf of.
	Actor string
	// Messages is the initial conversation, system turn first.
	Messages []llm.Message
	Logger   *logger.Logger
}

type Output struct {
	// Messages is the conversation including tool summary and result turns.
	Messages  []llm.Message
	Result    string
	ToolCalls []*tool.CallResult
	Rounds    int
	// Exhausted is set when the last allowed round still asked for tools.
	Exhausted bool
	State     State
}

type Config struct {
	MaxRounds   int
	Temperature float32
	MaxTokens   int
}
