package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"agenda/internal/llm"
	"agenda/internal/logger"
	"agenda/internal/tool"
	"agenda/internal/tracing"
)

// Orchestrator runs the bounded streaming round loop: stream an answer,
// execute any requested tools, feed their results back, repeat.
type Orchestrator struct {
	client llm.Client
	tools  ToolExecutor
	config Config
	log    *logger.Logger
}

func NewOrchestrator(client llm.Client, tools ToolExecutor, cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if log == nil {
		log = logger.Discard()
	}
	if tools == nil {
		tools = tool.NewExecutor(tool.NewRegistry())
	}
	return &Orchestrator{
		client: client,
		tools:  tools,
		config: cfg,
		log:    log,
	}
}

// roundResult is what one streamed round produced.
type roundResult struct {
	content   string
	toolCalls []*llm.ToolCall
}

// Run drives the conversation in input until a round answers without tool
// calls or the round budget is spent. Content is forwarded to sink as it
// arrives. Only the final round's content becomes Output.Result.
//
// Opening a stream that fails ends the run with that error. A sink error or
// a cancelled context ends it with ErrAborted and no further tool calls run.
func (o *Orchestrator) Run(ctx context.Context, input *Input, sink Sink) (*Output, error) {
	log := input.Logger
	if log == nil {
		log = o.log
	}
	execCtx := NewExecutionContext(log, o.config.MaxRounds)

	messages := slices.Clone(input.Messages)
	defs := o.tools.Definitions()

	out := &Output{}

	for execCtx.CurrentRound < o.config.MaxRounds {
		execCtx.StartRound()

		res, err := o.streamRound(ctx, messages, defs, sink, execCtx)
		if err != nil {
			log.Error("round failed", "round", execCtx.CurrentRound, "error", err)
			return nil, err
		}

		if len(res.toolCalls) == 0 {
			execCtx.Transition(StateContentDone)
			execCtx.LogResponse(res.content)
			execCtx.Finish()

			out.Messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: res.content})
			out.Result = res.content
			out.Rounds = execCtx.CurrentRound
			out.State = execCtx.State
			return out, nil
		}

		execCtx.Transition(StateToolCallsDone)
		if res.content != "" {
			log.Debug("discarding content of tool-calling round", "round", execCtx.CurrentRound, "length", len(res.content))
		}

		results, err := o.executeTools(ctx, input.Actor, res.toolCalls, execCtx)
		if err != nil {
			return nil, err
		}
		out.ToolCalls = append(out.ToolCalls, results...)

		messages = append(messages, SummaryTurn(res.toolCalls))
		for _, r := range results {
			messages = append(messages, ResultTurn(r.ToolName, r.Content))
		}
	}

	log.Warn("round budget exhausted", "max_rounds", o.config.MaxRounds)
	execCtx.Finish()

	out.Messages = messages
	out.Rounds = execCtx.CurrentRound
	out.Exhausted = true
	out.State = execCtx.State
	return out, nil
}

// streamRound opens one stream and consumes it to the end.
func (o *Orchestrator) streamRound(
	ctx context.Context,
	messages []llm.Message,
	defs []*llm.ToolDefinition,
	sink Sink,
	execCtx *ExecutionContext,
) (res *roundResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "chat.round", trace.WithAttributes(
		tracing.IntAttr("round", execCtx.CurrentRound),
		tracing.IntAttr("messages", len(messages)),
		tracing.StringAttr("provider", o.client.Provider()),
		tracing.StringAttr("model", o.client.Model()),
	))
	defer func() { tracing.End(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	stream, err := o.client.ChatStream(ctx, &llm.ChatRequest{
		Messages:    messages,
		Tools:       defs,
		Temperature: o.config.Temperature,
		MaxTokens:   o.config.MaxTokens,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	defer stream.Close()

	execCtx.Transition(StateStreaming)

	// Per-round buffer, superseded if the round ends in tool calls.
	var buf strings.Builder
	res = &roundResult{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}

		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
			}
			return nil, fmt.Errorf("%w: read stream: %w", ErrProvider, err)
		}

		switch event.Kind() {
		case llm.EventContent:
			if err := sink.Emit(ctx, event.Content); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAborted, err)
			}
			buf.WriteString(event.Content)
		case llm.EventToolCalls:
			res.toolCalls = append(res.toolCalls, event.ToolCalls...)
		}
	}

	res.content = buf.String()
	span.SetAttributes(
		tracing.IntAttr("content_length", len(res.content)),
		tracing.IntAttr("tool_calls", len(res.toolCalls)),
	)
	return res, nil
}

// executeTools runs calls one at a time in the order received.
func (o *Orchestrator) executeTools(
	ctx context.Context,
	actor string,
	calls []*llm.ToolCall,
	execCtx *ExecutionContext,
) ([]*tool.CallResult, error) {
	results := make([]*tool.CallResult, 0, len(calls))

	for _, tc := range calls {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}

		execCtx.LogToolCall(tc.Function.Name, tc.Function.Arguments)

		toolCtx, span := tracing.StartSpan(ctx, "tool.execute", trace.WithAttributes(
			tracing.StringAttr("tool", tc.Function.Name),
			tracing.StringAttr("call_id", tc.ID),
			tracing.IntAttr("round", execCtx.CurrentRound),
		))
		r := o.tools.Execute(toolCtx, actor, tc)
		span.SetAttributes(tracing.BoolAttr("success", r.Result.Success))
		var spanErr error
		if !r.Result.Success {
			spanErr = errors.New(r.Result.Error)
		}
		tracing.End(span, spanErr)

		execCtx.LogToolResult(r.ToolName, r.Result.Success, r.Content, r.Duration())
		results = append(results, r)
	}

	return results, nil
}

// SummaryTurn records which tools the assistant invoked in a round.
func SummaryTurn(calls []*llm.ToolCall) llm.Message {
	return llm.Message{
		Role:    llm.RoleAssistant,
		Content: fmt.Sprintf("[Calling functions: %s]", llm.ToolNames(calls)),
	}
}

// ResultTurn carries one tool result back to the model. It uses the user
// role because the conversation has no tool role.
func ResultTurn(name, content string) llm.Message {
	return llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Result of function %s: %s", name, content),
	}
}
