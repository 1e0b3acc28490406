package agent

import (
	"time"

	"agenda/internal/logger"
)

// ExecutionContext tracks the progress of one chat request and provides
// logging utilities
type ExecutionContext struct {
	Logger        *logger.Logger
	StartTime     time.Time
	CurrentRound  int
	MaxRounds     int
	ToolCallCount int
	State         State
}

func NewExecutionContext(log *logger.Logger, maxRounds int) *ExecutionContext {
	return &ExecutionContext{
		Logger:    log,
		StartTime: time.Now(),
		MaxRounds: maxRounds,
		State:     StateRoundStart,
	}
}

// Transition moves to next and logs the change at debug level.
func (ctx *ExecutionContext) Transition(next State) {
	ctx.Logger.Debug("state", "round", ctx.CurrentRound, "from", ctx.State, "to", next)
	ctx.State = next
}

// StartRound advances the round counter.
func (ctx *ExecutionContext) StartRound() {
	ctx.CurrentRound++
	ctx.Transition(StateRoundStart)
	ctx.Logger.Round(ctx.CurrentRound, ctx.MaxRounds)
}

func (ctx *ExecutionContext) LogToolCall(toolName, params string) {
	ctx.ToolCallCount++
	ctx.Logger.ToolCall(toolName, params)
}

func (ctx *ExecutionContext) LogToolResult(toolName string, success bool, output string, duration time.Duration) {
	ctx.Logger.ToolResult(toolName, success, output, duration)
}

func (ctx *ExecutionContext) LogResponse(content string) {
	ctx.Logger.AgentResponse(content)
}

// Finish logs the session summary.
func (ctx *ExecutionContext) Finish() {
	ctx.Logger.SessionEnd(time.Since(ctx.StartTime), ctx.CurrentRound, ctx.ToolCallCount)
}
