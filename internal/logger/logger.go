package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Level represents the log level
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug // Debug information (only shown with --verbose)
	LevelInfo  = slog.LevelInfo  // Important steps
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Tool output shown in logs is limited to maxResultLines lines and
// maxResultLength bytes.
const (
	maxResultLines  = 2
	maxResultLength = 500
)

// Logger wraps a slog.Logger with helpers for the chat lifecycle: sessions,
// rounds, tool calls and their results.
type Logger struct {
	*slog.Logger
}

// Options controls handler construction.
type Options struct {
	Level   Level
	NoColor bool
	// TimeFormat defaults to "15:04:05".
	TimeFormat string
}

// New creates a Logger writing tinted text to w.
func New(w io.Writer, opts Options) *Logger {
	if w == nil {
		w = os.Stdout
	}
	timeFormat := opts.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05"
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:      opts.Level,
		NoColor:    opts.NoColor,
		TimeFormat: timeFormat,
	})
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// With returns a Logger carrying extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// SessionStart logs the beginning of a chat request.
func (l *Logger) SessionStart(conversationID string, turns int) {
	l.Info("chat session started", "conversation", conversationID, "turns", turns)
}

// SessionEnd logs the completion of a chat request with statistics.
func (l *Logger) SessionEnd(duration time.Duration, rounds, toolCallCount int) {
	l.Info("chat session completed",
		"duration", duration.Round(time.Millisecond),
		"rounds", rounds,
		"tool_calls", toolCallCount,
	)
}

// Round logs the start of an LLM round.
func (l *Logger) Round(current, total int) {
	l.Debug("calling LLM", "round", current, "max_rounds", total)
}

// ToolCall logs a tool call with its parameters.
func (l *Logger) ToolCall(toolName, params string) {
	l.Info("tool call", "tool", toolName, "params", formatJSON(params))
}

// ToolResult logs a tool execution result with truncated output.
func (l *Logger) ToolResult(toolName string, success bool, output string, duration time.Duration) {
	level := LevelInfo
	if !success {
		level = LevelWarn
	}
	l.Log(context.Background(), level, "tool result",
		"tool", toolName,
		"success", success,
		"duration", duration.Round(time.Microsecond),
		"output", Truncate(output),
	)
}

// AgentResponse logs the final assistant answer at debug level.
func (l *Logger) AgentResponse(content string) {
	l.Debug("assistant response", "length", len(content), "content", Truncate(content))
}

// Truncate limits output to two lines and 500 bytes.
func Truncate(output string) string {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	display := output
	truncatedLines := false

	if len(lines) > maxResultLines {
		display = strings.Join(lines[:maxResultLines], "\n")
		truncatedLines = true
	}

	if len(display) > maxResultLength {
		display = display[:maxResultLength] + "..."
	} else if truncatedLines {
		display += "\n..."
	}
	return display
}

// formatJSON keeps JSON compact on a single log line. Input that does not
// parse is returned trimmed.
func formatJSON(jsonStr string) string {
	trimmed := strings.TrimSpace(jsonStr)
	if trimmed == "" {
		return trimmed
	}

	var obj any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return trimmed
	}
	compact, err := json.Marshal(obj)
	if err != nil {
		return trimmed
	}
	return string(compact)
}

type contextKey struct{}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, log *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext retrieves the logger stored in context, or a discarding one.
func FromContext(ctx context.Context) *Logger {
	if log, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return log
	}
	return Discard()
}
