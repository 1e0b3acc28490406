package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agenda/internal/llm"
)

// EmptyOutputPlaceholder is returned when a tool produces no output.
// This ensures LLM APIs (which require non-empty content) don't fail with 400 errors.
const EmptyOutputPlaceholder = "(Tool executed successfully with no output)"

// Executor dispatches named tool calls to the registry. It never returns an
// error: unknown tools, invalid arguments, tool failures and panics all come
// back as a CallResult whose Content is a {"error": "..."} document, so the
// model can read and react to them.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Definitions describes the callable tools to the model.
func (e *Executor) Definitions() []*llm.ToolDefinition {
	return e.registry.GetToolDefinitions()
}

// Execute runs a single call on behalf of actor.
func (e *Executor) Execute(ctx context.Context, actor string, tc *llm.ToolCall) (res *CallResult) {
	var name, args string
	if tc.Function != nil {
		name, args = tc.Function.Name, tc.Function.Arguments
	}
	res = &CallResult{
		ToolName:  name,
		CallID:    tc.ID,
		Params:    json.RawMessage(args),
		StartTime: time.Now(),
	}
	defer func() {
		if r := recover(); r != nil {
			res.Result = &Result{Success: false, Error: fmt.Sprintf("tool panicked: %v", r)}
		}
		res.EndTime = time.Now()
		res.Content = encodeContent(res.Result)
	}()

	t, err := e.registry.Get(name)
	if err != nil {
		res.Result = &Result{Success: false, Error: fmt.Sprintf("unknown function: %s", name)}
		return res
	}

	params := json.RawMessage(args)
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	result, err := t.Execute(ctx, actor, params)
	switch {
	case err != nil:
		res.Result = &Result{Success: false, Error: err.Error()}
	case result == nil:
		res.Result = &Result{Success: true}
	default:
		res.Result = result
	}
	return res
}

// ExecuteSequential runs calls one after another in the given order.
func (e *Executor) ExecuteSequential(ctx context.Context, actor string, calls []*llm.ToolCall) []*CallResult {
	results := make([]*CallResult, len(calls))
	for i, tc := range calls {
		results[i] = e.Execute(ctx, actor, tc)
	}
	return results
}

func encodeContent(r *Result) string {
	if r.Success {
		if r.Output == "" {
			return EmptyOutputPlaceholder
		}
		return r.Output
	}

	msg := r.Error
	if msg == "" {
		msg = "tool failed"
	}
	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"tool failed"}`
	}
	return string(data)
}
