package llm

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. Order within a conversation is chronological.
type Message struct {
	Role    Role
	Content string
}

type ToolCall struct {
	Index    int
	ID       string
	Type     string
	Function *FunctionCall
}

type FunctionCall struct {
	Name      string
	Arguments string
}

type EventKind int

const (
	EventContent EventKind = iota
	EventToolCalls
)

// StreamEvent is either a content fragment or the completed tool calls of a
// stream. At most one tool-calls event is produced, after all content.
type StreamEvent struct {
	Content   string
	ToolCalls []*ToolCall
}

func (e *StreamEvent) Kind() EventKind {
	if len(e.ToolCalls) > 0 {
		return EventToolCalls
	}
	return EventContent
}

// ToolNames lists the function names of calls in order.
func ToolNames(calls []*ToolCall) string {
	names := make([]string, 0, len(calls))
	for _, tc := range calls {
		names = append(names, tc.Function.Name)
	}
	return strings.Join(names, ", ")
}
