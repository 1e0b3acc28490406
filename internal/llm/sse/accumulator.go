package sse

import (
	"slices"

	"agenda/internal/llm"

	openai "github.com/sashabaranov/go-openai"
)

// Accumulator assembles tool calls that a provider streams as indexed
// fragments. Arguments for the same index are concatenated in arrival order;
// the id and name keep the first non-empty value seen.
type Accumulator struct {
	calls   map[int]*llm.ToolCall
	indexes []int // ascending
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		calls: make(map[int]*llm.ToolCall),
	}
}

// Merge folds one fragment into the call at index.
func (a *Accumulator) Merge(index int, id, name, arguments string) {
	tc, exists := a.calls[index]
	if !exists {
		tc = &llm.ToolCall{
			Index:    index,
			Type:     string(openai.ToolTypeFunction),
			Function: &llm.FunctionCall{},
		}
		a.calls[index] = tc
		pos, _ := slices.BinarySearch(a.indexes, index)
		a.indexes = slices.Insert(a.indexes, pos, index)
	}

	if tc.ID == "" {
		tc.ID = id
	}
	if tc.Function.Name == "" {
		tc.Function.Name = name
	}
	tc.Function.Arguments += arguments
}

// Add merges a wire-level tool call delta. A missing index means 0.
func (a *Accumulator) Add(delta openai.ToolCall) {
	index := 0
	if delta.Index != nil {
		index = *delta.Index
	}
	a.Merge(index, delta.ID, delta.Function.Name, delta.Function.Arguments)
}

// Len reports how many distinct indexes have been seen.
func (a *Accumulator) Len() int {
	return len(a.indexes)
}

// Calls returns copies of the named calls in ascending index order. Fragments
// that never received a name are not dispatchable and are left out.
func (a *Accumulator) Calls() []*llm.ToolCall {
	var out []*llm.ToolCall
	for _, idx := range a.indexes {
		tc := a.calls[idx]
		if tc.Function.Name == "" {
			continue
		}
		fn := *tc.Function
		cp := *tc
		cp.Function = &fn
		out = append(out, &cp)
	}
	return out
}

func (a *Accumulator) Reset() {
	clear(a.calls)
	a.indexes = a.indexes[:0]
}
