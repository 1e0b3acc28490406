package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openai "github.com/sashabaranov/go-openai"
)

func TestAccumulator_ConcatenatesArguments(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge(0, "call_1", "get_calendar_events", `{"da`)
	acc.Merge(0, "", "", `te":"2026-`)
	acc.Merge(0, "", "", `10-16"}`)

	calls := acc.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "get_calendar_events", calls[0].Function.Name)
	assert.Equal(t, `{"date":"2026-10-16"}`, calls[0].Function.Arguments)
}

func TestAccumulator_AscendingIndexOrder(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge(5, "c5", "get_upcoming_events", `{"days":3}`)
	acc.Merge(0, "c0", "get_today_events", `{}`)
	acc.Merge(2, "c2", "get_calendar_events", `{"date":"2026-10-17"}`)

	calls := acc.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []int{0, 2, 5}, []int{calls[0].Index, calls[1].Index, calls[2].Index})
	assert.Equal(t, "get_today_events, get_calendar_events, get_upcoming_events", toolNames(calls))
}

func TestAccumulator_FirstNonEmptyIdentityWins(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge(0, "", "", `{`)
	acc.Merge(0, "call_a", "get_today_events", `}`)
	acc.Merge(0, "call_b", "other", ``)

	calls := acc.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, "get_today_events", calls[0].Function.Name)
	assert.Equal(t, `{}`, calls[0].Function.Arguments)
}

func TestAccumulator_UnnamedFragmentsAreNotDispatchable(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge(1, "c1", "", `{"x":1}`)

	assert.Equal(t, 1, acc.Len())
	assert.Empty(t, acc.Calls())
}

func TestAccumulator_AddDefaultsMissingIndex(t *testing.T) {
	acc := NewAccumulator()
	acc.Add(openai.ToolCall{ID: "a", Function: openai.FunctionCall{Name: "get_today_events", Arguments: "{"}})
	acc.Add(openai.ToolCall{Function: openai.FunctionCall{Arguments: "}"}})

	calls := acc.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, 0, calls[0].Index)
	assert.Equal(t, "{}", calls[0].Function.Arguments)
}

func TestAccumulator_CallsAreCopies(t *testing.T) {
	acc := NewAccumulator()
	acc.Merge(0, "a", "get_today_events", "{")

	first := acc.Calls()
	acc.Merge(0, "", "", "}")

	assert.Equal(t, "{", first[0].Function.Arguments)
	assert.Equal(t, "{}", acc.Calls()[0].Function.Arguments)

	acc.Reset()
	assert.Zero(t, acc.Len())
}
