package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/llm"
)

func contentFrame(s string) string {
	return `data: {"choices":[{"index":0,"delta":{"content":` + quote(s) + `}}]}` + "\n\n"
}

func toolFrame(index int, id, name, args string) string {
	return `data: {"choices":[{"index":0,"delta":{"tool_calls":[{"index":` + itoa(index) +
		`,"id":` + quote(id) + `,"type":"function","function":{"name":` + quote(name) +
		`,"arguments":` + quote(args) + `}}]}}]}` + "\n\n"
}

const doneFrame = "data: [DONE]\n\n"

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func collect(t *testing.T, r llm.StreamReader) []*llm.StreamEvent {
	t.Helper()
	var events []*llm.StreamEvent
	for {
		ev, err := r.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func contents(events []*llm.StreamEvent) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.Content)
	}
	return b.String()
}

func toolNames(calls []*llm.ToolCall) string {
	return llm.ToolNames(calls)
}

// splitReader returns data in two reads split at offset at.
type splitReader struct {
	parts [][]byte
}

func newSplitReader(data string, at int) *splitReader {
	return &splitReader{parts: [][]byte{[]byte(data[:at]), []byte(data[at:])}}
}

func (r *splitReader) Read(p []byte) (int, error) {
	for len(r.parts) > 0 && len(r.parts[0]) == 0 {
		r.parts = r.parts[1:]
	}
	if len(r.parts) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.parts[0])
	r.parts[0] = r.parts[0][n:]
	return n, nil
}

func TestParser_ContentOnly(t *testing.T) {
	raw := contentFrame("Hello") + contentFrame(", ") + contentFrame("world") + doneFrame

	events := collect(t, NewParser(strings.NewReader(raw)))

	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, llm.EventContent, ev.Kind())
	}
	assert.Equal(t, "Hello, world", contents(events))
}

func TestParser_ToolCallArgumentsSplitAcrossChunks(t *testing.T) {
	raw := toolFrame(0, "call_1", "get_calendar_events", `{"date":`) +
		toolFrame(0, "", "", `"2026-10-16"`) +
		toolFrame(0, "", "", `}`) +
		doneFrame

	events := collect(t, NewParser(strings.NewReader(raw)))

	require.Len(t, events, 1)
	require.Equal(t, llm.EventToolCalls, events[0].Kind())
	require.Len(t, events[0].ToolCalls, 1)
	assert.Equal(t, `{"date":"2026-10-16"}`, events[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_1", events[0].ToolCalls[0].ID)
}

func TestParser_SkipsMalformedLine(t *testing.T) {
	raw := contentFrame("first") + "data: {not json\n\n" + contentFrame("second") + doneFrame

	events := collect(t, NewParser(strings.NewReader(raw)))

	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Content)
	assert.Equal(t, "second", events[1].Content)
}

func TestParser_IgnoresCommentsAndForeignLines(t *testing.T) {
	raw := ": keep-alive\r\n" +
		"event: message\r\n" +
		"data:" + `{"choices":[{"delta":{"content":"a"}}]}` + "\r\n\r\n" +
		`data: {"choices":[]}` + "\n\n" +
		contentFrame("b")

	events := collect(t, NewParser(strings.NewReader(raw)))

	assert.Equal(t, "ab", contents(events))
}

func TestParser_ToolCallsComeLastInIndexOrder(t *testing.T) {
	raw := contentFrame("Let me check.") +
		toolFrame(1, "c1", "get_upcoming_events", `{"days":2}`) +
		toolFrame(0, "c0", "get_today_events", `{}`) +
		toolFrame(2, "c2", "", `{}`) +
		contentFrame(" One moment.") +
		doneFrame

	events := collect(t, NewParser(strings.NewReader(raw)))

	require.Len(t, events, 3)
	assert.Equal(t, "Let me check.", events[0].Content)
	assert.Equal(t, " One moment.", events[1].Content)
	require.Equal(t, llm.EventToolCalls, events[2].Kind())
	assert.Equal(t, "get_today_events, get_upcoming_events", toolNames(events[2].ToolCalls))
}

func TestParser_StopsAtSentinel(t *testing.T) {
	raw := contentFrame("kept") + doneFrame + contentFrame("ignored")

	events := collect(t, NewParser(strings.NewReader(raw)))

	assert.Equal(t, "kept", contents(events))
}

func TestParser_EndsWithoutSentinel(t *testing.T) {
	raw := toolFrame(0, "c0", "get_today_events", `{}`)

	events := collect(t, NewParser(strings.NewReader(raw)))

	require.Len(t, events, 1)
	assert.Equal(t, llm.EventToolCalls, events[0].Kind())
}

func TestParser_DropsUnterminatedTrailingLine(t *testing.T) {
	raw := contentFrame("complete") + `data: {"choices":[{"delta":{"content":"partial"}}]}`

	events := collect(t, NewParser(strings.NewReader(raw)))

	assert.Equal(t, "complete", contents(events))
}

func TestParser_EverySplitOffset(t *testing.T) {
	raw := contentFrame("Bonjour ") +
		toolFrame(0, "c0", "get_calendar_events", `{"date":"2026-10-16"}`) +
		"data: garbage\n" +
		contentFrame("à tous") +
		toolFrame(0, "", "", ``) +
		doneFrame

	want := collect(t, NewParser(strings.NewReader(raw)))
	require.Len(t, want, 3)

	for at := 0; at <= len(raw); at++ {
		got := collect(t, NewParser(newSplitReader(raw, at)))
		require.Equal(t, want, got, "split at offset %d", at)
	}

	got := collect(t, NewParser(iotest.OneByteReader(strings.NewReader(raw))))
	assert.Equal(t, want, got)
}

func TestParser_IdenticalInputIdenticalEvents(t *testing.T) {
	raw := contentFrame("x") + toolFrame(0, "c", "get_today_events", "{}") + doneFrame

	first := collect(t, NewParser(strings.NewReader(raw)))
	second := collect(t, NewParser(strings.NewReader(raw)))

	assert.Equal(t, first, second)
}

func TestParser_ReadErrorIsReturnedAfterBufferedContent(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader(contentFrame("partial")), iotest.ErrReader(boom))
	p := NewParser(r)

	ev, err := p.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", ev.Content)

	_, err = p.Recv()
	assert.ErrorIs(t, err, boom)

	_, err = p.Recv()
	assert.ErrorIs(t, err, boom)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestParser_CloseStopsStream(t *testing.T) {
	body := &closeRecorder{Reader: strings.NewReader(contentFrame("a") + contentFrame("b"))}
	p := NewParser(body)

	ev, err := p.Recv()
	require.NoError(t, err)
	assert.Equal(t, "a", ev.Content)

	require.NoError(t, p.Close())
	assert.True(t, body.closed)

	_, err = p.Recv()
	assert.ErrorIs(t, err, io.EOF)
}
