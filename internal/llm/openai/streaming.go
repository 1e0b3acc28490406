package openai

import (
	"errors"
	"io"

	"agenda/internal/llm"
	"agenda/internal/llm/sse"

	openai "github.com/sashabaranov/go-openai"
)

// StreamReader adapts the SDK stream to llm.StreamReader. Tool call chunks
// are tracked by index and released as a single event once the SDK reports
// the end of the stream.
type StreamReader struct {
	stream *openai.ChatCompletionStream
	acc    *sse.Accumulator
	done   bool
}

func (s *StreamReader) Recv() (*llm.StreamEvent, error) {
	for {
		if s.done {
			return nil, io.EOF
		}

		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			if calls := s.acc.Calls(); len(calls) > 0 {
				return &llm.StreamEvent{ToolCalls: calls}, nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}

		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta

		// Handle tool calls - they come in chunks
		for _, tc := range delta.ToolCalls {
			s.acc.Add(tc)
		}

		if delta.Content != "" {
			return &llm.StreamEvent{Content: delta.Content}, nil
		}
	}
}

func (s *StreamReader) Close() error {
	s.done = true
	return s.stream.Close()
}
