package sse

import (
	"encoding/json"
	"io"
	"strings"

	"agenda/internal/llm"

	openai "github.com/sashabaranov/go-openai"
)

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
	readSize     = 4096
)

// Parser decodes an OpenAI-style event stream into llm.StreamEvent values.
// Content fragments are returned as soon as their line is complete; tool call
// fragments are accumulated and returned as one event when the stream ends.
// A Parser reads its input once and cannot be rewound.
type Parser struct {
	r       io.Reader
	buf     []byte
	lines   LineSplitter
	acc     *Accumulator
	pending []*llm.StreamEvent

	finished bool // sentinel seen or input exhausted
	done     bool // terminal result delivered
	err      error
}

var _ llm.StreamReader = (*Parser)(nil)

func NewParser(r io.Reader) *Parser {
	return &Parser{
		r:   r,
		buf: make([]byte, readSize),
		acc: NewAccumulator(),
	}
}

// Recv returns the next event, or io.EOF after the last one.
func (p *Parser) Recv() (*llm.StreamEvent, error) {
	for {
		if len(p.pending) > 0 {
			ev := p.pending[0]
			p.pending = p.pending[1:]
			return ev, nil
		}
		if p.done {
			if p.err != nil {
				return nil, p.err
			}
			return nil, io.EOF
		}
		if p.finished {
			p.done = true
			if calls := p.acc.Calls(); len(calls) > 0 {
				return &llm.StreamEvent{ToolCalls: calls}, nil
			}
			continue
		}
		p.fill()
	}
}

// Close closes the underlying reader when it is an io.Closer.
func (p *Parser) Close() error {
	p.done = true
	p.pending = nil
	if c, ok := p.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (p *Parser) fill() {
	n, err := p.r.Read(p.buf)
	if n > 0 {
		for _, line := range p.lines.Push(p.buf[:n]) {
			if p.handleLine(line) {
				p.finished = true
				return
			}
		}
	}

	switch {
	case err == io.EOF:
		p.finished = true
	case err != nil:
		p.done = true
		p.err = err
	}
}

// handleLine processes one complete line and reports whether it was the
// end-of-stream sentinel.
func (p *Parser) handleLine(line string) bool {
	// Skip empty lines and comments.
	if line == "" || strings.HasPrefix(line, ":") {
		return false
	}

	data, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return false
	}
	data = strings.TrimPrefix(data, " ")
	if data == doneSentinel {
		return true
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		// Skip invalid JSON
		return false
	}
	if len(chunk.Choices) == 0 {
		return false
	}

	delta := chunk.Choices[0].Delta
	if delta.Content != "" {
		p.pending = append(p.pending, &llm.StreamEvent{Content: delta.Content})
	}
	for _, tc := range delta.ToolCalls {
		p.acc.Add(tc)
	}
	return false
}
