package cli

import (
	"context"
	"fmt"
	"io"
	"os"
)

// StreamingWriter writes streamed answer content to a terminal. It
// satisfies agent.Sink.
type StreamingWriter struct {
	writer    io.Writer
	colorMode bool
	written   int
}

func NewStreamingWriter(w io.Writer) *StreamingWriter {
	if w == nil {
		w = os.Stdout
	}
	return &StreamingWriter{
		writer:    w,
		colorMode: true,
	}
}

func (sw *StreamingWriter) SetColorMode(enabled bool) {
	sw.colorMode = enabled
}

// Emit writes one content fragment. A failed write aborts the chat.
func (sw *StreamingWriter) Emit(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := io.WriteString(sw.writer, content)
	sw.written += n
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	sw.Flush()
	return nil
}

// Written reports how many bytes Emit has written.
func (sw *StreamingWriter) Written() int {
	return sw.written
}

// WriteLine writes a line to the output
func (sw *StreamingWriter) WriteLine(content string) {
	fmt.Fprintln(sw.writer, content)
}

// WriteColored writes colored content if color mode is enabled
func (sw *StreamingWriter) WriteColored(content, color string) {
	if sw.colorMode {
		fmt.Fprintf(sw.writer, "%s%s%s", color, content, ColorReset)
	} else {
		fmt.Fprint(sw.writer, content)
	}
}

// Flush pushes buffered output, for writers that buffer
func (sw *StreamingWriter) Flush() {
	if flusher, ok := sw.writer.(interface{ Flush() error }); ok {
		_ = flusher.Flush()
	}
}

// ANSI Color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorGray   = "\033[90m"
)
