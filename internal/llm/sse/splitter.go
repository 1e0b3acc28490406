package sse

import (
	"bytes"
	"strings"
)

// LineSplitter turns arbitrarily chunked input into complete lines. The
// bytes after the last newline of a chunk are carried over to the next Push;
// they are never reported as a line on their own.
type LineSplitter struct {
	partial []byte
}

// Push appends chunk to the carried fragment and returns every line completed
// by it, without the trailing "\n" or "\r\n".
func (s *LineSplitter) Push(chunk []byte) []string {
	var lines []string
	for {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			s.partial = append(s.partial, chunk...)
			return lines
		}

		line := chunk[:i]
		if len(s.partial) > 0 {
			line = append(s.partial, line...)
		}
		lines = append(lines, strings.TrimSuffix(string(line), "\r"))
		s.partial = s.partial[:0]
		chunk = chunk[i+1:]
	}
}

// Pending returns the incomplete line carried into the next Push.
func (s *LineSplitter) Pending() string {
	return string(s.partial)
}
