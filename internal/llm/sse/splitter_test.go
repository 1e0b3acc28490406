package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineSplitter_CarriesPartialLine(t *testing.T) {
	var s LineSplitter

	assert.Empty(t, s.Push([]byte("data: {\"a\"")))
	assert.Equal(t, "data: {\"a\"", s.Pending())

	lines := s.Push([]byte(":1}\ndata: x\n\nda"))
	assert.Equal(t, []string{"data: {\"a\":1}", "data: x", ""}, lines)
	assert.Equal(t, "da", s.Pending())

	lines = s.Push([]byte("ta: y\r\n"))
	assert.Equal(t, []string{"data: y"}, lines)
	assert.Empty(t, s.Pending())
}

func TestLineSplitter_SplitMultibyteRune(t *testing.T) {
	var s LineSplitter
	word := []byte("café\n")

	// Split inside the two-byte encoding of 'é'.
	assert.Empty(t, s.Push(word[:4]))
	assert.Equal(t, []string{"café"}, s.Push(word[4:]))
}
