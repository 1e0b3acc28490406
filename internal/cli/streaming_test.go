package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStreamingWriterEmit(t *testing.T) {
	var out bytes.Buffer
	sw := NewStreamingWriter(&out)

	require.NoError(t, sw.Emit(context.Background(), "You have "))
	require.NoError(t, sw.Emit(context.Background(), "no events."))

	assert.Equal(t, "You have no events.", out.String())
	assert.Equal(t, len("You have no events."), sw.Written())
}

func TestStreamingWriterFlushesBufferedWriter(t *testing.T) {
	var out bytes.Buffer
	buffered := bufio.NewWriter(&out)
	sw := NewStreamingWriter(buffered)

	require.NoError(t, sw.Emit(context.Background(), "hi"))

	assert.Equal(t, "hi", out.String())
}

func TestStreamingWriterErrors(t *testing.T) {
	sw := NewStreamingWriter(failingWriter{})
	assert.Error(t, sw.Emit(context.Background(), "x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	assert.ErrorIs(t, NewStreamingWriter(&out).Emit(ctx, "x"), context.Canceled)
	assert.Empty(t, out.String())
}

func TestWriteColored(t *testing.T) {
	var out bytes.Buffer
	sw := NewStreamingWriter(&out)

	sw.WriteColored("warn", ColorYellow)
	assert.Equal(t, ColorYellow+"warn"+ColorReset, out.String())

	out.Reset()
	sw.SetColorMode(false)
	sw.WriteColored("warn", ColorYellow)
	assert.Equal(t, "warn", out.String())
}
